package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/menu-extractor/internal/config"
	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
	"github.com/kirillkom/menu-extractor/internal/core/usecase"
	"github.com/kirillkom/menu-extractor/internal/export"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/llm/openai"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/repository/postgres"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Jobs      *usecase.JobService
	Costs     *usecase.CostMonitor
	Collector *usecase.MetricsCollector
	Exporter  *export.Service

	jobRepo   ports.JobRepository
	extractor ports.MenuExtractor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	jobRepo := postgres.NewJobRepository(db)
	planRepo := postgres.NewPlanRepository(db)
	spendingRepo := postgres.NewSpendingRepository(db)
	metricsRepo := postgres.NewMetricsRepository(db)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	caps, err := config.LoadSpendingCaps(cfg.SpendingCapsPath)
	if err != nil {
		return nil, fmt.Errorf("load spending caps: %w", err)
	}

	costs := usecase.NewCostMonitor(spendingRepo, caps, logger)
	jobs := usecase.NewJobService(jobRepo, planRepo, queue, costs, usecase.JobServiceConfig{
		HourlyJobLimit:       cfg.HourlyJobLimit,
		EstimatedJobCostUSD:  cfg.EstimatedJobCostUSD,
		DefaultSchemaVersion: domain.SchemaVersion(cfg.DefaultSchemaVersion),
		DefaultPromptVersion: cfg.PromptVersion,
	}, logger)
	collector := usecase.NewMetricsCollector(metricsRepo, logger)

	extractor := openai.New(openai.Config{
		BaseURL:           cfg.OpenAIBaseURL,
		APIKey:            cfg.OpenAIAPIKey,
		Model:             cfg.OpenAIVisionModel,
		RequestsPerMinute: cfg.OpenAIRequestsRPM,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Queue:     queue,
		Jobs:      jobs,
		Costs:     costs,
		Collector: collector,
		Exporter:  export.NewService(metricsRepo),
		jobRepo:   jobRepo,
		extractor: extractor,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// Processor builds the worker pipeline with the given metrics observer.
func (a *App) Processor(observer usecase.PipelineObserver) *usecase.ProcessService {
	return usecase.NewProcessService(
		a.Jobs,
		a.jobRepo,
		a.extractor,
		usecase.NewQualityAssessor(),
		usecase.NewErrorClassifier(),
		a.Collector,
		observer,
		a.Logger,
	)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
