package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

// MetricsCollector records per-extraction samples and serves aggregate views.
// Recording is fire-and-forget from the pipeline's point of view: a metrics
// write failure never fails the job.
type MetricsCollector struct {
	store  ports.MetricsStore
	logger *slog.Logger
}

func NewMetricsCollector(store ports.MetricsStore, logger *slog.Logger) *MetricsCollector {
	return &MetricsCollector{store: store, logger: logger}
}

// TrackExtraction persists one sample. Errors are logged and swallowed.
func (c *MetricsCollector) TrackExtraction(ctx context.Context, sample domain.ExtractionSample) {
	if err := c.store.TrackExtraction(ctx, sample); err != nil {
		c.logger.Error("metrics.track_failed",
			"error", err,
			"prompt_version", sample.PromptVersion,
			"schema_version", sample.SchemaVersion)
	}
}

// Overview returns pipeline-wide aggregates over [start, end).
func (c *MetricsCollector) Overview(ctx context.Context, start, end time.Time) (domain.OverallMetrics, error) {
	metrics, err := c.store.OverallMetrics(ctx, start, end)
	if err != nil {
		return domain.OverallMetrics{}, domain.WrapError(domain.ErrTemporary, "metrics.overview", err)
	}
	return metrics, nil
}

// DailyBreakdown returns per-day, per-version aggregates over [start, end).
func (c *MetricsCollector) DailyBreakdown(ctx context.Context, start, end time.Time) ([]domain.DailyAggregate, error) {
	rows, err := c.store.DailyAggregates(ctx, start, end)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "metrics.daily", err)
	}
	return rows, nil
}

// UserSpending returns one user's spend over the current day and month.
func (c *MetricsCollector) UserSpending(ctx context.Context, userID string) (domain.UserSpending, error) {
	spending, err := c.store.UserSpending(ctx, userID, time.Now().UTC())
	if err != nil {
		return domain.UserSpending{}, domain.WrapError(domain.ErrTemporary, "metrics.user_spending", err)
	}
	return spending, nil
}
