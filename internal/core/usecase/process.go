package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
	"github.com/kirillkom/menu-extractor/internal/schema"
)

// Pipeline outcome labels, shared with the worker metrics.
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "completed_partial"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// PipelineObserver receives low-cardinality signals from the worker
// pipeline for Prometheus export.
type PipelineObserver interface {
	ObserveExtraction(outcome string, duration time.Duration)
	ObserveTokens(model string, promptTokens, completionTokens int)
	ObserveCost(model string, usd float64)
}

// NopObserver satisfies PipelineObserver for tests and tooling.
type NopObserver struct{}

func (NopObserver) ObserveExtraction(string, time.Duration) {}
func (NopObserver) ObserveTokens(string, int, int)          {}
func (NopObserver) ObserveCost(string, float64)             {}

// ProcessService is the worker-side pipeline: claim the job, call the
// vision model, validate or salvage the output, grade quality, persist the
// terminal state, and record metrics. Extraction-level retries and the
// fidelity fallback live inside the extractor; here a failure is terminal
// for the row and any further attempt is an explicit user retry.
type ProcessService struct {
	jobs       *JobService
	repo       ports.JobRepository
	extractor  ports.MenuExtractor
	quality    *QualityAssessor
	classifier *ErrorClassifier
	collector  *MetricsCollector
	observer   PipelineObserver
	logger     *slog.Logger

	now func() time.Time
}

func NewProcessService(
	jobs *JobService,
	repo ports.JobRepository,
	extractor ports.MenuExtractor,
	quality *QualityAssessor,
	classifier *ErrorClassifier,
	collector *MetricsCollector,
	observer PipelineObserver,
	logger *slog.Logger,
) *ProcessService {
	if observer == nil {
		observer = NopObserver{}
	}
	return &ProcessService{
		jobs:       jobs,
		repo:       repo,
		extractor:  extractor,
		quality:    quality,
		classifier: classifier,
		collector:  collector,
		observer:   observer,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ProcessByID runs the pipeline for one queued job. Redeliveries of jobs
// that already left the queued state are acknowledged without work.
func (s *ProcessService) ProcessByID(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.StatusQueued {
		s.logger.Info("process.skip_redelivery", "job_id", jobID, "status", job.Status)
		s.observer.ObserveExtraction(OutcomeSkipped, 0)
		return nil
	}
	if err := s.jobs.UpdateJobStatus(ctx, jobID, domain.StatusProcessing, ""); err != nil {
		return err
	}

	started := s.now()
	outcome, extractErr := s.extractor.Extract(ctx, ports.ExtractionRequest{
		ImageRef:      job.ImageRef,
		SchemaVersion: job.SchemaVersion,
		PromptVersion: job.PromptVersion,
	})
	if extractErr != nil {
		if ctx.Err() != nil {
			// Leave the row in processing; a supervisor or resubmission
			// resolves interrupted work.
			return extractErr
		}
		return s.failJob(ctx, job, started, s.classifier.Classify(extractErr), extractErr)
	}

	result, usedSalvage, validationErr := s.validateOrSalvage(job, outcome)
	if validationErr != nil {
		return s.failJob(ctx, job, started, *validationErr, nil)
	}

	assessment := s.quality.Assess(result, result.UncertainItems)
	if !assessment.CanProceed {
		classified := s.quality.HandleImageQualityIssue(assessment)
		return s.failJob(ctx, job, started, *classified, nil)
	}

	elapsed := s.now().Sub(started)
	job.Result = result
	job.TokenUsage = &outcome.Usage
	job.ProcessingMS = elapsed.Milliseconds()
	job.OverallConfidence = assessment.OverallConfidence
	job.UncertainItems = result.UncertainItems
	job.SuperfluousText = result.SuperfluousText
	job.Warnings = warningMessages(schema.GenerateWarnings(result))

	if err := s.jobs.MarkJobCompleted(ctx, job); err != nil {
		return err
	}

	s.collector.TrackExtraction(ctx, domain.ExtractionSample{
		PromptVersion: job.PromptVersion,
		SchemaVersion: job.SchemaVersion,
		Date:          started,
		Confidence:    assessment.OverallConfidence,
		ProcessingMS:  job.ProcessingMS,
		TotalTokens:   outcome.Usage.TotalTokens,
		CostUSD:       outcome.Usage.EstimatedCost,
	})

	pipelineOutcome := OutcomeCompleted
	if usedSalvage || assessment.RequiresReview {
		pipelineOutcome = OutcomePartial
	}
	s.observer.ObserveExtraction(pipelineOutcome, elapsed)
	s.observer.ObserveTokens(outcome.Model, outcome.Usage.InputTokens, outcome.Usage.OutputTokens)
	s.observer.ObserveCost(outcome.Model, outcome.Usage.EstimatedCost)

	s.logger.Info("process.completed",
		"job_id", job.ID,
		"outcome", pipelineOutcome,
		"warnings", len(job.Warnings),
		"tier", assessment.Tier,
		"confidence", assessment.OverallConfidence,
		"processing_ms", job.ProcessingMS,
		"total_tokens", outcome.Usage.TotalTokens,
		"cost_usd", outcome.Usage.EstimatedCost,
		"profile", outcome.Profile)
	return nil
}

// validateOrSalvage validates the raw model output against the job's schema
// version and, on failure, tries to recover individually valid categories
// and items. One recovered item is enough to continue as a partial result.
func (s *ProcessService) validateOrSalvage(job *domain.ExtractionJob, outcome *ports.ExtractionOutcome) (*domain.ExtractionResult, bool, *domain.ClassifiedError) {
	result, fieldErrs := schema.Validate(outcome.RawJSON, job.SchemaVersion)
	if len(fieldErrs) == 0 {
		return result, false, nil
	}

	s.logger.Warn("process.validation_failed",
		"job_id", job.ID,
		"schema_version", job.SchemaVersion,
		"field_errors", len(fieldErrs))

	salvaged, report := schema.Salvage(outcome.RawJSON, job.SchemaVersion)
	if report.ItemsRecovered >= 1 {
		s.logger.Info("process.salvaged",
			"job_id", job.ID,
			"items_recovered", report.ItemsRecovered,
			"categories_recovered", report.CategoriesRecovered)
		return salvaged, true, nil
	}

	classified := s.classifier.ClassifyValidation(report.ItemsRecovered)
	return nil, false, &classified
}

// warningMessages flattens review warnings into the persisted form. The
// path goes in front so a reviewer can locate the flagged node.
func warningMessages(warnings []schema.Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		if w.Path != "" {
			out[i] = w.Path + ": " + w.Message
			continue
		}
		out[i] = w.Message
	}
	return out
}

// failJob records the terminal failure with the user-presentable message
// and acknowledges the delivery. Redelivering a classified failure would
// only repeat it; the user-initiated retry path owns further attempts.
func (s *ProcessService) failJob(ctx context.Context, job *domain.ExtractionJob, started time.Time, classified domain.ClassifiedError, cause error) error {
	facing := classified.UserFacing()
	if err := s.jobs.MarkJobFailed(ctx, job.ID, facing.Message); err != nil {
		return err
	}
	s.observer.ObserveExtraction(OutcomeFailed, s.now().Sub(started))
	s.logger.Error("process.failed",
		"job_id", job.ID,
		"category", classified.Category,
		"retryable", classified.Retryable,
		"fallback", classified.Fallback,
		"error", cause)
	return nil
}

var _ ports.JobProcessor = (*ProcessService)(nil)
