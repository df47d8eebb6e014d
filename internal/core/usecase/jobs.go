package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

// JobServiceConfig tunes submission-time gating. Zero values fall back to
// the defaults below.
type JobServiceConfig struct {
	HourlyJobLimit       int
	EstimatedJobCostUSD  float64
	DefaultSchemaVersion domain.SchemaVersion
	DefaultPromptVersion string
}

const (
	defaultHourlyJobLimit  = 20
	defaultEstimatedCost   = 0.02
	defaultPromptVersionID = "2025-07"
)

func (c JobServiceConfig) withDefaults() JobServiceConfig {
	if c.HourlyJobLimit <= 0 {
		c.HourlyJobLimit = defaultHourlyJobLimit
	}
	if c.EstimatedJobCostUSD <= 0 {
		c.EstimatedJobCostUSD = defaultEstimatedCost
	}
	if c.DefaultSchemaVersion == "" {
		c.DefaultSchemaVersion = domain.SchemaV2
	}
	if c.DefaultPromptVersion == "" {
		c.DefaultPromptVersion = defaultPromptVersionID
	}
	return c
}

// JobService owns the job lifecycle: idempotent submission, quota and rate
// gating, spend gating, status transitions, and retries.
type JobService struct {
	jobs   ports.JobRepository
	plans  ports.PlanStore
	queue  ports.MessageQueue
	costs  *CostMonitor
	cfg    JobServiceConfig
	logger *slog.Logger

	now func() time.Time
}

func NewJobService(jobs ports.JobRepository, plans ports.PlanStore, queue ports.MessageQueue, costs *CostMonitor, cfg JobServiceConfig, logger *slog.Logger) *JobService {
	return &JobService{
		jobs:   jobs,
		plans:  plans,
		queue:  queue,
		costs:  costs,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SubmitJob accepts one menu photo for extraction. Submissions are
// idempotent on (user, content hash): a usable completed result is served
// from cache, an in-flight duplicate returns the existing job, and only a
// stale or absent entry creates new work.
func (s *JobService) SubmitJob(ctx context.Context, userID, imageRef, contentHash string, opts ports.SubmitOptions) (*ports.SubmitResult, error) {
	if userID == "" || imageRef == "" || contentHash == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "jobs.submit",
			fmt.Errorf("user id, image ref and content hash are required"))
	}
	schemaVersion := opts.SchemaVersion
	if schemaVersion == "" {
		schemaVersion = s.cfg.DefaultSchemaVersion
	}
	if schemaVersion != domain.SchemaV1 && schemaVersion != domain.SchemaV2 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "jobs.submit",
			fmt.Errorf("unknown schema version %q", schemaVersion))
	}
	promptVersion := opts.PromptVersion
	if promptVersion == "" {
		promptVersion = s.cfg.DefaultPromptVersion
	}

	if !opts.Force {
		existing, err := s.jobs.FindByHash(ctx, userID, contentHash)
		if err != nil && !domain.IsKind(err, domain.ErrJobNotFound) {
			return nil, err
		}
		if existing != nil {
			if existing.HasUsableResult() {
				s.logger.Info("jobs.submit.cache_hit", "job_id", existing.ID, "user_id", userID)
				return &ports.SubmitResult{Job: existing, Cached: true}, nil
			}
			if existing.Status == domain.StatusQueued || existing.Status == domain.StatusProcessing {
				s.logger.Info("jobs.submit.in_flight", "job_id", existing.ID, "user_id", userID)
				return &ports.SubmitResult{Job: existing, Cached: false}, nil
			}
			if existing.Status == domain.StatusCompleted {
				// Completed but the stored result is missing or malformed.
				// Requeue the same row instead of inserting a duplicate.
				if err := s.jobs.UpdateStatus(ctx, existing.ID, domain.StatusQueued, ""); err != nil {
					return nil, err
				}
				if err := s.queue.PublishJobQueued(ctx, existing.ID); err != nil {
					s.logger.Error("jobs.submit.publish_failed", "job_id", existing.ID, "error", err)
					return nil, domain.WrapError(domain.ErrTemporary, "jobs.submit.publish", err)
				}
				existing.Status = domain.StatusQueued
				s.logger.Info("jobs.submit.requeued_stale", "job_id", existing.ID, "user_id", userID)
				return &ports.SubmitResult{Job: existing, Cached: false}, nil
			}
		}
	}

	if err := s.CheckQuota(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.CheckRateLimit(ctx, userID); err != nil {
		return nil, err
	}
	decision, err := s.costs.CanPerformExtraction(ctx, userID, s.cfg.EstimatedJobCostUSD)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, domain.WrapError(domain.ErrBudgetExceeded, "jobs.submit", fmt.Errorf("%s", decision.Reason))
	}

	job := &domain.ExtractionJob{
		ID:            uuid.NewString(),
		UserID:        userID,
		ImageRef:      imageRef,
		ContentHash:   contentHash,
		Status:        domain.StatusQueued,
		SchemaVersion: schemaVersion,
		PromptVersion: promptVersion,
		CreatedAt:     s.now(),
	}
	if err := s.jobs.Insert(ctx, job); err != nil {
		return nil, err
	}
	if err := s.queue.PublishJobQueued(ctx, job.ID); err != nil {
		// The row stays queued; a requeue sweep or resubmission picks it up.
		s.logger.Error("jobs.submit.publish_failed", "job_id", job.ID, "error", err)
		return nil, domain.WrapError(domain.ErrTemporary, "jobs.submit.publish", err)
	}

	s.logger.Info("jobs.submit.accepted",
		"job_id", job.ID,
		"user_id", userID,
		"schema_version", schemaVersion,
		"prompt_version", promptVersion)
	return &ports.SubmitResult{Job: job, Cached: false}, nil
}

// GetJob returns one job by ID.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*domain.ExtractionJob, error) {
	return s.jobs.FindByID(ctx, jobID)
}

// RetryJob resubmits a failed job as a fresh queued row with the retry
// counter advanced. Only failed jobs are retryable, and only up to
// MaxJobRetries attempts.
func (s *JobService) RetryJob(ctx context.Context, jobID, userID string) (*domain.ExtractionJob, error) {
	prior, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if userID != "" && prior.UserID != userID {
		return nil, domain.WrapError(domain.ErrJobNotFound, "jobs.retry", fmt.Errorf("job %s", jobID))
	}
	if prior.Status != domain.StatusFailed {
		return nil, domain.WrapError(domain.ErrInvalidStatus, "jobs.retry",
			fmt.Errorf("job %s is %s, only failed jobs can be retried", jobID, prior.Status))
	}
	if prior.RetryCount+1 > domain.MaxJobRetries {
		return nil, domain.WrapError(domain.ErrMaxRetriesExceeded, "jobs.retry",
			fmt.Errorf("job %s already used %d retries", jobID, prior.RetryCount))
	}

	retry := &domain.ExtractionJob{
		ID:            uuid.NewString(),
		UserID:        prior.UserID,
		ImageRef:      prior.ImageRef,
		ContentHash:   prior.ContentHash,
		Status:        domain.StatusQueued,
		SchemaVersion: prior.SchemaVersion,
		PromptVersion: prior.PromptVersion,
		RetryCount:    prior.RetryCount + 1,
		CreatedAt:     s.now(),
	}
	if err := s.jobs.Insert(ctx, retry); err != nil {
		return nil, err
	}
	if err := s.queue.PublishJobQueued(ctx, retry.ID); err != nil {
		s.logger.Error("jobs.retry.publish_failed", "job_id", retry.ID, "error", err)
		return nil, domain.WrapError(domain.ErrTemporary, "jobs.retry.publish", err)
	}

	s.logger.Info("jobs.retry.accepted", "job_id", retry.ID, "prior_job_id", jobID, "retry_count", retry.RetryCount)
	return retry, nil
}

// UpdateJobStatus applies one monotonic lifecycle transition.
func (s *JobService) UpdateJobStatus(ctx context.Context, jobID string, next domain.JobStatus, errorMessage string) error {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanTransitionTo(next) {
		return domain.WrapError(domain.ErrInvalidStatus, "jobs.update_status",
			fmt.Errorf("cannot move job %s from %s to %s", jobID, job.Status, next))
	}
	return s.jobs.UpdateStatus(ctx, jobID, next, errorMessage)
}

// MarkJobCompleted persists the full completed row. A result without a
// category tree downgrades the job to processing instead of completing it.
func (s *JobService) MarkJobCompleted(ctx context.Context, job *domain.ExtractionJob) error {
	if !job.Result.IsWellFormed() {
		s.logger.Warn("jobs.complete.malformed_result", "job_id", job.ID)
		job.Status = domain.StatusProcessing
		return s.jobs.UpdateStatus(ctx, job.ID, domain.StatusProcessing, "")
	}
	completedAt := s.now()
	job.Status = domain.StatusCompleted
	job.CompletedAt = &completedAt
	return s.jobs.MarkCompleted(ctx, job)
}

// MarkJobFailed records a terminal failure with a user-presentable message.
func (s *JobService) MarkJobFailed(ctx context.Context, jobID, message string) error {
	return s.jobs.UpdateStatus(ctx, jobID, domain.StatusFailed, message)
}

// CheckQuota enforces the user's monthly plan limit. A limit below zero
// means unlimited.
func (s *JobService) CheckQuota(ctx context.Context, userID string) error {
	limit, err := s.plans.MonthlyJobLimit(ctx, userID)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "jobs.quota", err)
	}
	if limit < 0 {
		return nil
	}
	used, err := s.jobs.CountSince(ctx, userID, startOfMonthUTC(s.now()))
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "jobs.quota", err)
	}
	if used >= limit {
		return domain.WrapError(domain.ErrQuotaExceeded, "jobs.quota",
			fmt.Errorf("monthly limit of %d extractions reached", limit))
	}
	return nil
}

// CheckRateLimit caps submissions per rolling hour.
func (s *JobService) CheckRateLimit(ctx context.Context, userID string) error {
	windowStart := s.now().Add(-time.Hour)
	used, err := s.jobs.CountSince(ctx, userID, windowStart)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "jobs.rate_limit", err)
	}
	if used >= s.cfg.HourlyJobLimit {
		resetAt := windowStart.Add(2 * time.Hour)
		return domain.WrapError(domain.ErrRateLimited, "jobs.rate_limit",
			fmt.Errorf("hourly limit of %d submissions reached, resets by %s", s.cfg.HourlyJobLimit, resetAt.Format(time.RFC3339)))
	}
	return nil
}

var _ ports.JobSubmitter = (*JobService)(nil)
