package ports

import (
	"context"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// JobRepository is the narrow persistence contract for extraction jobs. The
// core never sees a query builder; each method is a whole-row read or write.
type JobRepository interface {
	Insert(ctx context.Context, job *domain.ExtractionJob) error
	UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errorMessage string) error
	MarkCompleted(ctx context.Context, job *domain.ExtractionJob) error
	FindByHash(ctx context.Context, userID, contentHash string) (*domain.ExtractionJob, error)
	FindByID(ctx context.Context, jobID string) (*domain.ExtractionJob, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// PlanStore reads the user's plan limit on monthly extractions. A limit of -1
// means unlimited.
type PlanStore interface {
	MonthlyJobLimit(ctx context.Context, userID string) (int, error)
}

// SpendingStore aggregates completed-job cost over a window. Sums are read
// fresh on every call; there is no reservation, so enforcement is
// best-effort under concurrency.
type SpendingStore interface {
	UserSpendSince(ctx context.Context, userID string, since time.Time) (float64, error)
	GlobalSpendSince(ctx context.Context, since time.Time) (float64, error)
}

// MetricsStore persists and serves extraction aggregates.
type MetricsStore interface {
	TrackExtraction(ctx context.Context, sample domain.ExtractionSample) error
	OverallMetrics(ctx context.Context, start, end time.Time) (domain.OverallMetrics, error)
	DailyAggregates(ctx context.Context, start, end time.Time) ([]domain.DailyAggregate, error)
	UserSpending(ctx context.Context, userID string, now time.Time) (domain.UserSpending, error)
}

// ExtractionRequest is the vision-model call input.
type ExtractionRequest struct {
	ImageRef      string
	SchemaVersion domain.SchemaVersion
	PromptVersion string
}

// ExtractionOutcome is the raw, parsed-but-unvalidated model output. RawJSON
// holds exactly one JSON object; schema validation happens in the core.
type ExtractionOutcome struct {
	RawJSON []byte
	Usage   domain.TokenUsage
	Model   string
	Profile string
}

// MenuExtractor issues the extraction request to the vision model, applying
// its internal retry and fidelity-fallback ladder.
type MenuExtractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (*ExtractionOutcome, error)
}

// MessageQueue dispatches queued job IDs to workers.
type MessageQueue interface {
	PublishJobQueued(ctx context.Context, jobID string) error
	SubscribeJobQueued(ctx context.Context, handler func(context.Context, string) error) error
}
