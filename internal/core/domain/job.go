package domain

import "time"

type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

type SchemaVersion string

const (
	SchemaV1 SchemaVersion = "v1"
	SchemaV2 SchemaVersion = "v2"
)

// MaxJobRetries bounds how many times a failed extraction may be resubmitted.
const MaxJobRetries = 3

// ExtractionJob is the unit of work for one menu photo. Status transitions
// are monotonic: queued -> processing -> completed|failed. A job never
// re-enters queued; a retry creates a fresh row with RetryCount+1.
type ExtractionJob struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	ImageRef      string            `json:"image_ref"`
	ContentHash   string            `json:"content_hash"`
	Status        JobStatus         `json:"status"`
	SchemaVersion SchemaVersion     `json:"schema_version"`
	PromptVersion string            `json:"prompt_version"`
	Result        *ExtractionResult `json:"result,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	RetryCount    int               `json:"retry_count"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`

	TokenUsage        *TokenUsage       `json:"token_usage,omitempty"`
	ProcessingMS      int64             `json:"processing_ms,omitempty"`
	OverallConfidence float64           `json:"overall_confidence,omitempty"`
	UncertainItems    []UncertainItem   `json:"uncertain_items,omitempty"`
	SuperfluousText   []SuperfluousText `json:"superfluous_text,omitempty"`
	Warnings          []string          `json:"warnings,omitempty"`
}

// CanTransitionTo enforces the monotonic lifecycle.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// HasUsableResult reports whether a completed job carries a result that is
// safe to serve from the idempotency cache: a non-empty category tree.
func (j *ExtractionJob) HasUsableResult() bool {
	return j != nil && j.Status == StatusCompleted && j.Result.IsWellFormed()
}
