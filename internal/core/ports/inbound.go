package ports

import (
	"context"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// SubmitOptions carries the optional knobs on job submission.
type SubmitOptions struct {
	SchemaVersion domain.SchemaVersion
	PromptVersion string
	Force         bool
}

// SubmitResult is the submission outcome; Cached means a prior completed
// job was served without any model invocation.
type SubmitResult struct {
	Job    *domain.ExtractionJob `json:"job"`
	Cached bool                  `json:"cached"`
}

// JobSubmitter is the inbound contract for job submission and lifecycle.
type JobSubmitter interface {
	SubmitJob(ctx context.Context, userID, imageRef, contentHash string, opts SubmitOptions) (*SubmitResult, error)
	GetJob(ctx context.Context, jobID string) (*domain.ExtractionJob, error)
	RetryJob(ctx context.Context, jobID, userID string) (*domain.ExtractionJob, error)
}

// JobProcessor is the inbound contract for asynchronous extraction work.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}
