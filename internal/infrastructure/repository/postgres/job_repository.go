package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, user_id, image_ref, content_hash, status, schema_version, prompt_version,
result, error_message, retry_count, created_at, completed_at,
input_tokens, output_tokens, total_tokens, estimated_cost,
processing_ms, overall_confidence, uncertain_items, superfluous_text, warnings`

func (r *JobRepository) Insert(ctx context.Context, job *domain.ExtractionJob) error {
	resultJSON, uncertainJSON, superfluousJSON, warningsJSON, err := marshalJobDocuments(job)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO extraction_jobs (`+jobColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
`,
		job.ID, job.UserID, job.ImageRef, job.ContentHash, string(job.Status),
		string(job.SchemaVersion), job.PromptVersion, resultJSON, job.ErrorMessage,
		job.RetryCount, job.CreatedAt, job.CompletedAt,
		tokenField(job, func(u *domain.TokenUsage) int { return u.InputTokens }),
		tokenField(job, func(u *domain.TokenUsage) int { return u.OutputTokens }),
		tokenField(job, func(u *domain.TokenUsage) int { return u.TotalTokens }),
		costField(job), job.ProcessingMS, job.OverallConfidence,
		uncertainJSON, superfluousJSON, warningsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert extraction job: %w", err)
	}
	return nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errorMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = $2, error_message = $3
WHERE id = $1
`, jobID, string(status), errorMessage)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return requireRow(res, jobID)
}

// MarkCompleted writes the whole completion payload in one row update:
// result tree, token usage, confidence, side arrays, and timestamps.
func (r *JobRepository) MarkCompleted(ctx context.Context, job *domain.ExtractionJob) error {
	resultJSON, uncertainJSON, superfluousJSON, warningsJSON, err := marshalJobDocuments(job)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = $2, result = $3, error_message = '', completed_at = $4,
	input_tokens = $5, output_tokens = $6, total_tokens = $7, estimated_cost = $8,
	processing_ms = $9, overall_confidence = $10, uncertain_items = $11, superfluous_text = $12,
	warnings = $13
WHERE id = $1
`,
		job.ID, string(job.Status), resultJSON, job.CompletedAt,
		tokenField(job, func(u *domain.TokenUsage) int { return u.InputTokens }),
		tokenField(job, func(u *domain.TokenUsage) int { return u.OutputTokens }),
		tokenField(job, func(u *domain.TokenUsage) int { return u.TotalTokens }),
		costField(job), job.ProcessingMS, job.OverallConfidence,
		uncertainJSON, superfluousJSON, warningsJSON,
	)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return requireRow(res, job.ID)
}

// FindByHash returns the most relevant prior job for (user, hash): a
// completed one when it exists, otherwise the newest of any status.
func (r *JobRepository) FindByHash(ctx context.Context, userID, contentHash string) (*domain.ExtractionJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM extraction_jobs
WHERE user_id = $1 AND content_hash = $2
ORDER BY (status = 'completed') DESC, created_at DESC
LIMIT 1
`, userID, contentHash)
	return scanJob(row)
}

func (r *JobRepository) FindByID(ctx context.Context, jobID string) (*domain.ExtractionJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM extraction_jobs
WHERE id = $1
`, jobID)
	return scanJob(row)
}

func (r *JobRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM extraction_jobs
WHERE user_id = $1 AND created_at >= $2
`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs since: %w", err)
	}
	return count, nil
}

func scanJob(row *sql.Row) (*domain.ExtractionJob, error) {
	var job domain.ExtractionJob
	var status, schemaVersion string
	var resultRaw, uncertainRaw, superfluousRaw, warningsRaw []byte
	var completedAt sql.NullTime
	var usage domain.TokenUsage

	err := row.Scan(
		&job.ID, &job.UserID, &job.ImageRef, &job.ContentHash, &status,
		&schemaVersion, &job.PromptVersion, &resultRaw, &job.ErrorMessage,
		&job.RetryCount, &job.CreatedAt, &completedAt,
		&usage.InputTokens, &usage.OutputTokens, &usage.TotalTokens, &usage.EstimatedCost,
		&job.ProcessingMS, &job.OverallConfidence, &uncertainRaw, &superfluousRaw, &warningsRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "find job", err)
		}
		return nil, fmt.Errorf("scan extraction job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	job.SchemaVersion = domain.SchemaVersion(schemaVersion)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if usage.TotalTokens > 0 || usage.EstimatedCost > 0 {
		job.TokenUsage = &usage
	}
	if len(resultRaw) > 0 {
		var result domain.ExtractionResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
		job.Result = &result
	}
	if len(uncertainRaw) > 0 {
		if err := json.Unmarshal(uncertainRaw, &job.UncertainItems); err != nil {
			return nil, fmt.Errorf("unmarshal uncertain items: %w", err)
		}
	}
	if len(superfluousRaw) > 0 {
		if err := json.Unmarshal(superfluousRaw, &job.SuperfluousText); err != nil {
			return nil, fmt.Errorf("unmarshal superfluous text: %w", err)
		}
	}
	if len(warningsRaw) > 0 {
		if err := json.Unmarshal(warningsRaw, &job.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}
	return &job, nil
}

func marshalJobDocuments(job *domain.ExtractionJob) (result, uncertain, superfluous, warnings []byte, err error) {
	if job.Result != nil {
		result, err = json.Marshal(job.Result)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal job result: %w", err)
		}
	}
	uncertain, err = json.Marshal(orEmpty(job.UncertainItems))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal uncertain items: %w", err)
	}
	superfluous, err = json.Marshal(orEmpty(job.SuperfluousText))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal superfluous text: %w", err)
	}
	warnings, err = json.Marshal(orEmpty(job.Warnings))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal warnings: %w", err)
	}
	return result, uncertain, superfluous, warnings, nil
}

func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

func tokenField(job *domain.ExtractionJob, pick func(*domain.TokenUsage) int) int {
	if job.TokenUsage == nil {
		return 0
	}
	return pick(job.TokenUsage)
}

func costField(job *domain.ExtractionJob) float64 {
	if job.TokenUsage == nil {
		return 0
	}
	return job.TokenUsage.EstimatedCost
}

func requireRow(res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "update job", fmt.Errorf("no row for id %s", jobID))
	}
	return nil
}
