package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SpendingRepository sums completed-job cost over a window. Reads are always
// fresh; the cost monitor's guarantee is best-effort by design.
type SpendingRepository struct {
	db *sql.DB
}

func NewSpendingRepository(db *sql.DB) *SpendingRepository {
	return &SpendingRepository{db: db}
}

func (r *SpendingRepository) UserSpendSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(estimated_cost), 0)
FROM extraction_jobs
WHERE user_id = $1 AND status = 'completed' AND completed_at >= $2
`, userID, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum user spend: %w", err)
	}
	return total, nil
}

func (r *SpendingRepository) GlobalSpendSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(estimated_cost), 0)
FROM extraction_jobs
WHERE status = 'completed' AND completed_at >= $1
`, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum global spend: %w", err)
	}
	return total, nil
}
