package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PlanRepository reads plan limits. Users without a plan row default to
// unlimited (-1), matching the plan service's provisioning contract.
type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) MonthlyJobLimit(ctx context.Context, userID string) (int, error) {
	var limit int
	err := r.db.QueryRowContext(ctx, `
SELECT monthly_job_limit FROM user_plans WHERE user_id = $1
`, userID).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read plan limit: %w", err)
	}
	return limit, nil
}
