package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

type MetricsRepository struct {
	db *sql.DB
}

func NewMetricsRepository(db *sql.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// TrackExtraction upserts the per-(prompt version, schema version, date)
// aggregate row, maintaining running averages in SQL so concurrent workers
// do not race a read-modify-write in the application.
func (r *MetricsRepository) TrackExtraction(ctx context.Context, sample domain.ExtractionSample) error {
	date := sample.Date.UTC().Truncate(24 * time.Hour)
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extraction_metrics_daily (
	prompt_version, schema_version, date,
	extraction_count, avg_confidence, avg_processing_ms, avg_tokens, avg_cost, total_cost
) VALUES ($1,$2,$3,1,$4,$5,$6,$7,$7)
ON CONFLICT (prompt_version, schema_version, date) DO UPDATE SET
	extraction_count = extraction_metrics_daily.extraction_count + 1,
	avg_confidence = (extraction_metrics_daily.avg_confidence * extraction_metrics_daily.extraction_count + EXCLUDED.avg_confidence)
		/ (extraction_metrics_daily.extraction_count + 1),
	avg_processing_ms = (extraction_metrics_daily.avg_processing_ms * extraction_metrics_daily.extraction_count + EXCLUDED.avg_processing_ms)
		/ (extraction_metrics_daily.extraction_count + 1),
	avg_tokens = (extraction_metrics_daily.avg_tokens * extraction_metrics_daily.extraction_count + EXCLUDED.avg_tokens)
		/ (extraction_metrics_daily.extraction_count + 1),
	avg_cost = (extraction_metrics_daily.avg_cost * extraction_metrics_daily.extraction_count + EXCLUDED.avg_cost)
		/ (extraction_metrics_daily.extraction_count + 1),
	total_cost = extraction_metrics_daily.total_cost + EXCLUDED.total_cost
`,
		sample.PromptVersion, string(sample.SchemaVersion), date,
		sample.Confidence, float64(sample.ProcessingMS), float64(sample.TotalTokens), sample.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("upsert daily aggregate: %w", err)
	}
	return nil
}

func (r *MetricsRepository) OverallMetrics(ctx context.Context, start, end time.Time) (domain.OverallMetrics, error) {
	var m domain.OverallMetrics
	var total, failed, uncertain int64
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*) FILTER (WHERE status = 'completed'),
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'failed'),
	COALESCE(percentile_cont(0.5) WITHIN GROUP (ORDER BY processing_ms) FILTER (WHERE status = 'completed'), 0),
	COALESCE(percentile_cont(0.95) WITHIN GROUP (ORDER BY processing_ms) FILTER (WHERE status = 'completed'), 0),
	COALESCE(percentile_cont(0.99) WITHIN GROUP (ORDER BY processing_ms) FILTER (WHERE status = 'completed'), 0),
	COALESCE(AVG(overall_confidence) FILTER (WHERE status = 'completed'), 0),
	COALESCE(SUM(estimated_cost) FILTER (WHERE status = 'completed'), 0),
	COUNT(*) FILTER (WHERE status = 'completed' AND jsonb_array_length(uncertain_items) > 0)
FROM extraction_jobs
WHERE created_at >= $1 AND created_at < $2
`, start, end).Scan(
		&m.Extractions, &total, &failed,
		&m.P50ProcessingMS, &m.P95ProcessingMS, &m.P99ProcessingMS,
		&m.AvgConfidence, &m.TotalCostUSD, &uncertain,
	)
	if err != nil {
		return domain.OverallMetrics{}, fmt.Errorf("query overall metrics: %w", err)
	}

	if m.Extractions > 0 {
		m.AvgCostUSD = m.TotalCostUSD / float64(m.Extractions)
		m.UncertainItemRate = float64(uncertain) / float64(m.Extractions)
	}
	if total > 0 {
		m.FailureRate = float64(failed) / float64(total)
	}
	return m, nil
}

func (r *MetricsRepository) DailyAggregates(ctx context.Context, start, end time.Time) ([]domain.DailyAggregate, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT prompt_version, schema_version, date,
	extraction_count, avg_confidence, avg_processing_ms, avg_tokens, avg_cost, total_cost
FROM extraction_metrics_daily
WHERE date >= $1 AND date < $2
ORDER BY date, prompt_version, schema_version
`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query daily aggregates: %w", err)
	}
	defer rows.Close()

	var aggregates []domain.DailyAggregate
	for rows.Next() {
		var agg domain.DailyAggregate
		var schemaVersion string
		if err := rows.Scan(
			&agg.PromptVersion, &schemaVersion, &agg.Date,
			&agg.Extractions, &agg.AvgConfidence, &agg.AvgProcessingMS,
			&agg.AvgTokens, &agg.AvgCostUSD, &agg.TotalCostUSD,
		); err != nil {
			return nil, fmt.Errorf("scan daily aggregate: %w", err)
		}
		agg.SchemaVersion = domain.SchemaVersion(schemaVersion)
		aggregates = append(aggregates, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily aggregates: %w", err)
	}
	return aggregates, nil
}

func (r *MetricsRepository) UserSpending(ctx context.Context, userID string, now time.Time) (domain.UserSpending, error) {
	dayStart := startOfDay(now)
	monthStart := startOfMonth(now)

	var spending domain.UserSpending
	err := r.db.QueryRowContext(ctx, `
SELECT
	COALESCE(SUM(estimated_cost) FILTER (WHERE completed_at >= $2), 0),
	COALESCE(SUM(estimated_cost), 0),
	COUNT(*)
FROM extraction_jobs
WHERE user_id = $1 AND status = 'completed' AND completed_at >= $3
`, userID, dayStart, monthStart).Scan(&spending.TodayUSD, &spending.MonthUSD, &spending.MonthExtractions)
	if err != nil {
		return domain.UserSpending{}, fmt.Errorf("query user spending: %w", err)
	}

	var last sql.NullTime
	err = r.db.QueryRowContext(ctx, `
SELECT MAX(completed_at) FROM extraction_jobs
WHERE user_id = $1 AND status = 'completed'
`, userID).Scan(&last)
	if err != nil {
		return domain.UserSpending{}, fmt.Errorf("query last extraction: %w", err)
	}
	if last.Valid {
		t := last.Time
		spending.LastExtractionAt = &t
	}
	return spending, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
