package domain

import "time"

// ExtractionSample is one completed job's contribution to the daily
// per-(prompt version, schema version) aggregate.
type ExtractionSample struct {
	PromptVersion string
	SchemaVersion SchemaVersion
	Date          time.Time
	Confidence    float64
	ProcessingMS  int64
	TotalTokens   int
	CostUSD       float64
}

// OverallMetrics is the cross-version rollup over a date range.
type OverallMetrics struct {
	Extractions       int64   `json:"extractions"`
	P50ProcessingMS   float64 `json:"p50_processing_ms"`
	P95ProcessingMS   float64 `json:"p95_processing_ms"`
	P99ProcessingMS   float64 `json:"p99_processing_ms"`
	AvgConfidence     float64 `json:"avg_confidence"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
	AvgCostUSD        float64 `json:"avg_cost_usd"`
	FailureRate       float64 `json:"failure_rate"`
	UncertainItemRate float64 `json:"uncertain_item_rate"`
}

// DailyAggregate is one persisted metrics row.
type DailyAggregate struct {
	PromptVersion   string        `json:"prompt_version"`
	SchemaVersion   SchemaVersion `json:"schema_version"`
	Date            time.Time     `json:"date"`
	Extractions     int64         `json:"extractions"`
	AvgConfidence   float64       `json:"avg_confidence"`
	AvgProcessingMS float64       `json:"avg_processing_ms"`
	AvgTokens       float64       `json:"avg_tokens"`
	AvgCostUSD      float64       `json:"avg_cost_usd"`
	TotalCostUSD    float64       `json:"total_cost_usd"`
}

// UserSpending summarizes a user's completed-extraction spend.
type UserSpending struct {
	TodayUSD         float64    `json:"today_usd"`
	MonthUSD         float64    `json:"month_usd"`
	MonthExtractions int64      `json:"month_extractions"`
	LastExtractionAt *time.Time `json:"last_extraction_at,omitempty"`
}
