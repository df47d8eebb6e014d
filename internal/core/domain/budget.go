package domain

import "time"

type AlertScope string

const (
	AlertScopeUser   AlertScope = "user"
	AlertScopeGlobal AlertScope = "global"
)

type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

type BudgetMetric string

const (
	MetricDaily   BudgetMetric = "daily"
	MetricMonthly BudgetMetric = "monthly"
)

// Alert thresholds as fractions of the relevant cap.
const (
	WarningThreshold  = 0.75
	CriticalThreshold = 0.90
)

// SpendingCaps is runtime-mutable configuration, scoped per-user and
// globally. A cap of 0 or below disables that check.
type SpendingCaps struct {
	UserDailyUSD     float64 `yaml:"user_daily_usd"`
	UserMonthlyUSD   float64 `yaml:"user_monthly_usd"`
	GlobalDailyUSD   float64 `yaml:"global_daily_usd"`
	GlobalMonthlyUSD float64 `yaml:"global_monthly_usd"`
}

// CostAlert is produced by a budget check when spend crosses a threshold.
// Ephemeral; persistence and paging are external concerns.
type CostAlert struct {
	Scope     AlertScope    `json:"scope"`
	Severity  AlertSeverity `json:"severity"`
	Metric    BudgetMetric  `json:"metric"`
	Current   float64       `json:"current"`
	Threshold float64       `json:"threshold"`
	Cap       float64       `json:"cap"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// BudgetDecision is the outcome of a spend-cap check.
type BudgetDecision struct {
	Allowed bool        `json:"allowed"`
	Reason  string      `json:"reason,omitempty"`
	Alerts  []CostAlert `json:"alerts,omitempty"`
}
