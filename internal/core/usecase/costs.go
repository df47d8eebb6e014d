package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

// CostMonitor gates extractions against per-user and global spending caps
// and emits threshold alerts. Caps are swappable at runtime so an operator
// can reload them without restarting the worker fleet.
type CostMonitor struct {
	spending ports.SpendingStore
	logger   *slog.Logger

	mu   sync.RWMutex
	caps domain.SpendingCaps
}

func NewCostMonitor(spending ports.SpendingStore, caps domain.SpendingCaps, logger *slog.Logger) *CostMonitor {
	return &CostMonitor{spending: spending, caps: caps, logger: logger}
}

// ReloadCaps replaces the active caps atomically.
func (m *CostMonitor) ReloadCaps(caps domain.SpendingCaps) {
	m.mu.Lock()
	m.caps = caps
	m.mu.Unlock()
	m.logger.Info("costs.caps_reloaded",
		"user_daily_usd", caps.UserDailyUSD,
		"user_monthly_usd", caps.UserMonthlyUSD,
		"global_daily_usd", caps.GlobalDailyUSD,
		"global_monthly_usd", caps.GlobalMonthlyUSD)
}

// Caps returns a snapshot of the active caps.
func (m *CostMonitor) Caps() domain.SpendingCaps {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caps
}

// CanPerformExtraction checks the user caps first and short-circuits on a
// denial; the global caps are only consulted for a user that fits.
func (m *CostMonitor) CanPerformExtraction(ctx context.Context, userID string, estimatedCost float64) (domain.BudgetDecision, error) {
	userDecision, err := m.CheckUserBudget(ctx, userID, estimatedCost)
	if err != nil {
		return domain.BudgetDecision{}, err
	}
	if !userDecision.Allowed {
		m.ProcessAlerts(userDecision.Alerts)
		return userDecision, nil
	}

	globalDecision, err := m.CheckGlobalBudget(ctx, estimatedCost)
	if err != nil {
		return domain.BudgetDecision{}, err
	}
	merged := domain.BudgetDecision{
		Allowed: globalDecision.Allowed,
		Reason:  globalDecision.Reason,
		Alerts:  append(userDecision.Alerts, globalDecision.Alerts...),
	}
	m.ProcessAlerts(merged.Alerts)
	return merged, nil
}

// CheckUserBudget evaluates the projected daily and monthly spend of one
// user against the active caps.
func (m *CostMonitor) CheckUserBudget(ctx context.Context, userID string, estimatedCost float64) (domain.BudgetDecision, error) {
	caps := m.Caps()
	now := time.Now().UTC()

	daily, err := m.spending.UserSpendSince(ctx, userID, startOfDayUTC(now))
	if err != nil {
		return domain.BudgetDecision{}, domain.WrapError(domain.ErrTemporary, "costs.user_daily", err)
	}
	monthly, err := m.spending.UserSpendSince(ctx, userID, startOfMonthUTC(now))
	if err != nil {
		return domain.BudgetDecision{}, domain.WrapError(domain.ErrTemporary, "costs.user_monthly", err)
	}

	decision := domain.BudgetDecision{Allowed: true}
	evaluateCap(&decision, domain.AlertScopeUser, domain.MetricDaily, userID, daily, estimatedCost, caps.UserDailyUSD, "Daily spending cap reached")
	evaluateCap(&decision, domain.AlertScopeUser, domain.MetricMonthly, userID, monthly, estimatedCost, caps.UserMonthlyUSD, "Monthly spending cap reached")
	return decision, nil
}

// CheckGlobalBudget evaluates the projected platform-wide spend.
func (m *CostMonitor) CheckGlobalBudget(ctx context.Context, estimatedCost float64) (domain.BudgetDecision, error) {
	caps := m.Caps()
	now := time.Now().UTC()

	daily, err := m.spending.GlobalSpendSince(ctx, startOfDayUTC(now))
	if err != nil {
		return domain.BudgetDecision{}, domain.WrapError(domain.ErrTemporary, "costs.global_daily", err)
	}
	monthly, err := m.spending.GlobalSpendSince(ctx, startOfMonthUTC(now))
	if err != nil {
		return domain.BudgetDecision{}, domain.WrapError(domain.ErrTemporary, "costs.global_monthly", err)
	}

	decision := domain.BudgetDecision{Allowed: true}
	evaluateCap(&decision, domain.AlertScopeGlobal, domain.MetricDaily, "", daily, estimatedCost, caps.GlobalDailyUSD, "Platform daily spending cap reached")
	evaluateCap(&decision, domain.AlertScopeGlobal, domain.MetricMonthly, "", monthly, estimatedCost, caps.GlobalMonthlyUSD, "Platform monthly spending cap reached")
	return decision, nil
}

// ProcessAlerts logs every alert; critical alerts go out at error level so
// they page, warnings stay informational.
func (m *CostMonitor) ProcessAlerts(alerts []domain.CostAlert) {
	for _, alert := range alerts {
		attrs := []any{
			"scope", alert.Scope,
			"metric", alert.Metric,
			"current_spend_usd", alert.Current,
			"cap_usd", alert.Cap,
			"threshold", alert.Threshold,
			"message", alert.Message,
		}
		if alert.Severity == domain.SeverityCritical {
			m.logger.Error("costs.cap_critical", attrs...)
			continue
		}
		m.logger.Warn("costs.cap_warning", attrs...)
	}
}

// evaluateCap folds one cap check into the decision. A cap of zero or below
// means the cap is disabled.
func evaluateCap(decision *domain.BudgetDecision, scope domain.AlertScope, metric domain.BudgetMetric, userID string, spent, estimated, cap float64, denyReason string) {
	if cap <= 0 {
		return
	}
	projected := spent + estimated
	subject := "platform"
	if userID != "" {
		subject = "user " + userID
	}
	switch {
	case projected > cap:
		decision.Allowed = false
		if decision.Reason == "" {
			decision.Reason = denyReason
		}
		decision.Alerts = append(decision.Alerts, newCapAlert(scope, metric, domain.SeverityCritical, spent, 1.0, cap,
			fmt.Sprintf("%s %s spend %.4f would exceed cap %.2f", subject, metric, projected, cap)))
	case projected >= cap*domain.CriticalThreshold:
		decision.Alerts = append(decision.Alerts, newCapAlert(scope, metric, domain.SeverityCritical, spent, domain.CriticalThreshold, cap,
			fmt.Sprintf("%s %s spend %.4f is above %.0f%% of cap %.2f", subject, metric, projected, domain.CriticalThreshold*100, cap)))
	case projected >= cap*domain.WarningThreshold:
		decision.Alerts = append(decision.Alerts, newCapAlert(scope, metric, domain.SeverityWarning, spent, domain.WarningThreshold, cap,
			fmt.Sprintf("%s %s spend %.4f is above %.0f%% of cap %.2f", subject, metric, projected, domain.WarningThreshold*100, cap)))
	}
}

func newCapAlert(scope domain.AlertScope, metric domain.BudgetMetric, severity domain.AlertSeverity, spent, threshold, cap float64, message string) domain.CostAlert {
	return domain.CostAlert{
		Scope:     scope,
		Severity:  severity,
		Metric:    metric,
		Current:   spent,
		Threshold: threshold,
		Cap:       cap,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

func startOfDayUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonthUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
