package httpadapter

import (
	"net/http"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidStatus), domain.IsKind(err, domain.ErrMaxRetriesExceeded):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrQuotaExceeded), domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrBudgetExceeded):
		return http.StatusPaymentRequired
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// gateLabel names the denial gate for metrics; empty when err is not a
// submission gate denial.
func gateLabel(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrQuotaExceeded):
		return "quota"
	case domain.IsKind(err, domain.ErrRateLimited):
		return "rate_limit"
	case domain.IsKind(err, domain.ErrBudgetExceeded):
		return "budget"
	default:
		return ""
	}
}
