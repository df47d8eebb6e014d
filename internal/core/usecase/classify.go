package usecase

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

const (
	defaultRateLimitDelay = 60
	defaultTransientDelay = 30

	// The submission rate window trails one hour, so a denied caller has a
	// free slot at most this many seconds out.
	rateLimitResetDelay = 3600
)

// ErrorClassifier maps any pipeline error to the actionable taxonomy:
// category, retryability, delay hint, fallback mode, and user guidance.
type ErrorClassifier struct{}

func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

func (c *ErrorClassifier) Classify(err error) domain.ClassifiedError {
	if err == nil {
		return domain.ClassifiedError{Category: domain.CategoryUnknown, Message: "No error was provided."}
	}

	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return classifyHTTPStatus(upstream)
	}

	switch {
	case domain.IsKind(err, domain.ErrRateLimited):
		return domain.ClassifiedError{
			Category:   domain.CategoryQuotaExceeded,
			RetryAfter: rateLimitResetDelay,
			Fallback:   domain.FallbackManualEntry,
			Message:    "You have submitted too many extractions this hour.",
			Guidance:   []string{"Wait for the hourly window to reset", "Enter the menu manually"},
		}
	case domain.IsKind(err, domain.ErrQuotaExceeded):
		return domain.ClassifiedError{
			Category: domain.CategoryQuotaExceeded,
			Fallback: domain.FallbackManualEntry,
			Message:  "You have reached your extraction limit.",
			Guidance: []string{"Upgrade your plan", "Wait for the limit window to reset", "Enter the menu manually"},
		}
	case domain.IsKind(err, domain.ErrBudgetExceeded):
		return domain.ClassifiedError{
			Category: domain.CategoryQuotaExceeded,
			Fallback: domain.FallbackManualEntry,
			Message:  "Extraction is paused because a spending cap was reached.",
			Guidance: []string{"Try again after the cap window resets", "Enter the menu manually"},
		}
	case domain.IsKind(err, domain.ErrUnparsableResult):
		return domain.ClassifiedError{
			Category:  domain.CategoryValidation,
			Retryable: true,
			Fallback:  domain.FallbackRetry,
			Message:   "The extraction result could not be read.",
			Guidance:  []string{"Try the extraction again"},
		}
	case domain.IsKind(err, domain.ErrInvalidInput):
		return domain.ClassifiedError{
			Category: domain.CategoryInvalidInput,
			Fallback: domain.FallbackManualEntry,
			Message:  "The uploaded image could not be used for extraction.",
			Guidance: []string{"Upload a JPEG or PNG photo of the menu", "Enter the menu manually"},
		}
	}

	if isNetworkError(err) {
		return domain.ClassifiedError{
			Category:   domain.CategoryAPIError,
			Retryable:  true,
			RetryAfter: defaultTransientDelay,
			Fallback:   domain.FallbackRetry,
			Message:    "The extraction service could not be reached.",
			Guidance:   []string{"Try again in about 30 seconds"},
		}
	}

	return domain.ClassifiedError{
		Category: domain.CategoryUnknown,
		Fallback: domain.FallbackManualEntry,
		Message:  "Something unexpected went wrong during extraction.",
		Guidance: []string{"Try again later", "Enter the menu manually"},
	}
}

// ClassifyValidation handles validation failures after salvage: when at
// least one item was recovered the outcome is a partial success requiring
// review, otherwise a retryable validation failure.
func (c *ErrorClassifier) ClassifyValidation(itemsRecovered int) domain.ClassifiedError {
	if itemsRecovered >= 1 {
		return domain.ClassifiedError{
			Category: domain.CategoryValidation,
			Fallback: domain.FallbackNone,
			Message:  "Parts of the menu could not be structured; the recovered items need review.",
			Guidance: []string{"Review and complete the extracted items"},
		}
	}
	return domain.ClassifiedError{
		Category:  domain.CategoryValidation,
		Retryable: true,
		Fallback:  domain.FallbackRetry,
		Message:   "The extraction result did not match the expected structure.",
		Guidance:  []string{"Try the extraction again", "Retake the photo if this keeps happening"},
	}
}

var tokenLimitPattern = regexp.MustCompile(`(?i)token|size|too large|length`)

func classifyHTTPStatus(upstream *domain.UpstreamError) domain.ClassifiedError {
	switch {
	case upstream.Status == http.StatusTooManyRequests:
		return domain.ClassifiedError{
			Category:   domain.CategoryAPIError,
			Retryable:  true,
			RetryAfter: retryAfterFromBody(upstream.Body),
			Fallback:   domain.FallbackRetry,
			Message:    "The extraction service is busy.",
			Guidance:   []string{"Try again in about a minute"},
		}
	case upstream.Status == http.StatusInternalServerError,
		upstream.Status == http.StatusBadGateway,
		upstream.Status == http.StatusServiceUnavailable,
		upstream.Status == http.StatusGatewayTimeout:
		return domain.ClassifiedError{
			Category:   domain.CategoryAPIError,
			Retryable:  true,
			RetryAfter: defaultTransientDelay,
			Fallback:   domain.FallbackRetry,
			Message:    "The extraction service had a temporary problem.",
			Guidance:   []string{"Try again in about 30 seconds"},
		}
	case upstream.Status == http.StatusBadRequest:
		if tokenLimitPattern.MatchString(upstream.Body) {
			return domain.ClassifiedError{
				Category: domain.CategoryInvalidInput,
				Fallback: domain.FallbackManualEntry,
				Message:  "The menu image is too large or dense to process in one pass.",
				Guidance: []string{"Split the menu into separate photos per page", "Enter the menu manually"},
			}
		}
		return domain.ClassifiedError{
			Category: domain.CategoryInvalidInput,
			Message:  "The extraction request was rejected.",
			Guidance: []string{"Check the uploaded image and try again"},
		}
	case upstream.Status == http.StatusUnauthorized, upstream.Status == http.StatusForbidden:
		return domain.ClassifiedError{
			Category: domain.CategoryAPIError,
			Fallback: domain.FallbackManualEntry,
			Message:  "The extraction service rejected our credentials.",
			Guidance: []string{"Contact support", "Enter the menu manually"},
		}
	default:
		return domain.ClassifiedError{
			Category: domain.CategoryUnknown,
			Fallback: domain.FallbackManualEntry,
			Message:  "Something unexpected went wrong during extraction.",
			Guidance: []string{"Try again later", "Enter the menu manually"},
		}
	}
}

// retryAfterFromBody honors a backoff hint embedded in the 429 payload,
// falling back to one minute.
func retryAfterFromBody(body string) int {
	var hints = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"retry_after"\s*:\s*(\d+)`),
		regexp.MustCompile(`(?i)try again in\s+(\d+(?:\.\d+)?)\s*s`),
	}
	for _, pattern := range hints {
		if match := pattern.FindStringSubmatch(body); len(match) == 2 {
			if seconds, err := strconv.ParseFloat(match[1], 64); err == nil && seconds > 0 {
				rounded := int(seconds)
				if rounded < 1 {
					rounded = 1
				}
				return rounded
			}
		}
	}
	return defaultRateLimitDelay
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Temporary-kind wrapping from the transport keeps the transient signal
	// even when the net error itself was consumed.
	if domain.IsKind(err, domain.ErrTemporary) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "timeout")
}
