package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidStatus      = errors.New("invalid job status")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrBudgetExceeded     = errors.New("spending cap reached")
	ErrUnparsableResult   = errors.New("could not parse extraction result")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UpstreamError carries the HTTP-level detail of a failed vision API call so
// the error classifier can map it without depending on the transport package.
type UpstreamError struct {
	Operation string
	Status    int
	Body      string
	Code      string
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}
