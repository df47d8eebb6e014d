package domain

type ErrorCategory string

const (
	CategoryAPIError      ErrorCategory = "api_error"
	CategoryValidation    ErrorCategory = "validation_error"
	CategoryImageQuality  ErrorCategory = "image_quality"
	CategoryQuotaExceeded ErrorCategory = "quota_exceeded"
	CategoryInvalidInput  ErrorCategory = "invalid_input"
	CategoryUnknown       ErrorCategory = "unknown_error"
)

type FallbackMode string

const (
	FallbackRetry       FallbackMode = "retry"
	FallbackManualEntry FallbackMode = "manual_entry"
	FallbackNone        FallbackMode = ""
)

// ClassifiedError is the actionable taxonomy entry every failure resolves to.
// RetryAfter is in seconds; zero means no delay hint.
type ClassifiedError struct {
	Category   ErrorCategory `json:"category"`
	Retryable  bool          `json:"retryable"`
	RetryAfter int           `json:"retry_after,omitempty"`
	Fallback   FallbackMode  `json:"fallback_mode,omitempty"`
	Message    string        `json:"message"`
	Guidance   []string      `json:"guidance,omitempty"`
}

// UserFacingError is what callers are allowed to show: never a raw error
// string from the pipeline.
type UserFacingError struct {
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Actions []string `json:"actions"`
}

// UserFacing derives the presentable tuple from a classified error.
func (c ClassifiedError) UserFacing() UserFacingError {
	title := "Extraction failed"
	switch c.Category {
	case CategoryQuotaExceeded:
		title = "Limit reached"
	case CategoryImageQuality:
		title = "Image quality too low"
	case CategoryInvalidInput:
		title = "We couldn't use that image"
	}
	actions := c.Guidance
	if len(actions) == 0 {
		switch c.Fallback {
		case FallbackRetry:
			actions = []string{"Try again in a moment"}
		case FallbackManualEntry:
			actions = []string{"Enter the menu manually"}
		}
	}
	return UserFacingError{Title: title, Message: c.Message, Actions: actions}
}
