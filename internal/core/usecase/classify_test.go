package usecase

import (
	"errors"
	"testing"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

func TestClassifyRateLimitIsRetryableWithDelay(t *testing.T) {
	classifier := NewErrorClassifier()

	classified := classifier.Classify(&domain.UpstreamError{
		Operation: "vision.extract.primary",
		Status:    429,
		Body:      `{"error":{"message":"Rate limit reached. Please try again in 12s.","type":"rate_limit_error"}}`,
	})

	if classified.Category != domain.CategoryAPIError {
		t.Fatalf("category = %q, want %q", classified.Category, domain.CategoryAPIError)
	}
	if !classified.Retryable {
		t.Fatal("429 should be retryable")
	}
	if classified.RetryAfter != 12 {
		t.Fatalf("retry after = %d, want 12", classified.RetryAfter)
	}
}

func TestClassifyRateLimitWithoutHintUsesDefaultDelay(t *testing.T) {
	classifier := NewErrorClassifier()

	classified := classifier.Classify(&domain.UpstreamError{Status: 429, Body: "slow down"})

	if classified.RetryAfter != defaultRateLimitDelay {
		t.Fatalf("retry after = %d, want %d", classified.RetryAfter, defaultRateLimitDelay)
	}
}

func TestClassifyAuthFailureIsNotRetryable(t *testing.T) {
	classifier := NewErrorClassifier()

	classified := classifier.Classify(&domain.UpstreamError{Status: 401, Body: "invalid api key"})

	if classified.Retryable {
		t.Fatal("401 must not be retryable")
	}
	if classified.Fallback != domain.FallbackManualEntry {
		t.Fatalf("fallback = %q, want %q", classified.Fallback, domain.FallbackManualEntry)
	}
}

func TestClassifyTokenLimit400SuggestsManualEntry(t *testing.T) {
	classifier := NewErrorClassifier()

	classified := classifier.Classify(&domain.UpstreamError{
		Status: 400,
		Body:   `{"error":{"message":"This model's maximum context length is exceeded, reduce token count"}}`,
	})

	if classified.Category != domain.CategoryInvalidInput {
		t.Fatalf("category = %q, want %q", classified.Category, domain.CategoryInvalidInput)
	}
	if classified.Fallback != domain.FallbackManualEntry {
		t.Fatalf("fallback = %q, want %q", classified.Fallback, domain.FallbackManualEntry)
	}
}

func TestClassifyQuotaExceeded(t *testing.T) {
	classifier := NewErrorClassifier()

	err := domain.WrapError(domain.ErrQuotaExceeded, "jobs.submit", errors.New("monthly limit reached"))
	classified := classifier.Classify(err)

	if classified.Category != domain.CategoryQuotaExceeded {
		t.Fatalf("category = %q, want %q", classified.Category, domain.CategoryQuotaExceeded)
	}
	if classified.Retryable {
		t.Fatal("quota exhaustion must not be retryable")
	}
	if classified.RetryAfter != 0 {
		t.Fatalf("retry after = %d, want no hint for a plan quota", classified.RetryAfter)
	}
}

func TestClassifyRateLimitedCarriesResetDelay(t *testing.T) {
	classifier := NewErrorClassifier()

	err := domain.WrapError(domain.ErrRateLimited, "jobs.rate_limit", errors.New("hourly limit reached"))
	classified := classifier.Classify(err)

	if classified.Category != domain.CategoryQuotaExceeded {
		t.Fatalf("category = %q, want %q", classified.Category, domain.CategoryQuotaExceeded)
	}
	if classified.RetryAfter != rateLimitResetDelay {
		t.Fatalf("retry after = %d, want %d", classified.RetryAfter, rateLimitResetDelay)
	}
	if classified.Fallback != domain.FallbackManualEntry {
		t.Fatalf("fallback = %q, want manual entry", classified.Fallback)
	}
}

func TestClassifyValidationPartialSuccess(t *testing.T) {
	classifier := NewErrorClassifier()

	partial := classifier.ClassifyValidation(3)
	if partial.Retryable {
		t.Fatal("a partial success should not schedule a retry")
	}
	if partial.Fallback != domain.FallbackNone {
		t.Fatalf("fallback = %q, want none", partial.Fallback)
	}

	empty := classifier.ClassifyValidation(0)
	if !empty.Retryable {
		t.Fatal("validation failure without recovered items should be retryable")
	}
}
