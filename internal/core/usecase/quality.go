package usecase

import (
	"fmt"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

const (
	uncertainItemsReview   = 5
	uncertainItemsEscalate = 10
)

// QualityAssessor maps a result tree's aggregated confidence to a discrete
// tier and a proceed/block decision.
type QualityAssessor struct{}

func NewQualityAssessor() *QualityAssessor {
	return &QualityAssessor{}
}

// Assess averages every confidence in the tree (categories and items,
// through subcategories) and derives the tier. Only the unacceptable tier
// blocks; fair and poor proceed flagged for mandatory review. Secondary
// flags are independent of the tier.
func (a *QualityAssessor) Assess(result *domain.ExtractionResult, uncertainItems []domain.UncertainItem) domain.QualityAssessment {
	values := result.ConfidenceValues()
	var overall float64
	if len(values) > 0 {
		var sum float64
		for _, v := range values {
			sum += v
		}
		overall = sum / float64(len(values))
	}

	tier := domain.TierForConfidence(overall)
	assessment := domain.QualityAssessment{
		OverallConfidence: overall,
		Tier:              tier,
		CanProceed:        tier != domain.QualityUnacceptable,
		RequiresReview:    tier == domain.QualityFair || tier == domain.QualityPoor,
	}

	switch n := len(uncertainItems); {
	case n > uncertainItemsEscalate:
		assessment.Issues = append(assessment.Issues,
			fmt.Sprintf("%d uncertain items; the extraction likely missed large parts of the menu", n))
	case n > uncertainItemsReview:
		assessment.Issues = append(assessment.Issues,
			fmt.Sprintf("%d uncertain items need review", n))
	}
	for _, name := range result.EmptyCategories() {
		assessment.Issues = append(assessment.Issues,
			fmt.Sprintf("category %q came back empty", name))
	}
	return assessment
}

// HandleImageQualityIssue turns an assessment into the caller-facing
// outcome: nil for excellent/good, a review-required partial response for
// fair/poor, and a hard manual-entry failure for unacceptable.
func (a *QualityAssessor) HandleImageQualityIssue(assessment domain.QualityAssessment) *domain.ClassifiedError {
	switch assessment.Tier {
	case domain.QualityExcellent, domain.QualityGood:
		return nil
	case domain.QualityFair, domain.QualityPoor:
		return &domain.ClassifiedError{
			Category:  domain.CategoryImageQuality,
			Retryable: false,
			Fallback:  domain.FallbackNone,
			Message:   fmt.Sprintf("Extraction finished with %s confidence; please review the results before publishing.", assessment.Tier),
			Guidance: []string{
				"Review and correct the extracted items",
				"Retake the photo in better light for a cleaner pass",
			},
		}
	default:
		return &domain.ClassifiedError{
			Category:  domain.CategoryImageQuality,
			Retryable: false,
			Fallback:  domain.FallbackManualEntry,
			Message:   "The photo was too unclear to extract a usable menu.",
			Guidance: []string{
				"Retake the photo straight-on, in focus, with the whole menu visible",
				"Enter the menu manually",
			},
		}
	}
}
