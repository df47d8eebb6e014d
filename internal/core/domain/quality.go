package domain

type QualityTier string

const (
	QualityExcellent    QualityTier = "excellent"
	QualityGood         QualityTier = "good"
	QualityFair         QualityTier = "fair"
	QualityPoor         QualityTier = "poor"
	QualityUnacceptable QualityTier = "unacceptable"
)

// TierForConfidence buckets an aggregated confidence into a quality tier.
// Boundaries are inclusive: 0.90 is excellent, 0.75 good, 0.60 fair, 0.30 poor.
func TierForConfidence(confidence float64) QualityTier {
	switch {
	case confidence >= 0.90:
		return QualityExcellent
	case confidence >= 0.75:
		return QualityGood
	case confidence >= 0.60:
		return QualityFair
	case confidence >= 0.30:
		return QualityPoor
	default:
		return QualityUnacceptable
	}
}

// QualityAssessment is the proceed/block decision derived from the result
// tree's aggregated confidence, plus flags that force human review without
// blocking.
type QualityAssessment struct {
	OverallConfidence float64     `json:"overall_confidence"`
	Tier              QualityTier `json:"tier"`
	CanProceed        bool        `json:"can_proceed"`
	RequiresReview    bool        `json:"requires_review"`
	Issues            []string    `json:"issues,omitempty"`
}
