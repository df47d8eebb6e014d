package domain

import "testing"

func TestTierForConfidenceBoundaries(t *testing.T) {
	cases := []struct {
		confidence float64
		want       QualityTier
	}{
		{1.0, QualityExcellent},
		{0.90, QualityExcellent},
		{0.89, QualityGood},
		{0.75, QualityGood},
		{0.74, QualityFair},
		{0.60, QualityFair},
		{0.59, QualityPoor},
		{0.30, QualityPoor},
		{0.29, QualityUnacceptable},
		{0.0, QualityUnacceptable},
	}
	for _, tc := range cases {
		if got := TierForConfidence(tc.confidence); got != tc.want {
			t.Errorf("TierForConfidence(%v) = %q, want %q", tc.confidence, got, tc.want)
		}
	}
}
