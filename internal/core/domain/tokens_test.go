package domain

import "testing"

func TestNewTokenUsageComputesRoundedCost(t *testing.T) {
	usage := NewTokenUsage("gpt-4o", 1200, 300)

	if usage.TotalTokens != 1500 {
		t.Fatalf("total tokens = %d, want 1500", usage.TotalTokens)
	}
	// 1200*2.50/1e6 + 300*10.00/1e6 = 0.006.
	if usage.EstimatedCost != 0.006 {
		t.Fatalf("cost = %v, want 0.006", usage.EstimatedCost)
	}
}

func TestNewTokenUsageRoundsToFourDecimals(t *testing.T) {
	// 12345*2.50/1e6 + 678*10.00/1e6 = 0.03764250, rounds to 0.0376.
	usage := NewTokenUsage("gpt-4o", 12345, 678)
	if usage.EstimatedCost != 0.0376 {
		t.Fatalf("cost = %v, want 0.0376", usage.EstimatedCost)
	}
}

func TestNewTokenUsageUnknownModelUsesDefaultPricing(t *testing.T) {
	known := NewTokenUsage("gpt-4o", 1000, 1000)
	unknown := NewTokenUsage("gpt-future", 1000, 1000)
	if known.EstimatedCost != unknown.EstimatedCost {
		t.Fatalf("unknown model cost %v must match default %v", unknown.EstimatedCost, known.EstimatedCost)
	}
}
