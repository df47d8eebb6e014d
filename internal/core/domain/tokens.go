package domain

import "math"

// TokenUsage records the model-reported token counts for one extraction and
// the deterministic cost estimate derived from them. Immutable once set on a
// job.
type TokenUsage struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	TotalTokens   int     `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// ModelPricing is USD per one million tokens.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// visionModelPrices is the fixed price table for the models the pipeline may
// dispatch to. Unknown models fall back to the default entry.
var visionModelPrices = map[string]ModelPricing{
	"gpt-4o":      {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini": {InputPerMTok: 0.15, OutputPerMTok: 0.60},
}

var defaultVisionPricing = ModelPricing{InputPerMTok: 2.50, OutputPerMTok: 10.00}

// PricingForModel returns the price table entry for model.
func PricingForModel(model string) ModelPricing {
	if p, ok := visionModelPrices[model]; ok {
		return p
	}
	return defaultVisionPricing
}

// NewTokenUsage computes the estimated cost from the per-million-token price
// table, rounded to 4 decimals.
func NewTokenUsage(model string, inputTokens, outputTokens int) TokenUsage {
	pricing := PricingForModel(model)
	cost := pricing.InputPerMTok*float64(inputTokens)/1e6 +
		pricing.OutputPerMTok*float64(outputTokens)/1e6
	return TokenUsage{
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		TotalTokens:   inputTokens + outputTokens,
		EstimatedCost: math.Round(cost*1e4) / 1e4,
	}
}
