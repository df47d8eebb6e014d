package openai

import "time"

// AttemptProfile is one rung of the fidelity ladder. Profiles are tried in
// order until one succeeds or the ladder is exhausted; later rungs trade
// completeness for a higher chance of success on very large or dense menus.
type AttemptProfile struct {
	Name            string
	ImageDetail     string
	IncludeExamples bool
	MaxOutputTokens int
	Timeout         time.Duration
}

// DefaultProfiles returns the standard two-rung ladder: a high-fidelity
// primary attempt and a degraded fallback with reduced image detail, no
// examples, and a smaller output ceiling.
func DefaultProfiles() []AttemptProfile {
	return []AttemptProfile{
		{
			Name:            "primary",
			ImageDetail:     "high",
			IncludeExamples: true,
			MaxOutputTokens: 16384,
			Timeout:         120 * time.Second,
		},
		{
			Name:            "degraded",
			ImageDetail:     "low",
			IncludeExamples: false,
			MaxOutputTokens: 8192,
			Timeout:         90 * time.Second,
		},
	}
}
