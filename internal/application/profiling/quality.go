package profiling

import (
	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// Quality thresholds.
const (
	LowCoverageThreshold   = 0.02
	LowConfidenceThreshold = 0.6
)

// Short names for red flags, used as metric labels.
const (
	FlagLowCoverage   = "low_coverage"
	FlagLowConfidence = "low_confidence"
)

var flagNames = map[string]string{
	profile.RedFlagLowCoverage:   FlagLowCoverage,
	profile.RedFlagLowConfidence: FlagLowConfidence,
}

// FlagName maps a red flag message to its short name.
func FlagName(flag string) string {
	if n, ok := flagNames[flag]; ok {
		return n
	}
	return "other"
}

// QualityReport computes coverage and confidence signals for a document of
// textLen runes. With no spans both ratios are 0 and both red flags are set.
func QualityReport(textLen int, spans []profile.EntitySpan) profile.Quality {
	covered := 0
	sum := 0.0
	for _, s := range spans {
		covered += s.Len()
		sum += s.Confidence
	}
	denom := textLen
	if denom < 1 {
		denom = 1
	}
	coverage := textnorm.Round(float64(covered)/float64(denom), 4)
	mean := 0.0
	if len(spans) > 0 {
		mean = textnorm.Round(sum/float64(len(spans)), 3)
	}

	flags := []string{}
	if coverage < LowCoverageThreshold {
		flags = append(flags, profile.RedFlagLowCoverage)
	}
	if mean < LowConfidenceThreshold {
		flags = append(flags, profile.RedFlagLowConfidence)
	}
	return profile.Quality{
		TextLength:         textLen,
		SpanCount:          len(spans),
		CoverageRatio:      coverage,
		MeanSpanConfidence: mean,
		RedFlags:           flags,
	}
}
