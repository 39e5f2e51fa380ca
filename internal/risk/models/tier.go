package models

import (
	dErrors "rollguard/pkg/domain-errors"
)

// Tier is the single closed severity vocabulary used for requests, flags and booths.
type Tier string

const (
	TierNormal      Tier = "Normal"
	TierNeedsReview Tier = "Needs Review"
	TierHighRisk    Tier = "High Risk"
	TierCritical    Tier = "Critical"
)

// Score thresholds for mapping an aggregated score to a tier.
const (
	CriticalScoreThreshold    = 90
	HighRiskScoreThreshold    = 70
	NeedsReviewScoreThreshold = 40
)

// IsValid checks if the tier is one of the supported values.
func (t Tier) IsValid() bool {
	switch t {
	case TierNormal, TierNeedsReview, TierHighRisk, TierCritical:
		return true
	}
	return false
}

// Rank orders tiers from Normal (0) to Critical (3).
func (t Tier) Rank() int {
	switch t {
	case TierNeedsReview:
		return 1
	case TierHighRisk:
		return 2
	case TierCritical:
		return 3
	default:
		return 0
	}
}

// IsHighSeverity reports whether the tier counts against roll hygiene.
func (t Tier) IsHighSeverity() bool {
	return t == TierHighRisk || t == TierCritical
}

func (t Tier) String() string {
	return string(t)
}

// ParseTier validates a tier name from an external filter.
func ParseTier(s string) (Tier, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tier cannot be empty")
	}
	t := Tier(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid tier: must be one of Normal, Needs Review, High Risk, Critical")
	}
	return t, nil
}

// TierForScore maps a final 0..100 score onto a tier.
func TierForScore(score int) Tier {
	switch {
	case score >= CriticalScoreThreshold:
		return TierCritical
	case score >= HighRiskScoreThreshold:
		return TierHighRisk
	case score >= NeedsReviewScoreThreshold:
		return TierNeedsReview
	default:
		return TierNormal
	}
}

// Max returns the more severe of two tiers.
func Max(a, b Tier) Tier {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
