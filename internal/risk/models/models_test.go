package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollguard/pkg/domain-errors"
)

func TestTierForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Tier
	}{
		{0, TierNormal},
		{39, TierNormal},
		{40, TierNeedsReview},
		{69, TierNeedsReview},
		{70, TierHighRisk},
		{89, TierHighRisk},
		{90, TierCritical},
		{100, TierCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForScore(tt.score), "score %d", tt.score)
	}
}

func TestTierMonotonic(t *testing.T) {
	prev := TierForScore(0)
	for score := 1; score <= 100; score++ {
		cur := TierForScore(score)
		assert.GreaterOrEqual(t, cur.Rank(), prev.Rank(), "tier dropped at score %d", score)
		prev = cur
	}
}

func TestParseTier(t *testing.T) {
	got, err := ParseTier("High Risk")
	require.NoError(t, err)
	assert.Equal(t, TierHighRisk, got)

	_, err = ParseTier("Medium")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	assert.True(t, TierCritical.IsHighSeverity())
	assert.False(t, TierNeedsReview.IsHighSeverity())
	assert.Equal(t, TierCritical, Max(TierHighRisk, TierCritical))
}

func TestNewFlag(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("valid flag is unresolved", func(t *testing.T) {
		f, err := NewFlag(EntityBooth, "B-1", TierCritical, 100, RuleCountMismatchCritical, "Form 17A vs 17C Mismatch", "diff 12", now)
		require.NoError(t, err)
		assert.False(t, f.Resolved)
		assert.False(t, f.ID.IsNil())
		assert.Equal(t, now, f.CreatedAt)
	})

	t.Run("rejects normal tier", func(t *testing.T) {
		_, err := NewFlag(EntityBooth, "B-1", TierNormal, 0, RuleCountMismatchCritical, "", "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects empty entity", func(t *testing.T) {
		_, err := NewFlag(EntityForm17A, " ", TierHighRisk, 100, RuleCrossBoothDuplicate, "", "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("resolution is one-way", func(t *testing.T) {
		f, err := NewFlag(EntityVoterRequest, "req-1", TierCritical, 100, RuleUnderageApplicant, "", "", now)
		require.NoError(t, err)
		require.True(t, f.CanResolve())
		f.ApplyResolve("officer-1", now.Add(time.Hour))
		assert.False(t, f.CanResolve())
		assert.Equal(t, "officer-1", f.ResolvedBy)

		c := f.Clone()
		*c.ResolvedAt = now
		assert.Equal(t, now.Add(time.Hour), *f.ResolvedAt)
	})
}

func TestFlagFilterMatches(t *testing.T) {
	now := time.Now()
	f, err := NewFlag(EntityBooth, "B-1", TierHighRisk, 100, RuleCountMismatchCritical, "", "", now)
	require.NoError(t, err)

	assert.True(t, FlagFilter{}.Matches(f))
	assert.True(t, FlagFilter{Tiers: []Tier{TierHighRisk, TierCritical}}.Matches(f))
	assert.False(t, FlagFilter{Tiers: []Tier{TierCritical}}.Matches(f))
	assert.False(t, FlagFilter{EntityType: EntityForm17A}.Matches(f))
	assert.True(t, FlagFilter{Resolved: Unresolved()}.Matches(f))
	assert.False(t, FlagFilter{RuleID: RuleCrossBoothDuplicate}.Matches(f))

	f.ApplyResolve("officer", now)
	assert.False(t, FlagFilter{Resolved: Unresolved()}.Matches(f))
}
