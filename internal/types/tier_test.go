package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierOrdering(t *testing.T) {
	t.Run("ranks are strictly increasing", func(t *testing.T) {
		tiers := Tiers()
		for i := 1; i < len(tiers); i++ {
			assert.Greater(t, tiers[i].Rank(), tiers[i-1].Rank())
		}
	})

	t.Run("economy is the floor and frontier the ceiling", func(t *testing.T) {
		assert.Equal(t, TierEconomy, Tiers()[0])
		assert.Equal(t, TierFrontier, Tiers()[len(Tiers())-1])
	})

	t.Run("unknown tier has negative rank and is invalid", func(t *testing.T) {
		bogus := ModelTier("mega")
		assert.Negative(t, bogus.Rank())
		assert.False(t, bogus.Valid())
	})

	t.Run("all declared tiers are valid", func(t *testing.T) {
		for _, tier := range Tiers() {
			assert.True(t, tier.Valid(), "tier %s", tier)
		}
	})
}

func TestTierComparisons(t *testing.T) {
	t.Run("AtLeast", func(t *testing.T) {
		assert.True(t, TierAdvanced.AtLeast(TierStandard))
		assert.True(t, TierAdvanced.AtLeast(TierAdvanced))
		assert.False(t, TierEconomy.AtLeast(TierStandard))
	})

	t.Run("MaxTier and MinTier", func(t *testing.T) {
		assert.Equal(t, TierFrontier, MaxTier(TierEconomy, TierFrontier))
		assert.Equal(t, TierEconomy, MinTier(TierEconomy, TierFrontier))
		assert.Equal(t, TierStandard, MaxTier(TierStandard, TierStandard))
	})

	t.Run("TierAbove walks up and stops at frontier", func(t *testing.T) {
		next, ok := TierAbove(TierEconomy)
		assert.True(t, ok)
		assert.Equal(t, TierStandard, next)

		_, ok = TierAbove(TierFrontier)
		assert.False(t, ok)
	})

	t.Run("TierBelow walks down and stops at economy", func(t *testing.T) {
		prev, ok := TierBelow(TierFrontier)
		assert.True(t, ok)
		assert.Equal(t, TierAdvanced, prev)

		_, ok = TierBelow(TierEconomy)
		assert.False(t, ok)
	})
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.42, Clamp01(0.42))
}
