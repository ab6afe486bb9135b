package types

// ModelTier is a capability/cost class in the model catalog. Tiers form a
// total order; all comparisons go through Rank so the order lives in
// exactly one place.
type ModelTier string

const (
	TierEconomy  ModelTier = "economy"
	TierStandard ModelTier = "standard"
	TierAdvanced ModelTier = "advanced"
	TierFrontier ModelTier = "frontier"
)

// tierOrder is the single source of truth for tier ordering, cheapest
// first.
var tierOrder = []ModelTier{TierEconomy, TierStandard, TierAdvanced, TierFrontier}

// Tiers returns all tiers in ascending capability order.
func Tiers() []ModelTier {
	out := make([]ModelTier, len(tierOrder))
	copy(out, tierOrder)
	return out
}

// Rank returns the tier's position in the order, -1 for unknown tiers.
func (t ModelTier) Rank() int {
	for i, tier := range tierOrder {
		if tier == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is a declared tier.
func (t ModelTier) Valid() bool {
	return t.Rank() >= 0
}

// AtLeast reports whether t is at or above other in the order.
func (t ModelTier) AtLeast(other ModelTier) bool {
	return t.Rank() >= other.Rank()
}

// MaxTier returns the higher of a and b.
func MaxTier(a, b ModelTier) ModelTier {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// MinTier returns the lower of a and b.
func MinTier(a, b ModelTier) ModelTier {
	if a.Rank() <= b.Rank() {
		return a
	}
	return b
}

// TierAbove returns the next tier up, false at the top of the order.
func TierAbove(t ModelTier) (ModelTier, bool) {
	rank := t.Rank()
	if rank < 0 || rank >= len(tierOrder)-1 {
		return t, false
	}
	return tierOrder[rank+1], true
}

// TierBelow returns the next tier down, false at the bottom of the order.
func TierBelow(t ModelTier) (ModelTier, bool) {
	rank := t.Rank()
	if rank <= 0 {
		return t, false
	}
	return tierOrder[rank-1], true
}
