// Package epistemic gates agent actions on precedent and evidence: an
// action either looks enough like prior work and carries enough evidence,
// or it must go through exploration mode / human review.
package epistemic

import (
	"ceopilot/internal/logging"
	"ceopilot/internal/schema"
	"ceopilot/internal/types"
)

// Decision reason tags.
const (
	ReasonExplorationRequired     = "epistemic_exploration_required"
	ReasonIrreversibleExploration = "epistemic_irreversible_exploration"
)

// requiredEvidence maps impact level to the number of evidence references
// an action must carry before it is considered epistemically grounded.
var requiredEvidence = map[types.Impact]int{
	types.ImpactReversible:   1,
	types.ImpactDifficult:    2,
	types.ImpactIrreversible: 3,
}

// Inputs is everything the assessor needs. TaskHistory holds the raw
// descriptions of previously executed tasks for the same identity.
type Inputs struct {
	ActionDescription string
	TaskHistory       []string
	EvidenceRefs      []string
	Impact            types.Impact
	ExplorationMode   bool

	// NoveltyThreshold above which an action counts as novel. Zero means
	// use the default.
	NoveltyThreshold float64
}

// DefaultNoveltyThreshold is applied when Inputs.NoveltyThreshold is unset.
const DefaultNoveltyThreshold = 0.6

// Assess computes novelty against history and checks evidence sufficiency.
// Pure function: same inputs, same decision (modulo CheckedAt).
func Assess(in Inputs) (types.EpistemicDecision, error) {
	threshold := in.NoveltyThreshold
	if threshold <= 0 {
		threshold = DefaultNoveltyThreshold
	}

	required, ok := requiredEvidence[in.Impact]
	if !ok {
		required = requiredEvidence[types.ImpactIrreversible]
	}

	novelty := NoveltyScore(in.ActionDescription, in.TaskHistory)
	sufficient := len(in.EvidenceRefs) >= required

	decision := types.EpistemicDecision{
		NoveltyScore:     novelty,
		EvidenceCount:    len(in.EvidenceRefs),
		RequiredEvidence: required,
		CheckedAt:        types.NowUTC(),
	}

	switch {
	case novelty < threshold && sufficient:
		decision.Allowed = true

	case in.ExplorationMode:
		if in.Impact == types.ImpactIrreversible {
			// Irreversible actions never ride on exploration mode.
			decision.Allowed = false
			decision.Reason = ReasonIrreversibleExploration
			decision.RequiresHumanReview = true
		} else {
			decision.Allowed = true
		}

	default:
		decision.Allowed = false
		decision.Reason = ReasonExplorationRequired
		decision.RequiresHumanReview = in.Impact != types.ImpactReversible || !sufficient
	}

	if err := schema.ValidateEpistemicDecision(decision); err != nil {
		return types.EpistemicDecision{}, err
	}

	if !decision.Allowed {
		logging.Epistemic("blocked action (novelty=%.2f, evidence=%d/%d, reason=%s)",
			novelty, decision.EvidenceCount, required, decision.Reason)
	}
	return decision, nil
}
