// Package secondorder gates high-impact actions on their downstream
// consequences. Callers supply an effects analysis; actions whose impact
// class demands one are blocked until it arrives, and analyses showing high
// uncertainty or incentive risk are escalated to human review.
package secondorder

import (
	"ceopilot/internal/logging"
	"ceopilot/internal/schema"
	"ceopilot/internal/types"
)

// Decision reason tags.
const (
	ReasonEffectsRequired = "second_order_effects_required"
	ReasonEffectsInvalid  = "second_order_effects_invalid"
	ReasonHighUncertainty = "second_order_high_uncertainty"
	ReasonIncentiveRisk   = "second_order_incentive_risk"
)

// Policy configures the assessor.
type Policy struct {
	// RequiredImpacts are the impact classes that must carry an effects
	// payload before the action may proceed.
	RequiredImpacts map[types.Impact]bool

	// UncertaintyThreshold at or above which an analysis escalates.
	UncertaintyThreshold float64
}

// DefaultPolicy requires effects analyses for difficult and irreversible
// actions and escalates at 0.7 uncertainty.
func DefaultPolicy() Policy {
	return Policy{
		RequiredImpacts: map[types.Impact]bool{
			types.ImpactDifficult:    true,
			types.ImpactIrreversible: true,
		},
		UncertaintyThreshold: 0.7,
	}
}

// Evaluate gates the action. Pure function of its inputs.
func Evaluate(impact types.Impact, effects *types.SecondOrderEffects, policy Policy) (types.SecondOrderDecision, error) {
	decision := types.SecondOrderDecision{CheckedAt: types.NowUTC()}

	if effects == nil {
		if policy.RequiredImpacts[impact] {
			decision.Reason = ReasonEffectsRequired
		} else {
			decision.Allowed = true
		}
		return finish(decision)
	}

	if err := schema.ValidateSecondOrderEffects(*effects); err != nil {
		logging.SecondOrder("rejected malformed effects payload: %v", err)
		decision.Reason = ReasonEffectsInvalid
		return finish(decision)
	}

	decision.Uncertainty = effects.Uncertainty
	decision.IncentiveRisks = effects.IncentiveRisks

	switch {
	case effects.Uncertainty >= policy.UncertaintyThreshold:
		decision.Reason = ReasonHighUncertainty
		decision.RequiresHumanReview = true
	case len(effects.IncentiveRisks) > 0:
		decision.Reason = ReasonIncentiveRisk
		decision.RequiresHumanReview = true
	default:
		decision.Allowed = true
	}

	return finish(decision)
}

func finish(decision types.SecondOrderDecision) (types.SecondOrderDecision, error) {
	if err := schema.ValidateSecondOrderDecision(decision); err != nil {
		return types.SecondOrderDecision{}, err
	}
	if !decision.Allowed {
		logging.SecondOrder("blocked action (reason=%s, uncertainty=%.2f, risks=%d)",
			decision.Reason, decision.Uncertainty, len(decision.IncentiveRisks))
	}
	return decision, nil
}
