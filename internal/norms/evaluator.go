// Package norms evaluates proposed agent actions against the behavioral-norm
// rule table. Evaluation is a pure function: tags in, decision out, no state.
package norms

import (
	"strings"

	"ceopilot/internal/logging"
	"ceopilot/internal/schema"
	"ceopilot/internal/types"
)

// Decision reason tags. Machine-readable so an upstream review UI can
// render blocks without parsing prose.
const (
	ReasonViolationHard         = "norm_violation_hard"
	ReasonJustificationRequired = "norm_justification_required"
	ReasonViolationAcknowledged = "norm_violation_acknowledged"
)

// Evaluate matches the action's tags against the rule table and decides
// allow/block/escalate.
//
// Hard violations always block and always require human review; a
// justification never overrides them. Soft violations block until a
// justification is supplied, then pass with the human-review flag set for
// visibility.
func Evaluate(actionTags []string, justification string, rules []types.NormRule) (types.NormDecision, error) {
	tagSet := make(map[string]struct{}, len(actionTags))
	for _, t := range actionTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tagSet[t] = struct{}{}
		}
	}

	var violations []types.NormRule
	hard := false
	for _, rule := range rules {
		for _, trigger := range rule.TriggerTags {
			if _, ok := tagSet[strings.ToLower(trigger)]; ok {
				violations = append(violations, rule)
				if rule.Severity == types.SeverityHard {
					hard = true
				}
				break
			}
		}
	}

	decision := types.NormDecision{
		Allowed:    true,
		Violations: violations,
		CheckedAt:  types.NowUTC(),
	}

	switch {
	case len(violations) == 0:
		// Clean action.
	case hard:
		decision.Allowed = false
		decision.Reason = ReasonViolationHard
		decision.RequiresHumanReview = true
	case strings.TrimSpace(justification) == "":
		decision.Allowed = false
		decision.Reason = ReasonJustificationRequired
	default:
		decision.Reason = ReasonViolationAcknowledged
		decision.RequiresHumanReview = true
	}

	if err := schema.ValidateNormDecision(decision); err != nil {
		return types.NormDecision{}, err
	}

	if !decision.Allowed {
		logging.Norms("blocked action (reason=%s, violations=%d)", decision.Reason, len(violations))
	}
	return decision, nil
}
