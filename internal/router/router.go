// Package router resolves which model tier may execute a proposed agent
// action. Resolution is a deterministic state machine over competing
// constraints: hard risk floors, reasoning-depth preference, historical
// cost/quality, per-identity caps, emergency ceilings, catalog capacity,
// and budget. Every factor that shaped a decision is appended to its
// justification trail, and every (request, decision) pair is written to the
// append-only audit store.
package router

import (
	"fmt"
	"math"
	"sort"

	"ceopilot/internal/control"
	"ceopilot/internal/logging"
	"ceopilot/internal/schema"
	"ceopilot/internal/types"
)

// Config holds the router's thresholds.
type Config struct {
	// Novelty/ambiguity levels that raise the preferred tier.
	StandardNoveltyThreshold float64
	AdvancedNoveltyThreshold float64

	// Cost-aware downgrade gates, applied only to routine tasks.
	MinSamples                  int
	QualityFloor                float64
	PassRateFloor               float64
	QualityImprovementThreshold float64
}

// DefaultConfig returns the shipped thresholds.
func DefaultConfig() Config {
	return Config{
		StandardNoveltyThreshold:    0.4,
		AdvancedNoveltyThreshold:    0.7,
		MinSamples:                  5,
		QualityFloor:                0.7,
		PassRateFloor:               0.8,
		QualityImprovementThreshold: 0.15,
	}
}

// Router resolves routing requests against a model catalog.
type Router struct {
	catalog  []types.ModelSpec
	outcomes types.OutcomeStore
	controls *control.Manager
	audit    types.AuditStore
	config   Config
}

// New builds a router. The catalog must be non-empty with valid tiers;
// outcome history, controls, and audit are required collaborators.
func New(catalog []types.ModelSpec, outcomes types.OutcomeStore, controls *control.Manager, audit types.AuditStore, cfg Config) (*Router, error) {
	if len(catalog) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}
	for _, spec := range catalog {
		if !spec.Tier.Valid() {
			return nil, fmt.Errorf("model %s has unknown tier %q", spec.ID, spec.Tier)
		}
		if spec.MaxTokens <= 0 {
			return nil, fmt.Errorf("model %s has non-positive capacity", spec.ID)
		}
	}
	if outcomes == nil || controls == nil || audit == nil {
		return nil, fmt.Errorf("router requires outcome, control, and audit collaborators")
	}

	specs := make([]types.ModelSpec, len(catalog))
	copy(specs, catalog)
	return &Router{catalog: specs, outcomes: outcomes, controls: controls, audit: audit, config: cfg}, nil
}

// Route resolves one request to a decision and appends the pair to the
// audit trail. Schema-invalid requests error; policy outcomes (over budget,
// capped tiers) are expressed in the decision, never as errors.
func (r *Router) Route(identity string, req types.ModelRoutingRequest) (types.ModelRoutingDecision, error) {
	if err := schema.ValidateRoutingRequest(req); err != nil {
		return types.ModelRoutingDecision{}, err
	}

	var trail []string
	tag := func(format string, args ...any) {
		trail = append(trail, fmt.Sprintf(format, args...))
	}

	// Step 1: minimum tier from hard constraints.
	minTier := r.minimumTier(req, tag)

	// Step 2: preferred tier from reasoning depth and novelty/ambiguity,
	// combined with the minimum by taking the higher.
	tier := types.MaxTier(minTier, r.preferredTier(req, tag))

	// Step 3: cost-aware downgrade from outcome history (routine only).
	tier = r.applyCostHistory(identity, req, tier, minTier, tag)

	// Step 4: external caps, each a ceiling that may only lower the tier
	// and never push it below the minimum.
	tier, minTier = r.applyCaps(identity, tier, minTier, tag)

	// Step 5: model selection within the resolved tier.
	spec, selectedTier := r.selectModel(tier, req.ExpectedTokens, tag)
	tier = selectedTier

	// Step 6: budget check with downgrade, never below the minimum tier.
	spec, tier, withinBudget := r.applyBudget(req, spec, tier, minTier, tag)

	tag("tier:%s", tier)
	logging.RouterDebug("justification for %s: %v", req.RequestID, trail)

	decision := types.ModelRoutingDecision{
		DecisionID:         types.NewID(),
		RequestID:          req.RequestID,
		SelectedModel:      spec.ID,
		Tier:               tier,
		Justification:      trail,
		EstimatedCostCents: estimateCostCents(spec, req.ExpectedTokens),
		WithinBudget:       withinBudget,
		CreatedAt:          types.NowUTC(),
	}

	entry := types.AuditEntry{
		EntryID:    types.NewID(),
		Request:    req,
		Decision:   decision,
		RecordedAt: decision.CreatedAt,
	}
	if err := r.audit.AppendAudit(identity, entry); err != nil {
		return types.ModelRoutingDecision{}, fmt.Errorf("append audit entry: %w", err)
	}

	logging.Router("routed %s -> %s/%s (cost=%dc, within_budget=%v)",
		req.RequestID, decision.Tier, decision.SelectedModel, decision.EstimatedCostCents, withinBudget)
	logging.Get(logging.CategoryAudit).StructuredLog("info", "decision recorded", map[string]any{
		"decision_id":   decision.DecisionID,
		"request_id":    req.RequestID,
		"tier":          string(decision.Tier),
		"model":         decision.SelectedModel,
		"cost_cents":    decision.EstimatedCostCents,
		"within_budget": withinBudget,
	})
	return decision, nil
}

// minimumTier derives the hard floor no later stage may go below.
func (r *Router) minimumTier(req types.ModelRoutingRequest, tag func(string, ...any)) types.ModelTier {
	min := types.TierEconomy
	switch {
	case req.RequiresArbitration:
		min = types.TierFrontier
		tag("arbitration_required")
	case req.Irreversible:
		min = types.TierFrontier
		tag("irreversible")
	case req.ComplianceSensitive:
		min = types.TierFrontier
		tag("compliance_sensitive")
	case req.TaskClass == types.TaskClassHighRisk:
		min = types.TierFrontier
		tag("task_class:high_risk")
	case req.RiskLevel == types.RiskHigh || req.RiskLevel == types.RiskCritical:
		min = types.TierFrontier
		tag("risk:%s", req.RiskLevel)
	case req.RiskLevel == types.RiskMedium:
		min = types.TierAdvanced
		tag("risk:medium")
	}
	tag("min_tier:%s", min)
	return min
}

// preferredTier seeds from reasoning depth, raised by novelty/ambiguity.
func (r *Router) preferredTier(req types.ModelRoutingRequest, tag func(string, ...any)) types.ModelTier {
	preferred := types.TierEconomy
	switch req.ReasoningDepth {
	case types.DepthMedium:
		preferred = types.TierStandard
	case types.DepthDeep:
		preferred = types.TierAdvanced
	}
	tag("depth:%s", req.ReasoningDepth)

	signal := math.Max(req.NoveltyScore, req.AmbiguityScore)
	switch {
	case signal >= r.config.AdvancedNoveltyThreshold:
		preferred = types.MaxTier(preferred, types.TierAdvanced)
		tag("novelty_raise:advanced")
	case signal >= r.config.StandardNoveltyThreshold:
		preferred = types.MaxTier(preferred, types.TierStandard)
		tag("novelty_raise:standard")
	}
	return preferred
}

// applyCostHistory downgrades routine tasks to the cheapest historically
// reliable tier at or above the minimum, unless the preferred tier shows a
// verified quality gain large enough to hold it.
func (r *Router) applyCostHistory(identity string, req types.ModelRoutingRequest, tier, minTier types.ModelTier, tag func(string, ...any)) types.ModelTier {
	if req.TaskClass != types.TaskClassRoutine {
		return tier
	}

	records, err := r.outcomes.ListOutcomes(identity, req.Task)
	if err != nil {
		logging.Get(logging.CategoryRouter).Warn("outcome history unavailable for %s: %v", req.Task, err)
		return tier
	}
	if len(records) < r.config.MinSamples {
		return tier
	}

	stats := aggregateByTier(records)

	// Cheapest tier at or above the floor that clears both quality gates.
	var cheaper *types.ModelTier
	for _, candidate := range types.Tiers() {
		if !candidate.AtLeast(minTier) || candidate.Rank() >= tier.Rank() {
			continue
		}
		s := stats[candidate]
		if s.Count >= r.config.MinSamples && s.AvgQuality() >= r.config.QualityFloor && s.PassRate() >= r.config.PassRateFloor {
			c := candidate
			cheaper = &c
			break
		}
	}
	if cheaper == nil {
		return tier
	}

	// A verified quality gain at the preferred tier blocks the downgrade.
	gain := stats[tier].AvgQuality() - stats[*cheaper].AvgQuality()
	if stats[tier].Count >= r.config.MinSamples && gain > r.config.QualityImprovementThreshold {
		tag("quality_hold:%s", tier)
		return tier
	}

	tag("cost_downgrade:%s", *cheaper)
	return *cheaper
}

// applyCaps applies the successive external ceilings. Each cap may only
// lower the tier; the preference minimum raises the floor. Returns the
// resolved tier and the (possibly raised) minimum tier. A failed lookup is
// logged and applies no cap.
func (r *Router) applyCaps(identity string, tier, minTier types.ModelTier, tag func(string, ...any)) (types.ModelTier, types.ModelTier) {
	ceiling := func(cap types.ModelTier, label string) {
		capped := types.MaxTier(types.MinTier(tier, cap), minTier)
		if capped != tier {
			tier = capped
		}
		tag("%s:%s", label, cap)
	}

	if cap, err := r.controls.CostCap(identity); err != nil {
		logging.Get(logging.CategoryRouter).Warn("cost cap lookup failed for %s: %v", identity, err)
	} else if cap != nil {
		ceiling(*cap, "cost_cap")
	}

	if pref, err := r.controls.ActivePreference(identity); err != nil {
		logging.Get(logging.CategoryRouter).Warn("routing preference lookup failed for %s: %v", identity, err)
	} else if pref != nil {
		if pref.MinTier != nil {
			minTier = types.MaxTier(minTier, *pref.MinTier)
			tier = types.MaxTier(tier, minTier)
			tag("preference_min:%s", *pref.MinTier)
		}
		if pref.MaxTier != nil {
			ceiling(*pref.MaxTier, "preference_max")
		}
	}

	if profile, err := r.controls.Profile(identity); err != nil {
		logging.Get(logging.CategoryRouter).Warn("control profile lookup failed for %s: %v", identity, err)
	} else if profile.MaxModelTier != nil {
		ceiling(*profile.MaxModelTier, "human_cap")
	}

	if mode, err := r.controls.Emergency(); err != nil {
		logging.Get(logging.CategoryRouter).Warn("emergency mode lookup failed: %v", err)
	} else if mode != nil {
		ceiling(mode.MaxTier, "emergency_cap")
	}

	return tier, minTier
}

// selectModel picks the cheapest model in the tier with enough token
// capacity, walking up through tiers on capacity shortfall and falling
// back to the highest-capacity model overall.
func (r *Router) selectModel(tier types.ModelTier, expectedTokens int, tag func(string, ...any)) (types.ModelSpec, types.ModelTier) {
	current := tier
	for {
		if spec, ok := r.cheapestWithCapacity(current, expectedTokens); ok {
			return spec, current
		}
		next, ok := types.TierAbove(current)
		if !ok {
			break
		}
		current = next
	}

	// Nothing in the catalog has capacity; take the biggest model there is.
	best := r.catalog[0]
	for _, spec := range r.catalog[1:] {
		if spec.MaxTokens > best.MaxTokens {
			best = spec
		}
	}
	tag("capacity_exceeded")
	return best, best.Tier
}

// cheapestWithCapacity returns the cheapest spec in the tier that can hold
// the expected tokens.
func (r *Router) cheapestWithCapacity(tier types.ModelTier, expectedTokens int) (types.ModelSpec, bool) {
	var candidates []types.ModelSpec
	for _, spec := range r.catalog {
		if spec.Tier == tier && spec.MaxTokens >= expectedTokens {
			candidates = append(candidates, spec)
		}
	}
	if len(candidates) == 0 {
		return types.ModelSpec{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CostPer1KTokensCents < candidates[j].CostPer1KTokensCents
	})
	return candidates[0], true
}

// applyBudget downgrades tier-by-tier while the estimate exceeds the
// budget, stopping at the minimum tier. When nothing fits, the minimum
// tier's selection is returned with WithinBudget false.
func (r *Router) applyBudget(req types.ModelRoutingRequest, spec types.ModelSpec, tier, minTier types.ModelTier, tag func(string, ...any)) (types.ModelSpec, types.ModelTier, bool) {
	if estimateCostCents(spec, req.ExpectedTokens) <= req.BudgetCents {
		return spec, tier, true
	}

	candidate := tier
	for {
		below, ok := types.TierBelow(candidate)
		if !ok || !below.AtLeast(minTier) {
			break
		}
		candidate = below
		cheaper, ok := r.cheapestWithCapacity(candidate, req.ExpectedTokens)
		if !ok {
			continue
		}
		if estimateCostCents(cheaper, req.ExpectedTokens) <= req.BudgetCents {
			tag("budget_downgrade")
			return cheaper, candidate, true
		}
	}

	// No tier fits the budget: settle at the minimum tier and say so.
	tag("budget_exceeded")
	if fallback, fallbackTier := r.selectModel(minTier, req.ExpectedTokens, tag); fallbackTier.Rank() <= tier.Rank() {
		return fallback, fallbackTier, false
	}
	return spec, tier, false
}

// estimateCostCents rounds the token-based estimate up to whole cents.
func estimateCostCents(spec types.ModelSpec, expectedTokens int) int {
	return int(math.Ceil(float64(expectedTokens) / 1000 * spec.CostPer1KTokensCents))
}
