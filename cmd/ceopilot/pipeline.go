package main

import (
	"context"
	"encoding/json"
	"fmt"

	"ceopilot/internal/config"
	"ceopilot/internal/epistemic"
	"ceopilot/internal/memory"
	"ceopilot/internal/norms"
	"ceopilot/internal/router"
	"ceopilot/internal/scheduler"
	"ceopilot/internal/secondorder"
	"ceopilot/internal/types"
)

// defaultCatalog is the built-in model catalog, one model per tier.
// Deployments override it with the --catalog flag on route commands.
func defaultCatalog() []types.ModelSpec {
	return []types.ModelSpec{
		{ID: "pilot-economy", Tier: types.TierEconomy, CostPer1KTokensCents: 0.05, MaxTokens: 16000},
		{ID: "pilot-standard", Tier: types.TierStandard, CostPer1KTokensCents: 0.3, MaxTokens: 32000},
		{ID: "pilot-advanced", Tier: types.TierAdvanced, CostPer1KTokensCents: 1.0, MaxTokens: 128000},
		{ID: "pilot-frontier", Tier: types.TierFrontier, CostPer1KTokensCents: 3.0, MaxTokens: 200000},
	}
}

// loadCatalog reads a model catalog from a JSON file, or returns the
// built-in catalog when path is empty.
func loadCatalog(path string) ([]types.ModelSpec, error) {
	if path == "" {
		return defaultCatalog(), nil
	}
	var catalog []types.ModelSpec
	if err := readJSONFile(path, &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

// buildRouter wires a router over the kernel's stores and config.
func (k *kernel) buildRouter(catalogPath string) (*router.Router, error) {
	catalog, err := loadCatalog(catalogPath)
	if err != nil {
		return nil, err
	}
	rc := k.Config().Router
	return router.New(catalog, k.Store, k.Controls, k.Store, router.Config{
		StandardNoveltyThreshold:    rc.StandardNoveltyThreshold,
		AdvancedNoveltyThreshold:    rc.AdvancedNoveltyThreshold,
		MinSamples:                  rc.MinSamples,
		QualityFloor:                rc.QualityFloor,
		PassRateFloor:               rc.PassRateFloor,
		QualityImprovementThreshold: rc.QualityImprovementThreshold,
	})
}

// memoryPolicy converts the loaded config into a memory policy.
func (k *kernel) memoryPolicy() memory.Policy {
	policy := memory.DefaultPolicy()
	m := k.Config().Memory
	if m.MinConfidenceToWrite > 0 {
		policy.MinConfidenceToWrite = m.MinConfidenceToWrite
	}
	if m.MaxRecords > 0 {
		policy.MaxRecords = m.MaxRecords
	}
	if m.RetrievalFloor > 0 {
		policy.RetrievalFloor = m.RetrievalFloor
	}
	if m.DecayFactor > 0 && m.DecayFactor < 1 {
		policy.DecayFactor = m.DecayFactor
	}
	policy.DecayAfter = config.Duration(m.DecayAfter, policy.DecayAfter)
	policy.DecayInterval = config.Duration(m.DecayInterval, policy.DecayInterval)
	policy.ExpiryWindow = config.Duration(m.ExpiryWindow, policy.ExpiryWindow)
	return policy
}

// normRules loads the effective norm table from config.
func (k *kernel) normRules() ([]types.NormRule, error) {
	nc := k.Config().Norms
	if nc.RulesPath == "" {
		return norms.DefaultRules(), nil
	}
	return norms.LoadRulesFile(nc.RulesPath, nc.ReplaceDefaults)
}

// Pipeline returns the full governance pipeline the scheduler drives tasks
// through: norms, epistemic gating, second-order effects, then routing.
// Policy blocks defer the task; only a routed, in-budget action executes.
func (k *kernel) Pipeline() scheduler.PipelineFunc {
	return func(ctx context.Context, action, identity string, policyContext, agentContext map[string]any, initiator string) (scheduler.PipelineOutcome, error) {
		rules, err := k.normRules()
		if err != nil {
			return scheduler.PipelineOutcome{}, err
		}

		tags := stringSlice(agentContext["action_tags"])
		justification := stringValue(agentContext["justification"])

		normDecision, err := norms.Evaluate(tags, justification, rules)
		if err != nil {
			return scheduler.PipelineOutcome{}, err
		}
		if !normDecision.Allowed {
			return scheduler.PipelineOutcome{
				Type:    scheduler.OutcomeDeferred,
				Summary: fmt.Sprintf("norms: %s", normDecision.Reason),
			}, nil
		}

		impact := types.Impact(stringValue(agentContext["impact"]))
		if impact == "" {
			impact = types.ImpactReversible
		}

		// Task history for novelty comes from the identity's outcome memory.
		history, err := memory.Retrieve(k.Store, identity, memory.Query{
			Kind:        kindPtr(types.MemoryOutcome),
			AllowGlobal: true,
		}, k.memoryPolicy())
		if err != nil {
			return scheduler.PipelineOutcome{}, err
		}
		subjects := make([]string, 0, len(history))
		for _, rec := range history {
			subjects = append(subjects, rec.Subject)
		}

		epiDecision, err := epistemic.Assess(epistemic.Inputs{
			ActionDescription: action,
			TaskHistory:       subjects,
			EvidenceRefs:      stringSlice(agentContext["evidence_refs"]),
			Impact:            impact,
			ExplorationMode:   boolValue(agentContext["exploration_mode"]),
			NoveltyThreshold:  k.Config().Epistemic.NoveltyThreshold,
		})
		if err != nil {
			return scheduler.PipelineOutcome{}, err
		}
		if !epiDecision.Allowed {
			return scheduler.PipelineOutcome{
				Type:    scheduler.OutcomeDeferred,
				Summary: fmt.Sprintf("epistemic: %s", epiDecision.Reason),
			}, nil
		}

		effects, err := effectsFromContext(agentContext["second_order_effects"])
		if err != nil {
			return scheduler.PipelineOutcome{}, err
		}
		soPolicy := secondorder.DefaultPolicy()
		if t := k.Config().SecondOrder.UncertaintyThreshold; t > 0 {
			soPolicy.UncertaintyThreshold = t
		}
		soDecision, err := secondorder.Evaluate(impact, effects, soPolicy)
		if err != nil {
			return scheduler.PipelineOutcome{}, err
		}
		if !soDecision.Allowed {
			return scheduler.PipelineOutcome{
				Type:    scheduler.OutcomeDeferred,
				Summary: fmt.Sprintf("second-order: %s", soDecision.Reason),
			}, nil
		}

		rt, err := k.buildRouter("")
		if err != nil {
			return scheduler.PipelineOutcome{}, err
		}
		decision, err := rt.Route(identity, routingRequest(action, impact, epiDecision.NoveltyScore, agentContext))
		if err != nil {
			return scheduler.PipelineOutcome{}, err
		}
		if !decision.WithinBudget {
			return scheduler.PipelineOutcome{
				Type:    scheduler.OutcomeDeferred,
				Summary: fmt.Sprintf("routing: over budget (estimate %dc)", decision.EstimatedCostCents),
			}, nil
		}

		return scheduler.PipelineOutcome{
			Type:    scheduler.OutcomeExecuted,
			Summary: fmt.Sprintf("routed to %s (%s)", decision.SelectedModel, decision.Tier),
		}, nil
	}
}

// routingRequest synthesizes a routing request from a task's agent context.
func routingRequest(action string, impact types.Impact, novelty float64, agentContext map[string]any) types.ModelRoutingRequest {
	req := types.ModelRoutingRequest{
		RequestID:      types.NewID(),
		Task:           action,
		TaskClass:      types.TaskClassRoutine,
		RiskLevel:      types.RiskLow,
		Irreversible:   impact == types.ImpactIrreversible,
		NoveltyScore:   novelty,
		ReasoningDepth: types.DepthMedium,
		ExpectedTokens: 8000,
		BudgetCents:    100,
	}
	if v := stringValue(agentContext["task_class"]); v != "" {
		req.TaskClass = types.TaskClass(v)
	}
	if v := stringValue(agentContext["risk_level"]); v != "" {
		req.RiskLevel = types.RiskLevel(v)
	}
	if v := stringValue(agentContext["reasoning_depth"]); v != "" {
		req.ReasoningDepth = types.ReasoningDepth(v)
	}
	if v, ok := agentContext["expected_tokens"].(float64); ok && v > 0 {
		req.ExpectedTokens = int(v)
	}
	if v, ok := agentContext["budget_cents"].(float64); ok && v > 0 {
		req.BudgetCents = int(v)
	}
	if boolValue(agentContext["compliance_sensitive"]) {
		req.ComplianceSensitive = true
	}
	if boolValue(agentContext["requires_arbitration"]) {
		req.RequiresArbitration = true
	}
	return req
}

// effectsFromContext decodes an optional second-order effects payload.
func effectsFromContext(raw any) (*types.SecondOrderEffects, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid second_order_effects payload: %w", err)
	}
	var effects types.SecondOrderEffects
	if err := json.Unmarshal(data, &effects); err != nil {
		return nil, fmt.Errorf("invalid second_order_effects payload: %w", err)
	}
	return &effects, nil
}

func stringValue(raw any) string {
	s, _ := raw.(string)
	return s
}

func boolValue(raw any) bool {
	b, _ := raw.(bool)
	return b
}

func stringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func kindPtr(kind types.MemoryKind) *types.MemoryKind {
	return &kind
}
