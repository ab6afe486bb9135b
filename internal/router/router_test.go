package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ceopilot/internal/control"
	"ceopilot/internal/store"
	"ceopilot/internal/types"
)

func testCatalog() []types.ModelSpec {
	return []types.ModelSpec{
		{ID: "econ-1", Tier: types.TierEconomy, CostPer1KTokensCents: 0.05, MaxTokens: 16000},
		{ID: "std-1", Tier: types.TierStandard, CostPer1KTokensCents: 0.3, MaxTokens: 32000},
		{ID: "adv-1", Tier: types.TierAdvanced, CostPer1KTokensCents: 1.0, MaxTokens: 128000},
		{ID: "front-1", Tier: types.TierFrontier, CostPer1KTokensCents: 3.0, MaxTokens: 200000},
	}
}

type fixture struct {
	router   *Router
	store    *store.Mem
	controls *control.Manager
}

func newFixture(t *testing.T, catalog []types.ModelSpec) *fixture {
	t.Helper()
	mem := store.NewMem()
	controls := control.NewManager(mem)
	r, err := New(catalog, mem, controls, mem, DefaultConfig())
	require.NoError(t, err)
	return &fixture{router: r, store: mem, controls: controls}
}

func baseRequest() types.ModelRoutingRequest {
	return types.ModelRoutingRequest{
		RequestID:      types.NewID(),
		Task:           "summarize inbox",
		TaskClass:      types.TaskClassRoutine,
		RiskLevel:      types.RiskLow,
		ReasoningDepth: types.DepthShallow,
		ExpectedTokens: 8000,
		BudgetCents:    100,
	}
}

func TestNew(t *testing.T) {
	mem := store.NewMem()
	controls := control.NewManager(mem)

	t.Run("rejects empty catalog", func(t *testing.T) {
		_, err := New(nil, mem, controls, mem, DefaultConfig())
		assert.Error(t, err)
	})

	t.Run("rejects unknown tier in catalog", func(t *testing.T) {
		_, err := New([]types.ModelSpec{{ID: "x", Tier: "mega", MaxTokens: 1000}}, mem, controls, mem, DefaultConfig())
		assert.Error(t, err)
	})

	t.Run("rejects non-positive capacity", func(t *testing.T) {
		_, err := New([]types.ModelSpec{{ID: "x", Tier: types.TierEconomy}}, mem, controls, mem, DefaultConfig())
		assert.Error(t, err)
	})

	t.Run("rejects missing collaborators", func(t *testing.T) {
		_, err := New(testCatalog(), nil, controls, mem, DefaultConfig())
		assert.Error(t, err)
	})
}

func TestRouteTierFloors(t *testing.T) {
	f := newFixture(t, testCatalog())

	t.Run("routine shallow low-risk lands on economy", func(t *testing.T) {
		decision, err := f.router.Route("id-1", baseRequest())
		require.NoError(t, err)
		assert.Equal(t, types.TierEconomy, decision.Tier)
		assert.Equal(t, "econ-1", decision.SelectedModel)
		assert.True(t, decision.WithinBudget)
	})

	t.Run("arbitration forces frontier", func(t *testing.T) {
		req := baseRequest()
		req.RequiresArbitration = true
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierFrontier, decision.Tier)
		assert.Contains(t, decision.Justification, "arbitration_required")
	})

	t.Run("irreversible forces frontier", func(t *testing.T) {
		req := baseRequest()
		req.Irreversible = true
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierFrontier, decision.Tier)
	})

	t.Run("high risk forces frontier", func(t *testing.T) {
		req := baseRequest()
		req.RiskLevel = types.RiskHigh
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierFrontier, decision.Tier)
	})

	t.Run("medium risk floors at advanced", func(t *testing.T) {
		req := baseRequest()
		req.RiskLevel = types.RiskMedium
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierAdvanced, decision.Tier)
	})

	t.Run("deep reasoning prefers advanced", func(t *testing.T) {
		req := baseRequest()
		req.ReasoningDepth = types.DepthDeep
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierAdvanced, decision.Tier)
	})

	t.Run("high novelty raises the preferred tier", func(t *testing.T) {
		req := baseRequest()
		req.NoveltyScore = 0.8
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierAdvanced, decision.Tier)
		assert.Contains(t, decision.Justification, "novelty_raise:advanced")
	})

	t.Run("trail always ends with the selected tier", func(t *testing.T) {
		decision, err := f.router.Route("id-1", baseRequest())
		require.NoError(t, err)
		require.NotEmpty(t, decision.Justification)
		last := decision.Justification[len(decision.Justification)-1]
		assert.Equal(t, fmt.Sprintf("tier:%s", decision.Tier), last)
	})
}

func TestRouteCostHistory(t *testing.T) {
	seedOutcomes := func(t *testing.T, f *fixture, tier types.ModelTier, quality float64, n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			require.NoError(t, f.store.AppendOutcome("id-1", types.TaskOutcomeRecord{
				TaskType:         "summarize inbox",
				ModelTier:        tier,
				QualityScore:     quality,
				EvaluationPassed: true,
			}))
		}
	}

	t.Run("downgrades to a proven cheaper tier", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		seedOutcomes(t, f, types.TierEconomy, 0.9, 5)

		req := baseRequest()
		req.ReasoningDepth = types.DepthMedium // preferred standard
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierEconomy, decision.Tier)
		assert.Contains(t, decision.Justification, "cost_downgrade:economy")
	})

	t.Run("verified quality gain holds the preferred tier", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		seedOutcomes(t, f, types.TierEconomy, 0.7, 5)
		seedOutcomes(t, f, types.TierStandard, 0.95, 5)

		req := baseRequest()
		req.ReasoningDepth = types.DepthMedium
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierStandard, decision.Tier)
		assert.Contains(t, decision.Justification, "quality_hold:standard")
	})

	t.Run("too few samples means no downgrade", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		seedOutcomes(t, f, types.TierEconomy, 0.9, 3)

		req := baseRequest()
		req.ReasoningDepth = types.DepthMedium
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierStandard, decision.Tier)
	})

	t.Run("non-routine tasks never downgrade", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		seedOutcomes(t, f, types.TierEconomy, 0.9, 5)

		req := baseRequest()
		req.TaskClass = types.TaskClassExploratory
		req.ReasoningDepth = types.DepthMedium
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierStandard, decision.Tier)
	})
}

// failingControlStore breaks every cap lookup while leaving writes intact.
type failingControlStore struct {
	types.ControlStore
}

var errControlsDown = errors.New("control store unavailable")

func (failingControlStore) HumanProfile(string) (*types.HumanControlProfile, error) {
	return nil, errControlsDown
}

func (failingControlStore) RoutingPreference(string) (*types.RoutingPreference, error) {
	return nil, errControlsDown
}

func (failingControlStore) CostCap(string) (*types.ModelTier, error) {
	return nil, errControlsDown
}

func (failingControlStore) Emergency() (*types.EmergencyMode, error) {
	return nil, errControlsDown
}

func TestRouteCaps(t *testing.T) {
	t.Run("human cap lowers the tier", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		cap := types.TierEconomy
		require.NoError(t, f.controls.SetMaxTier("id-1", &cap))

		req := baseRequest()
		req.ReasoningDepth = types.DepthDeep
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierEconomy, decision.Tier)
		assert.Contains(t, decision.Justification, "human_cap:economy")
	})

	t.Run("caps never push below the risk floor", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		cap := types.TierEconomy
		require.NoError(t, f.controls.SetMaxTier("id-1", &cap))

		req := baseRequest()
		req.RiskLevel = types.RiskCritical
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierFrontier, decision.Tier)
	})

	t.Run("emergency mode caps every identity", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		require.NoError(t, f.controls.DeclareEmergency(types.TierStandard, "provider incident"))

		req := baseRequest()
		req.ReasoningDepth = types.DepthDeep
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierStandard, decision.Tier)
		assert.Contains(t, decision.Justification, "emergency_cap:standard")
	})

	t.Run("preference minimum raises the floor", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		minTier := types.TierStandard
		require.NoError(t, f.controls.SetPreference(types.RoutingPreference{
			IdentityKey: "id-1",
			Active:      true,
			MinTier:     &minTier,
		}))

		decision, err := f.router.Route("id-1", baseRequest())
		require.NoError(t, err)
		assert.Equal(t, types.TierStandard, decision.Tier)
		assert.Contains(t, decision.Justification, "preference_min:standard")
	})

	t.Run("cost cap lowers the tier", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		cap := types.TierEconomy
		require.NoError(t, f.controls.SetCostCap("id-1", &cap))

		req := baseRequest()
		req.ReasoningDepth = types.DepthMedium
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierEconomy, decision.Tier)
		assert.Contains(t, decision.Justification, "cost_cap:economy")
	})

	t.Run("failing cap lookups route uncapped", func(t *testing.T) {
		mem := store.NewMem()
		controls := control.NewManager(failingControlStore{ControlStore: mem})
		r, err := New(testCatalog(), mem, controls, mem, DefaultConfig())
		require.NoError(t, err)

		req := baseRequest()
		req.ReasoningDepth = types.DepthDeep
		decision, err := r.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierAdvanced, decision.Tier)
	})
}

func TestRouteCapacityAndBudget(t *testing.T) {
	t.Run("capacity shortfall walks up a tier", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		req := baseRequest()
		req.ExpectedTokens = 20000 // over economy's 16k
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierStandard, decision.Tier)
		assert.Equal(t, "std-1", decision.SelectedModel)
	})

	t.Run("nothing fits takes the biggest model", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		req := baseRequest()
		req.ExpectedTokens = 500000
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, "front-1", decision.SelectedModel)
		assert.Contains(t, decision.Justification, "capacity_exceeded")
	})

	t.Run("budget downgrades tier by tier", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		req := baseRequest()
		req.ReasoningDepth = types.DepthDeep // advanced, 8 cents at 8k tokens
		req.BudgetCents = 3
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierStandard, decision.Tier)
		assert.True(t, decision.WithinBudget)
		assert.Contains(t, decision.Justification, "budget_downgrade")
	})

	t.Run("only economy fits the budget", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		req := baseRequest()
		req.ReasoningDepth = types.DepthMedium // standard would cost 3 cents
		req.BudgetCents = 2
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierEconomy, decision.Tier)
		assert.Equal(t, "econ-1", decision.SelectedModel)
		assert.True(t, decision.WithinBudget)
		assert.Contains(t, decision.Justification, "budget_downgrade")
	})

	t.Run("over budget at the floor still returns the floor", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		req := baseRequest()
		req.RiskLevel = types.RiskHigh // floor frontier, 24 cents
		req.BudgetCents = 1
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierFrontier, decision.Tier)
		assert.False(t, decision.WithinBudget)
		assert.Contains(t, decision.Justification, "budget_exceeded")
	})

	t.Run("zero budget on economy is reported not errored", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		req := baseRequest()
		req.BudgetCents = 0
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)
		assert.Equal(t, types.TierEconomy, decision.Tier)
		assert.False(t, decision.WithinBudget)
	})
}

func TestRouteAudit(t *testing.T) {
	f := newFixture(t, testCatalog())

	t.Run("every decision lands in the audit log", func(t *testing.T) {
		req := baseRequest()
		decision, err := f.router.Route("id-1", req)
		require.NoError(t, err)

		entries, err := f.store.ListAudit("id-1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, req.RequestID, entries[0].Request.RequestID)
		assert.Equal(t, decision.DecisionID, entries[0].Decision.DecisionID)
	})

	t.Run("schema-invalid requests error and leave no audit entry", func(t *testing.T) {
		f := newFixture(t, testCatalog())
		req := baseRequest()
		req.Task = ""
		_, err := f.router.Route("id-1", req)
		require.Error(t, err)

		entries, err := f.store.ListAudit("id-1")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestEstimateCostCents(t *testing.T) {
	spec := types.ModelSpec{CostPer1KTokensCents: 0.3}
	assert.Equal(t, 3, estimateCostCents(spec, 8000)) // 2.4 rounds up
	assert.Equal(t, 1, estimateCostCents(types.ModelSpec{CostPer1KTokensCents: 0.05}, 8000))
	assert.Equal(t, 0, estimateCostCents(spec, 0))
}

func TestAggregateByTier(t *testing.T) {
	records := []types.TaskOutcomeRecord{
		{ModelTier: types.TierEconomy, QualityScore: 0.8, CostCents: 1, EvaluationPassed: true},
		{ModelTier: types.TierEconomy, QualityScore: 0.6, CostCents: 1, EvaluationPassed: false},
		{ModelTier: types.TierStandard, QualityScore: 0.9, CostCents: 3, EvaluationPassed: true},
	}
	stats := aggregateByTier(records)

	econ := stats[types.TierEconomy]
	assert.Equal(t, 2, econ.Count)
	assert.InDelta(t, 0.7, econ.AvgQuality(), 1e-9)
	assert.InDelta(t, 0.5, econ.PassRate(), 1e-9)

	std := stats[types.TierStandard]
	assert.Equal(t, 1, std.Count)
	assert.InDelta(t, 0.9, std.AvgQuality(), 1e-9)
}
