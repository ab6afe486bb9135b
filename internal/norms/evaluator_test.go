package norms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ceopilot/internal/types"
)

func TestEvaluate(t *testing.T) {
	rules := DefaultRules()

	t.Run("clean action passes without review", func(t *testing.T) {
		decision, err := Evaluate([]string{"read", "summarize"}, "", rules)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Empty(t, decision.Violations)
		assert.False(t, decision.RequiresHumanReview)
	})

	t.Run("hard violation blocks", func(t *testing.T) {
		decision, err := Evaluate([]string{"wire_transfer"}, "", rules)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonViolationHard, decision.Reason)
		assert.True(t, decision.RequiresHumanReview)
	})

	t.Run("justification never overrides a hard rule", func(t *testing.T) {
		decision, err := Evaluate([]string{"drop_table"}, "the table is empty anyway", rules)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonViolationHard, decision.Reason)
	})

	t.Run("soft violation blocks without justification", func(t *testing.T) {
		decision, err := Evaluate([]string{"email"}, "", rules)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonJustificationRequired, decision.Reason)
	})

	t.Run("soft violation with justification passes with review", func(t *testing.T) {
		decision, err := Evaluate([]string{"email"}, "weekly status digest", rules)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, ReasonViolationAcknowledged, decision.Reason)
		assert.True(t, decision.RequiresHumanReview)
	})

	t.Run("whitespace justification does not count", func(t *testing.T) {
		decision, err := Evaluate([]string{"email"}, "   ", rules)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	})

	t.Run("hard dominates soft when both trigger", func(t *testing.T) {
		decision, err := Evaluate([]string{"email", "api_key"}, "rotating keys", rules)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonViolationHard, decision.Reason)
		assert.Len(t, decision.Violations, 2)
	})

	t.Run("tag matching ignores case and whitespace", func(t *testing.T) {
		decision, err := Evaluate([]string{"  Wire_Transfer "}, "", rules)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	})
}

func TestLoadRulesFile(t *testing.T) {
	writeRules := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "norms.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	t.Run("appends to the built-in table", func(t *testing.T) {
		path := writeRules(t, `
rules:
  - norm_id: no_social_posting
    description: No social media posts
    severity: hard
    trigger_tags: [social_post]
`)
		rules, err := LoadRulesFile(path, false)
		require.NoError(t, err)
		assert.Len(t, rules, len(DefaultRules())+1)
		assert.Equal(t, "no_social_posting", rules[len(rules)-1].NormID)
	})

	t.Run("replace drops the built-ins", func(t *testing.T) {
		path := writeRules(t, `
rules:
  - norm_id: only_rule
    severity: soft
    trigger_tags: [x]
`)
		rules, err := LoadRulesFile(path, true)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, types.SeveritySoft, rules[0].Severity)
	})

	t.Run("rejects a rule without trigger tags", func(t *testing.T) {
		path := writeRules(t, `
rules:
  - norm_id: empty_rule
    severity: hard
`)
		_, err := LoadRulesFile(path, false)
		assert.Error(t, err)
	})

	t.Run("rejects invalid severity", func(t *testing.T) {
		path := writeRules(t, `
rules:
  - norm_id: odd
    severity: medium
    trigger_tags: [x]
`)
		_, err := LoadRulesFile(path, false)
		assert.Error(t, err)
	})
}
