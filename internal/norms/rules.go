package norms

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ceopilot/internal/types"
)

// DefaultRules returns the built-in behavioral-norm table. Rules are data:
// deployments extend or replace this table through the norms config, new
// norms are additions to the table, never new code paths.
func DefaultRules() []types.NormRule {
	return []types.NormRule{
		{
			NormID:      "no_destructive_operations",
			Description: "Agents must not perform bulk-destructive operations on shared resources",
			Severity:    types.SeverityHard,
			TriggerTags: []string{"destructive", "delete_all", "drop_table", "wipe"},
		},
		{
			NormID:      "no_unilateral_financial_commitment",
			Description: "Agents must not commit funds without human sign-off",
			Severity:    types.SeverityHard,
			TriggerTags: []string{"payment", "wire_transfer", "purchase", "refund"},
		},
		{
			NormID:      "no_credential_handling",
			Description: "Agents must not read or move credentials and secrets",
			Severity:    types.SeverityHard,
			TriggerTags: []string{"credentials", "secrets", "api_key"},
		},
		{
			NormID:                "outbound_communication",
			Description:           "Messages leaving the tenant boundary need a recorded justification",
			Severity:              types.SeveritySoft,
			TriggerTags:           []string{"email", "outbound", "publish", "post_external"},
			RequiresJustification: true,
			Overridable:           true,
		},
		{
			NormID:                "personal_data_handling",
			Description:           "Touching personal data needs a recorded justification",
			Severity:              types.SeveritySoft,
			TriggerTags:           []string{"pii", "personal_data", "user_profile"},
			RequiresJustification: true,
			Overridable:           true,
		},
	}
}

// ruleFile is the on-disk shape of a norm rules YAML file.
type ruleFile struct {
	Rules []types.NormRule `yaml:"rules"`
}

// LoadRulesFile reads extra norm rules from a YAML file. When replace is
// false the loaded rules are appended to the built-in table.
func LoadRulesFile(path string, replace bool) ([]types.NormRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read norm rules: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse norm rules: %w", err)
	}

	for i, r := range rf.Rules {
		if r.NormID == "" || len(r.TriggerTags) == 0 {
			return nil, fmt.Errorf("norm rule %d: norm_id and trigger_tags are required", i)
		}
		if r.Severity != types.SeverityHard && r.Severity != types.SeveritySoft {
			return nil, fmt.Errorf("norm rule %s: invalid severity %q", r.NormID, r.Severity)
		}
	}

	if replace {
		return rf.Rules, nil
	}
	return append(DefaultRules(), rf.Rules...), nil
}
