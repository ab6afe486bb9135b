package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ceopilot/internal/types"
)

var (
	controlMinTier string
	controlReason  string
)

// controlCmd groups human control-surface operations
var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Manage human control profiles, caps, and emergency mode",
}

// controlShowCmd prints the identity's effective controls
var controlShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the identity's control profile and caps",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel()
		if err != nil {
			return err
		}
		defer k.Close()

		profile, err := k.Controls.Profile(identity)
		if err != nil {
			return err
		}
		cap, err := k.Controls.CostCap(identity)
		if err != nil {
			return err
		}
		pref, err := k.Controls.ActivePreference(identity)
		if err != nil {
			return err
		}
		emergency, err := k.Controls.Emergency()
		if err != nil {
			return err
		}

		return printJSON(map[string]any{
			"profile":    profile,
			"cost_cap":   cap,
			"preference": pref,
			"emergency":  emergency,
		})
	},
}

// controlCapCmd sets or clears the human tier ceiling
var controlCapCmd = &cobra.Command{
	Use:   "cap [tier]",
	Short: "Set the identity's tier ceiling (omit tier to clear)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel()
		if err != nil {
			return err
		}
		defer k.Close()

		if len(args) == 0 {
			return k.Controls.SetMaxTier(identity, nil)
		}
		tier := types.ModelTier(args[0])
		return k.Controls.SetMaxTier(identity, &tier)
	},
}

// controlCostCapCmd sets or clears the cost-routing ceiling
var controlCostCapCmd = &cobra.Command{
	Use:   "cost-cap [tier]",
	Short: "Set the identity's cost-routing ceiling (omit tier to clear)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel()
		if err != nil {
			return err
		}
		defer k.Close()

		if len(args) == 0 {
			return k.Controls.SetCostCap(identity, nil)
		}
		tier := types.ModelTier(args[0])
		return k.Controls.SetCostCap(identity, &tier)
	},
}

// controlPreferCmd stores a routing preference window
var controlPreferCmd = &cobra.Command{
	Use:   "prefer [max-tier]",
	Short: "Set an active routing preference window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel()
		if err != nil {
			return err
		}
		defer k.Close()

		maxTier := types.ModelTier(args[0])
		pref := types.RoutingPreference{
			IdentityKey: identity,
			Active:      true,
			MaxTier:     &maxTier,
		}
		if controlMinTier != "" {
			minTier := types.ModelTier(controlMinTier)
			pref.MinTier = &minTier
		}
		return k.Controls.SetPreference(pref)
	},
}

// emergencyCmd manages the global emergency tier ceiling
var emergencyCmd = &cobra.Command{
	Use:   "emergency [max-tier]",
	Short: "Declare an emergency tier ceiling (use clear to lift it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel()
		if err != nil {
			return err
		}
		defer k.Close()

		if args[0] == "clear" {
			return k.Controls.ClearEmergency()
		}
		if controlReason == "" {
			return fmt.Errorf("--reason is required when declaring an emergency")
		}
		return k.Controls.DeclareEmergency(types.ModelTier(args[0]), controlReason)
	},
}

func init() {
	controlPreferCmd.Flags().StringVar(&controlMinTier, "min-tier", "", "Optional floor for the preference window")
	emergencyCmd.Flags().StringVar(&controlReason, "reason", "", "Why the emergency was declared")

	controlCmd.AddCommand(controlShowCmd)
	controlCmd.AddCommand(controlCapCmd)
	controlCmd.AddCommand(controlCostCapCmd)
	controlCmd.AddCommand(controlPreferCmd)
	controlCmd.AddCommand(emergencyCmd)
}
