package main

import (
	"github.com/spf13/cobra"

	"ceopilot/internal/norms"
)

var (
	normsTags          []string
	normsJustification string
)

// normsCmd evaluates an action against the norm table
var normsCmd = &cobra.Command{
	Use:   "norms",
	Short: "Evaluate an action against the behavioral-norm table",
	Long: `Matches the given action tags against the norm rule table and prints
the decision. Hard violations always block; soft violations block until
a justification is supplied.

Example:
  ceopilot norms --tags email,outbound --justification "weekly digest"`,
	RunE: runNorms,
}

func runNorms(cmd *cobra.Command, args []string) error {
	k, err := openKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	rules, err := k.normRules()
	if err != nil {
		return err
	}
	decision, err := norms.Evaluate(normsTags, normsJustification, rules)
	if err != nil {
		return err
	}
	return printJSON(decision)
}

func init() {
	normsCmd.Flags().StringSliceVar(&normsTags, "tags", nil, "Action tags to evaluate")
	normsCmd.Flags().StringVar(&normsJustification, "justification", "", "Recorded justification for soft violations")
}
