package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ceopilot/internal/types"
)

var catalogPath string

// routeCmd resolves a routing request from a JSON file
var routeCmd = &cobra.Command{
	Use:   "route [request.json]",
	Short: "Resolve a model routing request",
	Long: `Reads a routing request from a JSON file, resolves it against the
model catalog and the identity's control surfaces, prints the decision,
and appends the (request, decision) pair to the audit log.

Example:
  ceopilot route request.json --identity tenant-1`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func runRoute(cmd *cobra.Command, args []string) error {
	var req types.ModelRoutingRequest
	if err := readJSONFile(args[0], &req); err != nil {
		return err
	}
	if req.RequestID == "" {
		req.RequestID = types.NewID()
	}

	k, err := openKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	rt, err := k.buildRouter(catalogPath)
	if err != nil {
		return err
	}
	decision, err := rt.Route(identity, req)
	if err != nil {
		return err
	}

	logger.Info("routing decision",
		zap.String("request_id", req.RequestID),
		zap.String("model", decision.SelectedModel),
		zap.String("tier", string(decision.Tier)))
	return printJSON(decision)
}

// outcomeCmd records a completed task outcome for cost-aware routing
var outcomeCmd = &cobra.Command{
	Use:   "outcome [outcome.json]",
	Short: "Record a task outcome for cost-aware routing",
	Long: `Appends a task outcome record to the identity's history. The router
uses accumulated outcomes to downgrade routine tasks to cheaper tiers
that have proven reliable.`,
	Args: cobra.ExactArgs(1),
	RunE: runOutcome,
}

func runOutcome(cmd *cobra.Command, args []string) error {
	var rec types.TaskOutcomeRecord
	if err := readJSONFile(args[0], &rec); err != nil {
		return err
	}

	k, err := openKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	return k.Store.AppendOutcome(identity, rec)
}

func init() {
	routeCmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to a JSON model catalog (default: built-in)")
	rootCmd.AddCommand(outcomeCmd)
}
