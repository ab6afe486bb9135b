package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ceopilot/internal/memory"
	"ceopilot/internal/types"
)

var (
	memoryVerification string
	memoryPermission   string
	memoryKind         string
	memorySubject      string
	memoryTags         []string
	memoryTenant       string
	memoryUser         string
	memorySession      string
	memoryTopic        string
	memoryAllowGlobal  bool
	memoryLimit        int
)

// memoryCmd groups memory-store operations
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Write, query, and prune the scoped memory store",
}

// memoryPutCmd writes a record through the admission policy
var memoryPutCmd = &cobra.Command{
	Use:   "put [record.json]",
	Short: "Write a memory record through the admission policy",
	Long: `Writes a record subject to the memory policy: a confidence floor,
verification gates on facts, and execution-authority gates on decisions
and outcomes. Rejections are reported, not errored.`,
	Args: cobra.ExactArgs(1),
	RunE: runMemoryPut,
}

func runMemoryPut(cmd *cobra.Command, args []string) error {
	var rec types.MemoryRecord
	if err := readJSONFile(args[0], &rec); err != nil {
		return err
	}

	k, err := openKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	result, err := memory.Write(k.Store, identity, rec, memory.WriteContext{
		VerificationStatus: memoryVerification,
		PermissionTier:     memoryPermission,
	}, k.memoryPolicy())
	if err != nil {
		return err
	}

	if !result.Written {
		logger.Warn("memory write rejected", zap.String("reason", result.Reason))
	}
	return printJSON(result)
}

// memoryQueryCmd retrieves records by scope, kind, subject, and tags
var memoryQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve memory records",
	Long: `Retrieves records matching the given scope. Confidence decay is
applied and persisted on read; records below the retrieval floor or past
expiry are invisible.`,
	RunE: runMemoryQuery,
}

func runMemoryQuery(cmd *cobra.Command, args []string) error {
	k, err := openKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	q := memory.Query{
		Scope: types.MemoryScope{
			TenantID:  memoryTenant,
			UserID:    memoryUser,
			SessionID: memorySession,
			Topic:     memoryTopic,
		},
		AllowGlobal: memoryAllowGlobal,
		Subject:     memorySubject,
		Tags:        memoryTags,
		Limit:       memoryLimit,
	}
	if memoryKind != "" {
		kind := types.MemoryKind(memoryKind)
		q.Kind = &kind
	}

	records, err := memory.Retrieve(k.Store, identity, q, k.memoryPolicy())
	if err != nil {
		return err
	}
	return printJSON(records)
}

// memoryPruneCmd removes expired records
var memoryPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired memory records",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel()
		if err != nil {
			return err
		}
		defer k.Close()

		removed, err := memory.PruneExpired(k.Store, identity, k.memoryPolicy())
		if err != nil {
			return err
		}
		logger.Info("pruned expired records", zap.Int("removed", removed))
		return printJSON(map[string]int{"removed": removed})
	},
}

func init() {
	memoryPutCmd.Flags().StringVar(&memoryVerification, "verification", "", "Verification status of the writer (pass clears fact gates)")
	memoryPutCmd.Flags().StringVar(&memoryPermission, "permission", "", "Permission tier of the writer (execute clears decision/outcome gates)")

	memoryQueryCmd.Flags().StringVar(&memoryKind, "kind", "", "Filter by kind (fact, decision, outcome)")
	memoryQueryCmd.Flags().StringVar(&memorySubject, "subject", "", "Case-insensitive subject substring")
	memoryQueryCmd.Flags().StringSliceVar(&memoryTags, "tags", nil, "Match any of these tags")
	memoryQueryCmd.Flags().StringVar(&memoryTenant, "tenant", "", "Tenant scope")
	memoryQueryCmd.Flags().StringVar(&memoryUser, "user", "", "User scope")
	memoryQueryCmd.Flags().StringVar(&memorySession, "session", "", "Session scope")
	memoryQueryCmd.Flags().StringVar(&memoryTopic, "topic", "", "Topic scope")
	memoryQueryCmd.Flags().BoolVar(&memoryAllowGlobal, "allow-global", false, "Also match records with unset scope fields")
	memoryQueryCmd.Flags().IntVar(&memoryLimit, "limit", 0, "Max records to return (default 20)")

	memoryCmd.AddCommand(memoryPutCmd)
	memoryCmd.AddCommand(memoryQueryCmd)
	memoryCmd.AddCommand(memoryPruneCmd)
}
