package main

import (
	"github.com/spf13/cobra"
)

// auditCmd inspects the append-only audit log
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List the identity's routing audit trail",
	Long: `Prints every (request, decision) pair recorded for the identity, in
append order. Entries are immutable; this command only reads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel()
		if err != nil {
			return err
		}
		defer k.Close()

		entries, err := k.Store.ListAudit(identity)
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}
