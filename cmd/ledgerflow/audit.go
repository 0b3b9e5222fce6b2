package main

import (
	"github.com/spf13/cobra"
	"github.com/sriinnu/ledgerflow/pkg/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the append-only audit log of mutating API calls",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records, optionally scoped to one workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := flagString(cmd.Flags(), "workspace")
		limit := flagInt(cmd.Flags(), "limit")
		logger := audit.New(currentLayout())
		records, err := logger.List(workspaceID, limit)
		if err != nil {
			return err
		}
		return printJSON(records)
	},
}

func init() {
	auditListCmd.Flags().String("workspace", "", "Restrict to this workspace ID (default: all workspaces)")
	auditListCmd.Flags().Int("limit", -1, "Maximum number of records to return (-1 = no limit)")

	auditCmd.AddCommand(auditListCmd)
}
