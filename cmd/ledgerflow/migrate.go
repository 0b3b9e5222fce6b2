package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sriinnu/ledgerflow/pkg/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect and apply schema migrations",
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current and pending schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := migrate.New(currentLayout()).Status()
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

var migrateApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply all pending migration steps",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := migrate.New(currentLayout()).MigrateToLatest(nil)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateApplyCmd)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
