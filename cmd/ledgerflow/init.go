package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sriinnu/ledgerflow/pkg/migrate"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the LedgerFlow data directory and run pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := migrate.New(currentLayout())
		result, err := ctrl.MigrateToLatest(nil)
		if err != nil {
			return fmt.Errorf("initialize data directory: %w", err)
		}
		fmt.Printf("Data directory: %s\n", cfg.DataDir)
		fmt.Printf("Schema version: %d -> %d\n", result.FromVersion, result.ToVersion)
		if len(result.Applied) == 0 {
			fmt.Println("Already up to date.")
		} else {
			fmt.Printf("Applied steps: %v\n", result.Applied)
		}
		return nil
	},
}
