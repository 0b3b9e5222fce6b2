package main

import (
	"github.com/spf13/cobra"
	"github.com/sriinnu/ledgerflow/pkg/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create or restore gzipped tar snapshots of the data directory",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a backup archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := flagString(cmd.Flags(), "out")
		includeInbox := flagBool(cmd.Flags(), "include-inbox")

		result, err := backup.Create(currentLayout(), backup.CreateOptions{
			OutPath:      out,
			IncludeInbox: includeInbox,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore ARCHIVE",
	Short: "Restore a backup archive into the configured data directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force := flagBool(cmd.Flags(), "force")
		result, err := backup.Restore(args[0], cfg.DataDir, force)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	backupCreateCmd.Flags().String("out", "", "Archive output path (default: timestamped path alongside the data directory)")
	backupCreateCmd.Flags().Bool("include-inbox", false, "Include the inbox directory in the archive")
	backupRestoreCmd.Flags().Bool("force", false, "Overwrite a non-empty data directory")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}
