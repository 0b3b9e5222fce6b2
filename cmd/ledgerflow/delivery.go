package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/sriinnu/ledgerflow/pkg/delivery"
)

var deliveryCmd = &cobra.Command{
	Use:   "delivery",
	Short: "Deliver fired alert events to configured channels",
}

var deliveryRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Deliver pending events on every enabled channel, advancing each cursor",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := flagInt(cmd.Flags(), "limit")
		dryRun := flagBool(cmd.Flags(), "dry-run")
		channelsCSV := flagString(cmd.Flags(), "channels")

		var channelIDs []string
		if channelsCSV != "" {
			channelIDs = strings.Split(channelsCSV, ",")
		}

		engine := delivery.New(currentLayout())
		result, err := engine.Deliver(limit, channelIDs, dryRun)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	deliveryRunCmd.Flags().Int("limit", 0, "Maximum events to deliver per channel (0 = no limit)")
	deliveryRunCmd.Flags().Bool("dry-run", false, "Evaluate pending deliveries without advancing any cursor")
	deliveryRunCmd.Flags().String("channels", "", "Comma-separated channel IDs to restrict delivery to (default: all enabled)")

	deliveryCmd.AddCommand(deliveryRunCmd)
}
