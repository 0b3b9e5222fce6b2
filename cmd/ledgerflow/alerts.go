package main

import (
	"github.com/spf13/cobra"
	"github.com/sriinnu/ledgerflow/pkg/alerts"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Evaluate and inspect budget/recurring/spike alert rules",
}

var alertsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate every configured rule and persist any fired events",
	RunE: func(cmd *cobra.Command, args []string) error {
		atDate := flagString(cmd.Flags(), "date")
		if atDate == "" {
			atDate = timeutil.TodayYMD()
		}
		commit := flagBool(cmd.Flags(), "commit")
		engine := alerts.New(currentLayout())
		result, err := engine.Run(atDate, commit)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var alertsEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List alert events fired on a given date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ymd := flagString(cmd.Flags(), "date")
		engine := alerts.New(currentLayout())
		var events interface{}
		var err error
		if ymd == "" {
			events, err = engine.AllEvents()
		} else {
			events, err = engine.EventsForDate(ymd)
		}
		if err != nil {
			return err
		}
		return printJSON(events)
	},
}

func init() {
	alertsRunCmd.Flags().String("date", "", "Evaluate as of this ISO date (default: today)")
	alertsRunCmd.Flags().Bool("commit", true, "Persist fired events and rule state (false runs a dry run)")
	alertsEventsCmd.Flags().String("date", "", "Restrict to events scoped to this date (default: all events)")

	alertsCmd.AddCommand(alertsRunCmd)
	alertsCmd.AddCommand(alertsEventsCmd)
}
