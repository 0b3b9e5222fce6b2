// Command ledgerflow is a thin cobra CLI demonstrating how the core
// library packages wire together: task automation, alert evaluation,
// delivery, backup, migration, and audit querying. Row parsing, report
// rendering, and HTTP binding are not exposed on this CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/sriinnu/ledgerflow/pkg/config"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfg config.Config
var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerflow",
	Short: "LedgerFlow - local-first personal finance ledger engine",
	Long: `LedgerFlow maintains an append-only transaction ledger with a
corrections-replay reducer, a durable task automation engine, a stateful
alerts evaluator, and a per-channel delivery pipeline, all on a single
local data directory with no external services.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ledgerflow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, optional)")
	config.BindFlags(rootCmd.PersistentFlags())

	cobra.OnInitialize(initRuntime)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(automationCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(deliveryCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(opsCmd)
}

func initRuntime() {
	loaded, err := config.Load(rootCmd.PersistentFlags(), cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
}

func currentLayout() layout.Layout {
	return layout.For(cfg.DataDir)
}

// flagString/flagBool/flagInt surface flag-definition bugs immediately
// instead of silently falling back to a zero value.
func flagString(fs *pflag.FlagSet, name string) string {
	v, err := fs.GetString(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "internal error: undefined flag --%s\n", name)
		os.Exit(1)
	}
	return v
}

func flagBool(fs *pflag.FlagSet, name string) bool {
	v, err := fs.GetBool(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "internal error: undefined flag --%s\n", name)
		os.Exit(1)
	}
	return v
}

func flagInt(fs *pflag.FlagSet, name string) int {
	v, err := fs.GetInt(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "internal error: undefined flag --%s\n", name)
		os.Exit(1)
	}
	return v
}
