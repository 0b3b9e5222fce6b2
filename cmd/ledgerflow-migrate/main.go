// Command ledgerflow-migrate is a standalone inspection/migration tool
// for a LedgerFlow data directory's bbolt secondary index, following a
// dry-run + backup-first convention.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sriinnu/ledgerflow/pkg/backup"
	"github.com/sriinnu/ledgerflow/pkg/index"
	"github.com/sriinnu/ledgerflow/pkg/layout"
)

var (
	dataDir    = flag.String("data-dir", defaultDataDir(), "LedgerFlow data directory")
	dryRun     = flag.Bool("dry-run", false, "Show what would change without rebuilding the index")
	backupPath = flag.String("backup", "", "Path to back up the data directory before rebuilding (default: <data-dir>_migrate.tar.gz)")
	skipBackup = flag.Bool("skip-backup", false, "Skip the pre-rebuild backup (not recommended)")
)

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ledgerflow"
	}
	return filepath.Join(home, ".ledgerflow")
}

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("LedgerFlow Index Migration Tool - bbolt secondary index rebuild")
	log.Println("================================================================")

	l := layout.For(*dataDir)
	dbPath := l.IndexDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Index database not found at %s (run `ledgerflow init` first)", dbPath)
	}

	log.Printf("Data directory: %s", *dataDir)
	log.Printf("Index database: %s", dbPath)
	log.Printf("Dry run: %v", *dryRun)

	if !*dryRun && !*skipBackup {
		out := *backupPath
		if out == "" {
			out = *dataDir + "_migrate.tar.gz"
		}
		log.Printf("Creating backup: %s", out)
		result, err := backup.Create(l, backup.CreateOptions{OutPath: out, IncludeInbox: true})
		if err != nil {
			log.Fatalf("Failed to create backup: %v", err)
		}
		log.Printf("Backup created: %s (%d files, %d bytes)", result.ArchivePath, result.FileCount, result.SizeBytes)
	}

	idx, err := index.Open(l)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer idx.Close()

	before, err := idx.Stats(dbPath)
	if err != nil {
		log.Fatalf("Failed to read index stats: %v", err)
	}
	log.Printf("Before: %d transactions (%d live), %d corrections, %d sources, schema v%d",
		before.Transactions, before.TransactionsLive, before.Corrections, before.Sources, before.IndexSchemaVersion)

	if *dryRun {
		log.Println("\n[DRY RUN] Would rebuild the secondary index from the ledger event log.")
		log.Println("Run without --dry-run to perform the rebuild.")
		return
	}

	result, err := idx.Rebuild(l)
	if err != nil {
		log.Fatalf("Rebuild failed: %v", err)
	}
	fmt.Printf("\n✓ Rebuild completed: %d transactions, %d corrections, %d sources indexed into %s\n",
		result.TransactionsIndexed, result.CorrectionsIndexed, result.SourcesIndexed, result.DBPath)

	after, err := idx.Stats(dbPath)
	if err != nil {
		log.Fatalf("Failed to read post-rebuild index stats: %v", err)
	}
	log.Printf("After: %d transactions (%d live), %d corrections, %d sources, schema v%d",
		after.Transactions, after.TransactionsLive, after.Corrections, after.Sources, after.IndexSchemaVersion)
}
