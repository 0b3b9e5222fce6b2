// Package migrate implements the versioned, forward-only schema migration
// controller: step 1 creates the data directory layout and seed data, step
// 2 creates/upgrades the secondary index schema and performs a full
// rebuild.
package migrate

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/index"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/log"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// LatestVersion is the highest schema version this controller knows how to
// apply.
const LatestVersion = 2

type stateDoc struct {
	Version   int           `json:"version"`
	UpdatedAt string        `json:"updatedAt,omitempty"`
	History   []historyItem `json:"history"`
}

type historyItem struct {
	Step int    `json:"step"`
	Note string `json:"note"`
	At   string `json:"at"`
}

// Controller drives schema migrations for a single data directory.
type Controller struct {
	layout layout.Layout
	logger zerolog.Logger
}

// New returns a Controller rooted at l.
func New(l layout.Layout) *Controller {
	return &Controller{layout: l, logger: log.WithComponent("migrate")}
}

func (c *Controller) getState() (stateDoc, error) {
	st := stateDoc{Version: 0, History: []historyItem{}}
	if err := atomicfile.ReadJSON(c.layout.SchemaStatePath(), &st); err != nil {
		return stateDoc{}, err
	}
	if st.History == nil {
		st.History = []historyItem{}
	}
	return st, nil
}

// Status reports the current and latest schema versions and how many
// steps remain pending.
type Status struct {
	CurrentVersion  int    `json:"currentVersion"`
	LatestVersion   int    `json:"latestVersion"`
	Pending         int    `json:"pending"`
	SchemaStatePath string `json:"schemaStatePath"`
}

// Status reads the persisted migration state without applying anything.
func (c *Controller) Status() (Status, error) {
	st, err := c.getState()
	if err != nil {
		return Status{}, err
	}
	pending := LatestVersion - st.Version
	if pending < 0 {
		pending = 0
	}
	return Status{
		CurrentVersion:  st.Version,
		LatestVersion:   LatestVersion,
		Pending:         pending,
		SchemaStatePath: c.layout.SchemaStatePath(),
	}, nil
}

// Result summarizes a MigrateToLatest call.
type Result struct {
	FromVersion int   `json:"fromVersion"`
	ToVersion   int   `json:"toVersion"`
	Applied     []int `json:"applied"`
}

// MigrateToLatest applies every pending step strictly in ascending order,
// up to targetVersion (or LatestVersion when nil, clamped to it), appending
// a history entry and persisting state after each individual step so a
// crash mid-migration leaves a consistent recorded version.
func (c *Controller) MigrateToLatest(targetVersion *int) (Result, error) {
	target := LatestVersion
	if targetVersion != nil {
		target = *targetVersion
	}
	if target < 0 {
		return Result{}, fmt.Errorf("target version must be >= 0")
	}
	if target > LatestVersion {
		target = LatestVersion
	}

	if err := atomicfile.EnsureDir(c.layout.MetaDir()); err != nil {
		return Result{}, err
	}
	st, err := c.getState()
	if err != nil {
		return Result{}, err
	}
	result := Result{FromVersion: st.Version}

	for st.Version < target {
		next := st.Version + 1
		var note string
		switch next {
		case 1:
			if err := InitDataLayout(c.layout, true); err != nil {
				return result, fmt.Errorf("migration step 1: %w", err)
			}
			note = "Initialized data layout and defaults."
		case 2:
			if err := InitDataLayout(c.layout, false); err != nil {
				return result, fmt.Errorf("migration step 2: %w", err)
			}
			idx, err := index.Open(c.layout)
			if err != nil {
				return result, fmt.Errorf("migration step 2: %w", err)
			}
			rebuildRes, err := idx.Rebuild(c.layout)
			idx.Close()
			if err != nil {
				return result, fmt.Errorf("migration step 2: %w", err)
			}
			note = fmt.Sprintf("Rebuilt secondary index: %+v", rebuildRes)
		default:
			return result, fmt.Errorf("unsupported migration step: %d", next)
		}

		st.Version = next
		st.UpdatedAt = timeutil.NowISO()
		st.History = append(st.History, historyItem{Step: next, Note: note, At: st.UpdatedAt})
		if err := atomicfile.WriteJSON(c.layout.SchemaStatePath(), st); err != nil {
			return result, fmt.Errorf("persist migration state after step %d: %w", next, err)
		}
		result.Applied = append(result.Applied, next)
		c.logger.Info().Int("step", next).Str("note", note).Msg("migration step applied")
	}

	result.ToVersion = st.Version
	return result, nil
}
