package tasks

import (
	"time"

	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// CompactResult summarizes a CompactFinished call.
type CompactResult struct {
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

// CompactFinished drops done/failed tasks whose finishedAt is older than
// olderThan, keeping the queue document from growing without bound on a
// long-lived workspace. Dead-lettered tasks remain recoverable in
// dead_letters.jsonl regardless of compaction.
func (e *Engine) CompactFinished(olderThan time.Duration) (CompactResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.readQueue()
	if err != nil {
		return CompactResult{}, err
	}
	cutoff := time.Now().UTC().Add(-olderThan)

	kept := make([]Task, 0, len(doc.Tasks))
	removed := 0
	for _, t := range doc.Tasks {
		if (t.Status == StatusDone || t.Status == StatusFailed) && t.FinishedAt != "" {
			finishedAt, err := timeutil.ParseISO(t.FinishedAt)
			if err == nil && finishedAt.Before(cutoff) {
				removed++
				continue
			}
		}
		kept = append(kept, t)
	}
	doc.Tasks = kept
	if err := e.writeQueue(doc); err != nil {
		return CompactResult{}, err
	}
	return CompactResult{Removed: removed, Remaining: len(kept)}, nil
}
