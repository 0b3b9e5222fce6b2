package index

import (
	"encoding/json"
	"sort"

	bolt "go.etcd.io/bbolt"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/metrics"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// RebuildResult summarizes a full index rebuild.
type RebuildResult struct {
	TransactionsIndexed int    `json:"transactionsIndexed"`
	CorrectionsIndexed  int    `json:"correctionsIndexed"`
	SourcesIndexed      int    `json:"sourcesIndexed"`
	DBPath              string `json:"dbPath"`
}

// Rebuild truncates every data bucket and replays transactions.jsonl,
// corrections.jsonl, and sources/index.json in file order, restoring the
// index to full consistency with the append-only inputs.
func (idx *Index) Rebuild(l layout.Layout) (RebuildResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.IndexRebuildDuration)

	err := idx.db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if string(b) == "meta" {
				continue
			}
			if err := tx.DeleteBucket(b); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RebuildResult{}, err
	}

	result := RebuildResult{DBPath: l.IndexDBPath()}

	txs, err := atomicfile.IterJSONL(l.TransactionsPath())
	if err != nil {
		return result, err
	}
	for _, tx := range txs {
		if err := idx.UpsertTransaction(tx, timeutil.NowISO()); err != nil {
			return result, err
		}
		result.TransactionsIndexed++
	}

	corrections, err := atomicfile.IterJSONL(l.CorrectionsPath())
	if err != nil {
		return result, err
	}
	for _, evt := range corrections {
		if err := idx.ApplyCorrection(evt, timeutil.NowISO()); err != nil {
			return result, err
		}
		result.CorrectionsIndexed++
	}

	var srcIdx struct {
		Version int                      `json:"version"`
		Docs    []map[string]interface{} `json:"docs"`
	}
	if err := atomicfile.ReadJSON(l.SourcesIndexPath(), &srcIdx); err != nil {
		return result, err
	}
	for _, doc := range srcIdx.Docs {
		if err := idx.UpsertSource(doc, timeutil.NowISO()); err != nil {
			return result, err
		}
		result.SourcesIndexed++
	}

	return result, nil
}

// RecentTransactions returns up to limit transactions (tombstoned ones only
// when includeDeleted is true) ordered by occurredAt descending (ties broken by updatedAt descending).
func (idx *Index) RecentTransactions(limit int, includeDeleted bool) ([]Row, error) {
	var rows []Row
	err := idx.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).ForEach(func(_, v []byte) error {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return nil
			}
			if !includeDeleted && row.IsDeleted {
				return nil
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].OccurredAt != rows[j].OccurredAt {
			return rows[i].OccurredAt > rows[j].OccurredAt
		}
		return rows[i].UpdatedAt > rows[j].UpdatedAt
	})
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// ListByMonth returns every row indexed under the given YYYY-MM month.
func (idx *Index) ListByMonth(month string) ([]Row, error) {
	return idx.listByBucket(bucketTxByMonth, month)
}

// ListByCategory returns every row indexed under the given category id.
func (idx *Index) ListByCategory(categoryID string) ([]Row, error) {
	return idx.listByBucket(bucketTxByCategory, categoryID)
}

// ListBySourceType returns every row indexed under the given source type.
func (idx *Index) ListBySourceType(sourceType string) ([]Row, error) {
	return idx.listByBucket(bucketTxBySourceType, sourceType)
}

func (idx *Index) listByBucket(bucket []byte, key string) ([]Row, error) {
	var ids []string
	prefix := append(compositeKey(key), 0x00)
	err := idx.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, string(k[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var rows []Row
	err = idx.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var row Row
			if err := json.Unmarshal(data, &row); err != nil {
				continue
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}

// GetTransaction returns the projected row for a single txId.
func (idx *Index) GetTransaction(txID string) (Row, bool, error) {
	var row Row
	var found bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTransactions).Get([]byte(txID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &row)
	})
	return row, found, err
}
