// Package index keeps a bbolt-backed secondary index consistent with the
// append-only ledger and source registry files. Index updates are
// best-effort: a failure here must never fail the append that triggered
// it, since the JSONL files remain the single source of truth.
package index

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/ledger"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/log"
	"github.com/sriinnu/ledgerflow/pkg/metrics"
)

// SchemaVersion is the integer index schema version this package writes.
const SchemaVersion = 1

var (
	bucketMeta           = []byte("meta")
	bucketSources        = []byte("sources")
	bucketTransactions   = []byte("transactions")
	bucketCorrections    = []byte("corrections")
	bucketTxByMonth      = []byte("tx_by_month")
	bucketTxByCategory   = []byte("tx_by_category")
	bucketTxBySourceType = []byte("tx_by_source_type")
	bucketTxByDeleted    = []byte("tx_by_deleted")
	bucketTxByDocHash    = []byte("tx_by_doc_hash")
	bucketTxByOccurredAt = []byte("tx_by_occurred_at")
	bucketCorrByTx       = []byte("corrections_by_tx")
)

var allBuckets = [][]byte{
	bucketMeta, bucketSources, bucketTransactions, bucketCorrections,
	bucketTxByMonth, bucketTxByCategory, bucketTxBySourceType,
	bucketTxByDeleted, bucketTxByDocHash, bucketTxByOccurredAt, bucketCorrByTx,
}

// Row is the projected, denormalized shape stored per transaction, with
// the raw record kept alongside for full-fidelity reads.
type Row struct {
	TxID         string                 `json:"txId"`
	SourceType   string                 `json:"sourceType"`
	SourceDocID  string                 `json:"sourceDocId"`
	SourceHash   string                 `json:"sourceHash"`
	OccurredAt   string                 `json:"occurredAt"`
	PostedAt     string                 `json:"postedAt"`
	Month        string                 `json:"month"`
	AmountValue  string                 `json:"amountValue"`
	Currency     string                 `json:"currency"`
	Direction    string                 `json:"direction"`
	Merchant     string                 `json:"merchant"`
	CategoryID   string                 `json:"categoryId"`
	Raw          map[string]interface{} `json:"rawJson"`
	IsDeleted    bool                   `json:"isDeleted"`
	CreatedAt    string                 `json:"createdAt"`
	UpdatedAt    string                 `json:"updatedAt"`
}

// Index is a bbolt-backed mirror of the ledger event store and source
// registry, kept in sync on every append via best-effort hooks.
type Index struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the bbolt database at l.IndexDBPath()
// and ensures every bucket this package uses exists.
func Open(l layout.Layout) (*Index, error) {
	if err := atomicfile.EnsureDir(l.IndexDir()); err != nil {
		return nil, err
	}
	db, err := bolt.Open(l.IndexDBPath(), 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	idx := &Index{db: db, logger: log.WithComponent("index")}
	if err := idx.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) ensureSchema() error {
	return idx.db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get([]byte("indexSchemaVersion")) == nil {
			return meta.Put([]byte("indexSchemaVersion"), []byte(fmt.Sprintf("%d", SchemaVersion)))
		}
		return nil
	})
}

// Close releases the underlying bbolt file handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func compositeKey(parts ...string) []byte {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += "\x00"
		}
		key += p
	}
	return []byte(key)
}

func rowFromTx(tx map[string]interface{}, isDeleted bool, createdAt string) Row {
	now := createdAt
	return Row{
		TxID:        ledger.TxID(tx),
		SourceType:  ledger.TxSourceType(tx),
		SourceDocID: sourceDocID(tx),
		SourceHash:  sourceHash(tx),
		OccurredAt:  ledger.TxDate(tx),
		PostedAt:    postedAt(tx),
		Month:       ledger.TxMonth(tx),
		AmountValue: ledger.TxAmountDecimal(tx).String(),
		Currency:    ledger.TxCurrency(tx),
		Direction:   direction(tx),
		Merchant:    ledger.TxMerchant(tx),
		CategoryID:  ledger.TxCategoryID(tx),
		Raw:         tx,
		IsDeleted:   isDeleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func sourceDocID(tx map[string]interface{}) string {
	src, _ := tx["source"].(map[string]interface{})
	if src == nil {
		return ""
	}
	v, _ := src["docId"].(string)
	return v
}

func sourceHash(tx map[string]interface{}) string {
	src, _ := tx["source"].(map[string]interface{})
	if src == nil {
		return ""
	}
	v, _ := src["sourceHash"].(string)
	return v
}

func postedAt(tx map[string]interface{}) string {
	v, _ := tx["postedAt"].(string)
	return v
}

func direction(tx map[string]interface{}) string {
	v, _ := tx["direction"].(string)
	return v
}

func deletedKeySuffix(deleted bool) string {
	if deleted {
		return "1"
	}
	return "0"
}

// removeSecondaryKeys deletes every secondary-index entry previously
// written for row, so a subsequent re-index under new field values does
// not leave stale composite keys behind.
func removeSecondaryKeys(tx *bolt.Tx, row Row) error {
	if err := tx.Bucket(bucketTxByMonth).Delete(compositeKey(row.Month, row.TxID)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxByCategory).Delete(compositeKey(row.CategoryID, row.TxID)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxBySourceType).Delete(compositeKey(row.SourceType, row.TxID)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxByDeleted).Delete(compositeKey(deletedKeySuffix(row.IsDeleted), row.TxID)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxByDocHash).Delete(compositeKey(row.SourceDocID, row.SourceHash, row.TxID)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxByOccurredAt).Delete(compositeKey(row.OccurredAt, row.TxID)); err != nil {
		return err
	}
	return nil
}

func writeSecondaryKeys(tx *bolt.Tx, row Row) error {
	empty := []byte(row.TxID)
	if err := tx.Bucket(bucketTxByMonth).Put(compositeKey(row.Month, row.TxID), empty); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxByCategory).Put(compositeKey(row.CategoryID, row.TxID), empty); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxBySourceType).Put(compositeKey(row.SourceType, row.TxID), empty); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxByDeleted).Put(compositeKey(deletedKeySuffix(row.IsDeleted), row.TxID), empty); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxByDocHash).Put(compositeKey(row.SourceDocID, row.SourceHash, row.TxID), empty); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTxByOccurredAt).Put(compositeKey(row.OccurredAt, row.TxID), empty); err != nil {
		return err
	}
	return nil
}

// UpsertTransaction inserts or replaces the projected row for a freshly
// appended transaction.
func (idx *Index) UpsertTransaction(raw map[string]interface{}, createdAt string) error {
	row := rowFromTx(raw, false, createdAt)
	if row.TxID == "" {
		return nil
	}
	err := idx.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		if existing := b.Get([]byte(row.TxID)); existing != nil {
			var old Row
			if err := json.Unmarshal(existing, &old); err == nil {
				if err := removeSecondaryKeys(tx, old); err != nil {
					return err
				}
				row.CreatedAt = old.CreatedAt
			}
		}
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(row.TxID), data); err != nil {
			return err
		}
		return writeSecondaryKeys(tx, row)
	})
	if err != nil {
		idx.logger.Warn().Err(err).Str("tx_id", row.TxID).Msg("index upsert transaction failed (best-effort)")
		return err
	}
	metrics.IndexRowsTotal.WithLabelValues("transactions").Inc()
	return nil
}

// ApplyCorrection records the correction event and, for patches, deep
// merges it into the targeted row's raw JSON and re-derives projected
// columns; for tombstone/delete it flips isDeleted.
func (idx *Index) ApplyCorrection(evt map[string]interface{}, appliedAt string) error {
	eventID, _ := evt["eventId"].(string)
	txID, _ := evt["txId"].(string)
	if eventID == "" || txID == "" {
		return nil
	}

	err := idx.db.Update(func(tx *bolt.Tx) error {
		corrBucket := tx.Bucket(bucketCorrections)
		data, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		if err := corrBucket.Put([]byte(eventID), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketCorrByTx).Put(compositeKey(txID, eventID), []byte(eventID)); err != nil {
			return err
		}

		txBucket := tx.Bucket(bucketTransactions)
		existing := txBucket.Get([]byte(txID))
		if existing == nil {
			return nil
		}
		var row Row
		if err := json.Unmarshal(existing, &row); err != nil {
			return err
		}
		if err := removeSecondaryKeys(tx, row); err != nil {
			return err
		}

		evtType, _ := evt["type"].(string)
		if evtType == "" {
			evtType = "patch"
		}
		switch {
		case evtType == "patch":
			if patch, ok := evt["patch"].(map[string]interface{}); ok {
				ledger.DeepMerge(row.Raw, patch)
			}
			updated := rowFromTx(row.Raw, row.IsDeleted, row.CreatedAt)
			updated.UpdatedAt = appliedAt
			row = updated
		case evtType == "tombstone" || evtType == "delete":
			row.IsDeleted = true
			row.UpdatedAt = appliedAt
		default:
			// Unknown correction type: retain the row unchanged besides
			// the correction record itself, already appended above.
		}

		newData, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := txBucket.Put([]byte(txID), newData); err != nil {
			return err
		}
		return writeSecondaryKeys(tx, row)
	})
	if err != nil {
		idx.logger.Warn().Err(err).Str("tx_id", txID).Msg("index apply correction failed (best-effort)")
	}
	return err
}

// UpsertSource inserts or replaces the projected row for a source document.
func (idx *Index) UpsertSource(doc map[string]interface{}, indexedAt string) error {
	docID, _ := doc["docId"].(string)
	if docID == "" {
		return nil
	}
	return idx.db.Update(func(tx *bolt.Tx) error {
		record := map[string]interface{}{}
		for k, v := range doc {
			record[k] = v
		}
		record["indexedAt"] = indexedAt
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSources).Put([]byte(docID), data)
	})
}

// HasSourceHash reports whether any indexed transaction has the given
// (sourceDocId, sourceHash) pair, supporting O(1) dedup checks on import.
func (idx *Index) HasSourceHash(docID, sourceHash string) (bool, error) {
	var found bool
	prefix := append(compositeKey(docID, sourceHash), 0x00)
	err := idx.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTxByDocHash).Cursor()
		k, _ := c.Seek(prefix)
		found = k != nil && hasPrefix(k, prefix)
		return nil
	})
	return found, err
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Stats reports row counts and the current schema version.
type Stats struct {
	DBPath             string `json:"dbPath"`
	IndexSchemaVersion int    `json:"indexSchemaVersion"`
	Transactions       int    `json:"transactions"`
	TransactionsLive   int    `json:"transactionsLive"`
	Corrections        int    `json:"corrections"`
	Sources            int    `json:"sources"`
}

// Stats computes row counts across every bucket.
func (idx *Index) Stats(dbPath string) (Stats, error) {
	var s Stats
	s.DBPath = dbPath
	err := idx.db.View(func(tx *bolt.Tx) error {
		s.Transactions = tx.Bucket(bucketTransactions).Stats().KeyN
		s.Corrections = tx.Bucket(bucketCorrections).Stats().KeyN
		s.Sources = tx.Bucket(bucketSources).Stats().KeyN
		s.TransactionsLive = tx.Bucket(bucketTxByDeleted).Stats().KeyN - countDeleted(tx)
		if raw := tx.Bucket(bucketMeta).Get([]byte("indexSchemaVersion")); raw != nil {
			fmt.Sscanf(string(raw), "%d", &s.IndexSchemaVersion)
		}
		return nil
	})
	return s, err
}

func countDeleted(tx *bolt.Tx) int {
	c := tx.Bucket(bucketTxByDeleted).Cursor()
	n := 0
	prefix := compositeKey("1")
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		n++
	}
	return n
}
