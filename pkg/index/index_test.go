package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sriinnu/ledgerflow/pkg/layout"
)

func newTestIndex(t *testing.T) (*Index, layout.Layout) {
	t.Helper()
	l := layout.For(t.TempDir())
	idx, err := Open(l)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx, l
}

func TestUpsertAndGetTransaction(t *testing.T) {
	idx, _ := newTestIndex(t)
	tx := map[string]interface{}{
		"txId":       "T1",
		"occurredAt": "2026-02-10",
		"merchant":   "",
		"category":   map[string]interface{}{"id": "groceries"},
		"amount":     map[string]interface{}{"value": "-12.30", "currency": "USD"},
	}
	require.NoError(t, idx.UpsertTransaction(tx, "2026-02-10T00:00:00Z"))

	row, ok, err := idx.GetTransaction("T1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "groceries", row.CategoryID)
	assert.Equal(t, "2026-02", row.Month)
}

func TestApplyCorrectionUpdatesProjection(t *testing.T) {
	idx, _ := newTestIndex(t)
	tx := map[string]interface{}{"txId": "T1", "merchant": ""}
	require.NoError(t, idx.UpsertTransaction(tx, "2026-02-10T00:00:00Z"))

	evt := map[string]interface{}{
		"eventId": "E1", "txId": "T1", "type": "patch",
		"patch": map[string]interface{}{"merchant": "B"},
	}
	require.NoError(t, idx.ApplyCorrection(evt, "2026-02-10T00:01:00Z"))

	row, ok, err := idx.GetTransaction("T1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "B", row.Merchant)
}

func TestApplyCorrectionTombstoneMarksDeleted(t *testing.T) {
	idx, _ := newTestIndex(t)
	require.NoError(t, idx.UpsertTransaction(map[string]interface{}{"txId": "T1"}, "2026-02-10T00:00:00Z"))
	require.NoError(t, idx.ApplyCorrection(map[string]interface{}{
		"eventId": "E1", "txId": "T1", "type": "tombstone",
	}, "2026-02-10T00:01:00Z"))

	row, ok, err := idx.GetTransaction("T1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, row.IsDeleted)
}

func TestHasSourceHash(t *testing.T) {
	idx, _ := newTestIndex(t)
	tx := map[string]interface{}{
		"txId":   "T1",
		"source": map[string]interface{}{"docId": "doc_1", "sourceHash": "sha256:abc"},
	}
	require.NoError(t, idx.UpsertTransaction(tx, "2026-02-10T00:00:00Z"))

	found, err := idx.HasSourceHash("doc_1", "sha256:abc")
	require.NoError(t, err)
	assert.True(t, found)

	notFound, err := idx.HasSourceHash("doc_1", "sha256:other")
	require.NoError(t, err)
	assert.False(t, notFound)
}

func TestListByMonthAndCategory(t *testing.T) {
	idx, _ := newTestIndex(t)
	require.NoError(t, idx.UpsertTransaction(map[string]interface{}{
		"txId": "T1", "occurredAt": "2026-02-10",
		"category": map[string]interface{}{"id": "groceries"},
	}, "2026-02-10T00:00:00Z"))
	require.NoError(t, idx.UpsertTransaction(map[string]interface{}{
		"txId": "T2", "occurredAt": "2026-02-15",
		"category": map[string]interface{}{"id": "rent"},
	}, "2026-02-15T00:00:00Z"))

	byMonth, err := idx.ListByMonth("2026-02")
	require.NoError(t, err)
	assert.Len(t, byMonth, 2)

	byCategory, err := idx.ListByCategory("groceries")
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "T1", byCategory[0].TxID)
}

func TestRebuildReplaysFromFiles(t *testing.T) {
	idx, l := newTestIndex(t)
	require.NoError(t, idx.UpsertTransaction(map[string]interface{}{"txId": "STALE"}, "2026-02-10T00:00:00Z"))

	require.NoError(t, writeTestJSONL(l.TransactionsPath(), map[string]interface{}{
		"txId": "T1", "occurredAt": "2026-02-10",
	}))
	require.NoError(t, writeTestJSONL(l.CorrectionsPath(), map[string]interface{}{
		"eventId": "E1", "txId": "T1", "type": "patch",
		"patch": map[string]interface{}{"merchant": "B"},
	}))

	res, err := idx.Rebuild(l)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TransactionsIndexed)
	assert.Equal(t, 1, res.CorrectionsIndexed)

	_, stale, err := idx.GetTransaction("STALE")
	require.NoError(t, err)
	assert.False(t, stale, "rebuild must truncate before replay")

	row, ok, err := idx.GetTransaction("T1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "B", row.Merchant)
}
