package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sriinnu/ledgerflow/pkg/layout"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(layout.For(dir), nil)
}

func TestReducePatchMergesMerchant(t *testing.T) {
	txs := []map[string]interface{}{
		{"txId": "T1", "merchant": ""},
	}
	corrections := []map[string]interface{}{
		{"eventId": "E1", "txId": "T1", "type": "patch", "patch": map[string]interface{}{"merchant": "B"}},
	}
	view := Reduce(txs, corrections, false)
	require.Len(t, view.Transactions, 1)
	assert.Equal(t, "B", view.Transactions[0]["merchant"])
	assert.Equal(t, 1, view.AppliedCorrections)
}

func TestReduceTombstoneDropsTransaction(t *testing.T) {
	txs := []map[string]interface{}{
		{"txId": "T1"},
		{"txId": "T2"},
	}
	corrections := []map[string]interface{}{
		{"eventId": "E1", "txId": "T1", "type": "tombstone"},
	}
	view := Reduce(txs, corrections, false)
	require.Len(t, view.Transactions, 1)
	assert.Equal(t, "T2", view.Transactions[0]["txId"])
	assert.True(t, view.DeletedTxIDs["T1"])

	viewWithDeleted := Reduce(txs, corrections, true)
	assert.Len(t, viewWithDeleted.Transactions, 2)
}

func TestReduceIgnoresUnknownTxID(t *testing.T) {
	txs := []map[string]interface{}{{"txId": "T1"}}
	corrections := []map[string]interface{}{
		{"eventId": "E1", "txId": "UNKNOWN", "type": "patch", "patch": map[string]interface{}{"merchant": "X"}},
	}
	view := Reduce(txs, corrections, false)
	require.Len(t, view.Transactions, 1)
	assert.Equal(t, 0, view.AppliedCorrections)
}

func TestReduceIgnoresUnknownCorrectionType(t *testing.T) {
	txs := []map[string]interface{}{{"txId": "T1", "merchant": "A"}}
	corrections := []map[string]interface{}{
		{"eventId": "E1", "txId": "T1", "type": "mystery"},
	}
	view := Reduce(txs, corrections, false)
	require.Len(t, view.Transactions, 1)
	assert.Equal(t, "A", view.Transactions[0]["merchant"])
	assert.Equal(t, 0, view.AppliedCorrections)
}

func TestReduceIsDeterministic(t *testing.T) {
	txs := []map[string]interface{}{{"txId": "T1", "category": map[string]interface{}{"id": "groceries"}}}
	corrections := []map[string]interface{}{
		{"eventId": "E1", "txId": "T1", "type": "patch", "patch": map[string]interface{}{"category": map[string]interface{}{"confidence": 0.9}}},
	}
	v1 := Reduce(txs, corrections, false)
	v2 := Reduce(txs, corrections, false)
	assert.Equal(t, v1.Transactions, v2.Transactions)
}

func TestStoreAppendAndLoad(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AppendTransaction(Transaction{TxID: "T1", Merchant: "Farmers Market"}))
	require.NoError(t, s.AppendCorrection(CorrectionEvent{
		EventID: "E1", TxID: "T1", Type: CorrectionPatch,
		Patch: map[string]interface{}{"merchant": "Farmers Market Co"},
	}))

	view, err := s.Load(false)
	require.NoError(t, err)
	require.Len(t, view.Transactions, 1)
	assert.Equal(t, "Farmers Market Co", view.Transactions[0]["merchant"])

	// File contents are appended, never rewritten.
	data, err := os.ReadFile(filepath.Join(s.Layout().LedgerDir(), "transactions.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Farmers Market")
}

func TestDeepMergePreservesUnknownFields(t *testing.T) {
	dst := map[string]interface{}{"a": map[string]interface{}{"x": 1, "y": 2}}
	DeepMerge(dst, map[string]interface{}{"a": map[string]interface{}{"y": 3}})
	inner := dst["a"].(map[string]interface{})
	assert.Equal(t, 1, inner["x"])
	assert.Equal(t, 3, inner["y"])
}

func TestDeepMergeArraysReplaceWholesale(t *testing.T) {
	dst := map[string]interface{}{"tags": []interface{}{"a", "b"}}
	DeepMerge(dst, map[string]interface{}{"tags": []interface{}{"c"}})
	assert.Equal(t, []interface{}{"c"}, dst["tags"])
}
