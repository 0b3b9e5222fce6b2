// Package ledger implements the append-only transaction/correction event
// store and the deterministic corrections-replay reducer that yields the
// current ledger view.
package ledger

import "github.com/sriinnu/ledgerflow/pkg/money"

// Source identifies where a transaction came from and how to deduplicate
// the row it was extracted from.
type Source struct {
	DocID      string `json:"docId"`
	SourceType string `json:"sourceType"`
	SourceHash string `json:"sourceHash"`
	LineRef    string `json:"lineRef,omitempty"`
}

// Category is the (possibly machine-assigned) category of a transaction.
type Category struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Links records cross-references to receipts, bills, or a duplicate
// transaction.
type Links struct {
	ReceiptDocID    string `json:"receiptDocId,omitempty"`
	BillDocID       string `json:"billDocId,omitempty"`
	DuplicateOfTxID string `json:"duplicateOfTxId,omitempty"`
}

// Confidence carries per-stage extraction/normalization/categorization
// confidence scores, each in [0,1].
type Confidence struct {
	Extraction     float64 `json:"extraction"`
	Normalization  float64 `json:"normalization"`
	Categorization float64 `json:"categorization"`
}

// Transaction is one immutable ledger line. Transactions are never
// rewritten in place; corrections are layered on top at read time by the
// reducer.
type Transaction struct {
	TxID        string        `json:"txId"`
	Source      Source        `json:"source"`
	OccurredAt  string        `json:"occurredAt"`
	PostedAt    string        `json:"postedAt"`
	Amount      money.Amount  `json:"amount"`
	Direction   string        `json:"direction"`
	Merchant    string        `json:"merchant,omitempty"`
	Description string        `json:"description,omitempty"`
	Category    Category      `json:"category"`
	Tags        []string      `json:"tags,omitempty"`
	Links       Links         `json:"links"`
	Confidence  Confidence    `json:"confidence"`
	CreatedAt   string        `json:"createdAt"`
}

// DirectionFor derives the debit/credit direction from the signed amount,
// matching the invariant that Direction must agree with Amount's sign.
func DirectionFor(amt money.Amount) string {
	if amt.IsDebit() {
		return "debit"
	}
	return "credit"
}

// CorrectionType enumerates CorrectionEvent.Type values. Tombstone and
// delete are equivalent; both are retained so forensic/audit readers can
// see which verb produced the deletion.
type CorrectionType string

const (
	CorrectionPatch     CorrectionType = "patch"
	CorrectionTombstone CorrectionType = "tombstone"
	CorrectionDelete    CorrectionType = "delete"
)

// CorrectionEvent is an immutable patch or tombstone targeting a
// transaction by txId. Patch is only populated for type=patch.
type CorrectionEvent struct {
	EventID string                 `json:"eventId"`
	TxID    string                 `json:"txId"`
	At      string                 `json:"at"`
	Type    CorrectionType         `json:"type"`
	Patch   map[string]interface{} `json:"patch,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
}

// isDeleteType reports whether t marks the transaction as removed.
func isDeleteType(t string) bool {
	return t == string(CorrectionTombstone) || t == string(CorrectionDelete)
}
