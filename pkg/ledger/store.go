package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/log"
)

// Store appends to and reads the two append-only event log files:
// transactions.jsonl and corrections.jsonl. Neither file is ever rewritten.
type Store struct {
	layout layout.Layout
	logger zerolog.Logger
	hook   atomicfile.AppendHook
}

// New returns a Store rooted at l. hook is invoked (best-effort, from the
// caller's perspective) after every successful append — the secondary
// index wires itself in here.
func New(l layout.Layout, hook atomicfile.AppendHook) *Store {
	return &Store{layout: l, logger: log.WithComponent("ledger"), hook: hook}
}

// toMap round-trips v through JSON so the generic reducer machinery can
// operate on it, and records come back out key-sorted for content hashing.
func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("normalize record: %w", err)
	}
	return m, nil
}

// AppendTransaction writes tx to the transactions log. Callers must ensure
// TxID is unique; the store does not check, since uniqueness is enforced by
// upstream import idempotence (content-hash dedup), not the log itself.
func (s *Store) AppendTransaction(tx Transaction) error {
	m, err := toMap(tx)
	if err != nil {
		return err
	}
	if err := atomicfile.AppendJSONL(s.layout.TransactionsPath(), m, s.hook); err != nil {
		return err
	}
	s.logger.Debug().Str("tx_id", tx.TxID).Msg("transaction appended")
	return nil
}

// AppendCorrection writes evt to the corrections log.
func (s *Store) AppendCorrection(evt CorrectionEvent) error {
	m, err := toMap(evt)
	if err != nil {
		return err
	}
	if err := atomicfile.AppendJSONL(s.layout.CorrectionsPath(), m, s.hook); err != nil {
		return err
	}
	s.logger.Debug().Str("event_id", evt.EventID).Str("tx_id", evt.TxID).Msg("correction appended")
	return nil
}

// LoadTransactionsRaw returns every transaction record as a generic map, in
// file (append) order.
func (s *Store) LoadTransactionsRaw() ([]map[string]interface{}, error) {
	return atomicfile.IterJSONL(s.layout.TransactionsPath())
}

// LoadCorrectionsRaw returns every correction record as a generic map, in
// file (append) order.
func (s *Store) LoadCorrectionsRaw() ([]map[string]interface{}, error) {
	return atomicfile.IterJSONL(s.layout.CorrectionsPath())
}

// Layout exposes the underlying layout for callers that need raw paths.
func (s *Store) Layout() layout.Layout { return s.layout }
