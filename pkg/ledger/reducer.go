package ledger

// View is the result of replaying corrections over transactions: the
// current state of the ledger as a pure function of the two input files.
type View struct {
	Transactions      []map[string]interface{}
	DeletedTxIDs      map[string]bool
	AppliedCorrections int
}

// Reduce replays corrections, in file order, over transactions. Patch
// events deep-merge into the targeted transaction's working copy;
// tombstone/delete events mark the transaction deleted. Corrections
// referencing an unknown txId are ignored. Unknown correction types are
// tolerated silently for forward compatibility and never alter state.
//
// Reduce is a pure function: the same two input slices always produce a
// byte-identical (modulo map key order, which JSON encoding sorts) view.
func Reduce(transactions, corrections []map[string]interface{}, includeDeleted bool) View {
	txByID := make(map[string]map[string]interface{}, len(transactions))
	order := make([]string, 0, len(transactions))

	for _, tx := range transactions {
		txID, _ := tx["txId"].(string)
		if txID == "" {
			continue
		}
		if _, exists := txByID[txID]; exists {
			// Invariant: txId appears at most once. If violated anyway,
			// keep the first occurrence and ignore the rest.
			continue
		}
		cp := CloneMap(tx)
		txByID[txID] = cp
		order = append(order, txID)
	}

	deleted := make(map[string]bool)
	applied := 0

	for _, evt := range corrections {
		txID, _ := evt["txId"].(string)
		if txID == "" {
			continue
		}
		target, ok := txByID[txID]
		if !ok {
			continue
		}

		evtType, _ := evt["type"].(string)
		if evtType == "" {
			evtType = string(CorrectionPatch)
		}

		switch {
		case evtType == string(CorrectionPatch):
			if patch, ok := evt["patch"].(map[string]interface{}); ok && len(patch) > 0 {
				DeepMerge(target, patch)
				applied++
			}
		case isDeleteType(evtType):
			deleted[txID] = true
			applied++
		default:
			// Unknown correction type: ignore, forward-compatible.
		}
	}

	view := View{DeletedTxIDs: deleted, AppliedCorrections: applied}
	for _, txID := range order {
		if !includeDeleted && deleted[txID] {
			continue
		}
		view.Transactions = append(view.Transactions, txByID[txID])
	}
	return view
}

// Load reads both logs from the store and reduces them into a View.
func (s *Store) Load(includeDeleted bool) (View, error) {
	txs, err := s.LoadTransactionsRaw()
	if err != nil {
		return View{}, err
	}
	corrections, err := s.LoadCorrectionsRaw()
	if err != nil {
		return View{}, err
	}
	return Reduce(txs, corrections, includeDeleted), nil
}

// FilterByDateRange keeps transactions whose occurredAt/postedAt date
// falls within [fromDate, toDate] (either bound may be empty to mean
// unbounded). For a timestamp value only its YYYY-MM-DD prefix is compared.
func FilterByDateRange(txs []map[string]interface{}, fromDate, toDate string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(txs))
	for _, tx := range txs {
		d := TxDate(tx)
		if d == "" {
			continue
		}
		if len(d) > 10 {
			d = d[:10]
		}
		if fromDate != "" && d < fromDate {
			continue
		}
		if toDate != "" && d > toDate {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// FilterByMonth keeps transactions whose occurredAt/postedAt falls in the
// given YYYY-MM month.
func FilterByMonth(txs []map[string]interface{}, month string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(txs))
	for _, tx := range txs {
		if TxMonth(tx) == month {
			out = append(out, tx)
		}
	}
	return out
}
