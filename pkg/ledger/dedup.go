package ledger

import (
	"regexp"
	"strings"
	"time"

	"github.com/sriinnu/ledgerflow/pkg/idgen"
	"github.com/sriinnu/ledgerflow/pkg/money"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// DedupOptions controls MarkManualDuplicatesAgainstBank.
type DedupOptions struct {
	FromDate         string
	ToDate           string
	MaxDaysDiff      int
	AmountTolerance  string
	Commit           bool
}

// DedupResult summarizes a duplicate-matching pass.
type DedupResult struct {
	Matches int `json:"matches"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Commit  bool `json:"commit"`
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeMerchant(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

// merchantScore is a crude token-overlap similarity in [0,1]: 1 for exact
// match, 0.8 for one containing the other, else Jaccard similarity of the
// whitespace-split token sets.
func merchantScore(a, b string) float64 {
	aa, bb := normalizeMerchant(a), normalizeMerchant(b)
	if aa == "" || bb == "" {
		return 0
	}
	if aa == bb {
		return 1
	}
	if strings.Contains(bb, aa) || strings.Contains(aa, bb) {
		return 0.8
	}
	ta := tokenSet(aa)
	tb := tokenSet(bb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, t := range strings.Fields(s) {
		out[t] = true
	}
	return out
}

// MarkManualDuplicatesAgainstBank scans manual debits against bank_csv
// debits within maxDaysDiff and amountTolerance, and appends a "patch"
// correction tagging matched manual transactions as duplicate_candidate
// with links.duplicateOfTxId set to the matched bank transaction. This is
// a heuristic, not a hard guarantee: date, currency and amount act as
// filters, and the best remaining candidate's score (0.5 plus half the
// merchant similarity) must be at least 0.65 to flag a match.
func (s *Store) MarkManualDuplicatesAgainstBank(opts DedupOptions) (DedupResult, error) {
	view, err := s.Load(false)
	if err != nil {
		return DedupResult{}, err
	}
	txs := FilterByDateRange(view.Transactions, opts.FromDate, opts.ToDate)

	var manual, bank []map[string]interface{}
	for _, tx := range txs {
		switch TxSourceType(tx) {
		case "manual":
			manual = append(manual, tx)
		case "bank_csv":
			bank = append(bank, tx)
		}
	}

	maxDays := opts.MaxDaysDiff
	if maxDays <= 0 {
		maxDays = 1
	}
	tolStr := opts.AmountTolerance
	if tolStr == "" {
		tolStr = "0.01"
	}
	tol, err := money.DecimalFromAny(tolStr)
	if err != nil {
		return DedupResult{}, err
	}

	result := DedupResult{Commit: opts.Commit}

	for _, mtx := range manual {
		mDateStr := TxDate(mtx)
		if mDateStr == "" {
			continue
		}
		mDate, err := timeutil.ParseYMD(mDateStr)
		if err != nil {
			continue
		}
		mAmt := TxAmountDecimal(mtx)
		if !mAmt.IsNegative() {
			continue
		}
		mAbs := mAmt.Neg()
		mCurrency := TxCurrency(mtx)
		mMerchant := TxMerchant(mtx)

		var best map[string]interface{}
		bestScore := -1.0

		for _, btx := range bank {
			bDateStr := TxDate(btx)
			if bDateStr == "" {
				continue
			}
			bDate, err := timeutil.ParseYMD(bDateStr)
			if err != nil {
				continue
			}
			if absDays(bDate.Sub(mDate)) > maxDays {
				continue
			}
			if mCurrency != "" && TxCurrency(btx) != "" && TxCurrency(btx) != mCurrency {
				continue
			}
			bAmt := TxAmountDecimal(btx)
			if !bAmt.IsNegative() {
				continue
			}
			bAbs := bAmt.Neg()
			if bAbs.Sub(mAbs).Abs().GreaterThan(tol) {
				continue
			}
			score := 0.5 + 0.5*merchantScore(mMerchant, TxMerchant(btx))
			if score > bestScore {
				bestScore = score
				best = btx
			}
		}

		if best == nil || bestScore < 0.65 {
			continue
		}
		result.Matches++

		if HasTag(mtx, "duplicate_candidate") {
			result.Skipped++
			continue
		}

		tags := append(append([]string{}, TxTags(mtx)...), "duplicate_candidate")
		patch := map[string]interface{}{
			"tags": toInterfaceSlice(tags),
			"links": map[string]interface{}{
				"duplicateOfTxId": TxID(best),
			},
		}
		evt := CorrectionEvent{
			EventID: idgen.NewID(idgen.PrefixEvent),
			TxID:    TxID(mtx),
			Type:    CorrectionPatch,
			Patch:   patch,
			Reason:  "auto_dedup_manual_vs_bank",
			At:      timeutil.NowISO(),
		}

		if opts.Commit {
			if err := s.AppendCorrection(evt); err != nil {
				return result, err
			}
			result.Created++
		}
	}

	return result, nil
}

func absDays(d time.Duration) int {
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

func toInterfaceSlice(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
