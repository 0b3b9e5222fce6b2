package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

func seedTx(t *testing.T, l layout.Layout, txID, date, merchant, categoryID string, value string, sourceType string) {
	t.Helper()
	tx := map[string]interface{}{
		"txId":       txID,
		"occurredAt": date + "T00:00:00Z",
		"amount":     map[string]interface{}{"value": value, "currency": "USD"},
		"merchant":   merchant,
		"category":   map[string]interface{}{"id": categoryID, "confidence": 0.9},
		"source":     map[string]interface{}{"sourceType": sourceType},
	}
	require.NoError(t, atomicfile.AppendJSONL(l.TransactionsPath(), tx, nil))
}

func TestPeriodKeyAndBounds(t *testing.T) {
	at, err := timeutil.ParseYMD("2026-07-31")
	require.NoError(t, err)

	dayKey, err := PeriodKey("day", at)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-31", dayKey)

	monthKey, err := PeriodKey("month", at)
	require.NoError(t, err)
	assert.Equal(t, "2026-07", monthKey)

	weekKey, err := PeriodKey("week", at)
	require.NoError(t, err)
	assert.Equal(t, "2026-W31", weekKey)

	start, end, err := PeriodBounds("month", at)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-01", start.Format("2006-01-02"))
	assert.Equal(t, "2026-07-31", end.Format("2006-01-02"))
}

func TestCategoryBudgetFiresOverLimitOnce(t *testing.T) {
	l := layout.For(t.TempDir())
	require.NoError(t, atomicfile.EnsureDir(l.AlertsDir()))
	seedTx(t, l, "tx1", "2026-07-05", "Whole Foods", "groceries", "-100.00", "bank")
	seedTx(t, l, "tx2", "2026-07-10", "Whole Foods", "groceries", "-600.00", "bank")

	require.NoError(t, atomicfile.WriteJSON(l.AlertRulesPath(), RulesConfig{
		Currency: "USD",
		Rules: []map[string]interface{}{
			{"id": "groceries_monthly", "type": "category_budget", "categoryId": "groceries", "period": "month", "limit": 500},
		},
	}))

	e := New(l)
	res, err := e.Run("2026-07-31", true)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "category_budget", res.Events[0].Type)

	res2, err := e.Run("2026-07-31", true)
	require.NoError(t, err)
	assert.Empty(t, res2.Events, "same period must not fire twice")
}

func TestCategoryBudgetDryRunDoesNotPersist(t *testing.T) {
	l := layout.For(t.TempDir())
	require.NoError(t, atomicfile.EnsureDir(l.AlertsDir()))
	seedTx(t, l, "tx1", "2026-07-05", "Whole Foods", "groceries", "-600.00", "bank")
	require.NoError(t, atomicfile.WriteJSON(l.AlertRulesPath(), RulesConfig{
		Rules: []map[string]interface{}{
			{"id": "groceries_monthly", "type": "category_budget", "categoryId": "groceries", "period": "month", "limit": 500},
		},
	}))

	e := New(l)
	res, err := e.Run("2026-07-31", false)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	rows, err := atomicfile.IterJSONL(l.AlertEventsPath())
	require.NoError(t, err)
	assert.Empty(t, rows, "dry run must not append to events.jsonl")
}

func TestCashHeavyDayFiresOnManualCashSpend(t *testing.T) {
	l := layout.For(t.TempDir())
	require.NoError(t, atomicfile.EnsureDir(l.AlertsDir()))
	seedTx(t, l, "tx1", "2026-07-31", "ATM", "uncategorized", "-300.00", "manual")
	require.NoError(t, atomicfile.WriteJSON(l.AlertRulesPath(), RulesConfig{
		Rules: []map[string]interface{}{
			{"id": "cash_day", "type": "cash_heavy_day", "limit": 100},
		},
	}))

	e := New(l)
	res, err := e.Run("2026-07-31", true)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "cash_heavy_day", res.Events[0].Type)
}

func TestUnclassifiedSpendFiresOnLowConfidence(t *testing.T) {
	l := layout.For(t.TempDir())
	require.NoError(t, atomicfile.EnsureDir(l.AlertsDir()))
	seedTx(t, l, "tx1", "2026-07-05", "Mystery Co", "uncategorized", "-50.00", "bank")
	seedTx(t, l, "tx2", "2026-07-10", "Mystery Co", "uncategorized", "-60.00", "bank")
	require.NoError(t, atomicfile.WriteJSON(l.AlertRulesPath(), RulesConfig{
		Rules: []map[string]interface{}{
			{"id": "unclassified", "type": "unclassified_spend", "period": "month", "categoryConfidenceBelow": 0.5, "limit": 100},
		},
	}))

	e := New(l)
	res, err := e.Run("2026-07-31", true)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "unclassified_spend", res.Events[0].Type)
}
