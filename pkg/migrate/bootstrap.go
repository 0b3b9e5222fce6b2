package migrate

import (
	"os"

	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/index"
	"github.com/sriinnu/ledgerflow/pkg/layout"
)

// InitDataLayout creates every directory a LedgerFlow data directory
// needs, ensures the secondary index schema exists, and — when
// writeDefaults is true — seeds default categories and alert rules the
// first time around (existing files are left untouched).
func InitDataLayout(l layout.Layout, writeDefaults bool) error {
	for _, dir := range l.Dirs() {
		if err := atomicfile.EnsureDir(dir); err != nil {
			return err
		}
	}

	idx, err := index.Open(l)
	if err != nil {
		return err
	}
	if err := idx.Close(); err != nil {
		return err
	}

	if !writeDefaults {
		return nil
	}

	if _, err := os.Stat(l.CategoriesPath()); os.IsNotExist(err) {
		if err := atomicfile.WriteJSON(l.CategoriesPath(), defaultCategories()); err != nil {
			return err
		}
	}

	if _, err := os.Stat(l.AlertRulesPath()); os.IsNotExist(err) {
		if err := atomicfile.WriteJSON(l.AlertRulesPath(), defaultAlertRules()); err != nil {
			return err
		}
	}

	if _, err := os.Stat(l.AlertDeliveryRulesPath()); os.IsNotExist(err) {
		if err := atomicfile.WriteJSON(l.AlertDeliveryRulesPath(), defaultDeliveryRules()); err != nil {
			return err
		}
	}

	return nil
}

func defaultCategories() map[string]interface{} {
	type category struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}
	cats := []category{
		{"groceries", "Groceries"},
		{"restaurants", "Restaurants"},
		{"rent", "Rent"},
		{"utilities", "Utilities"},
		{"transport", "Transport"},
		{"shopping", "Shopping"},
		{"health", "Health"},
		{"income", "Income"},
		{"uncategorized", "Uncategorized"},
	}
	return map[string]interface{}{"categories": cats}
}

func defaultAlertRules() map[string]interface{} {
	return map[string]interface{}{
		"currency": "USD",
		"rules": []map[string]interface{}{
			{
				"id": "groceries_monthly", "type": "category_budget",
				"categoryId": "groceries", "period": "month", "limit": 600,
			},
			{
				"id": "restaurants_weekly", "type": "category_budget",
				"categoryId": "restaurants", "period": "week", "limit": 120,
			},
			{
				"id": "new_recurring", "type": "recurring_new",
				"minOccurrences": 3, "spacingDays": []int{25, 35},
			},
		},
	}
}

func defaultDeliveryRules() map[string]interface{} {
	return map[string]interface{}{
		"version": 1,
		"channels": []map[string]interface{}{
			{"id": "local_outbox", "type": "outbox", "enabled": true},
		},
	}
}
