package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sriinnu/ledgerflow/pkg/money"
)

// TxDate returns occurredAt, falling back to postedAt.
func TxDate(tx map[string]interface{}) string {
	if d, _ := tx["occurredAt"].(string); d != "" {
		return d
	}
	if d, _ := tx["postedAt"].(string); d != "" {
		return d
	}
	return ""
}

// TxMonth returns the YYYY-MM prefix of TxDate.
func TxMonth(tx map[string]interface{}) string {
	d := TxDate(tx)
	if len(d) >= 7 {
		return d[:7]
	}
	return ""
}

// TxAmountDecimal returns the transaction's signed amount as an exact
// decimal, zero if absent or unparseable.
func TxAmountDecimal(tx map[string]interface{}) decimal.Decimal {
	amt, _ := tx["amount"].(map[string]interface{})
	if amt == nil {
		return decimal.Zero
	}
	d, err := money.DecimalFromAny(amt["value"])
	if err != nil {
		return decimal.Zero
	}
	return d
}

// TxCurrency returns the transaction's currency code, or "" if absent.
func TxCurrency(tx map[string]interface{}) string {
	amt, _ := tx["amount"].(map[string]interface{})
	if amt == nil {
		return ""
	}
	c, _ := amt["currency"].(string)
	return c
}

// TxCategoryID returns the transaction's category id, or "" if absent.
func TxCategoryID(tx map[string]interface{}) string {
	cat, _ := tx["category"].(map[string]interface{})
	if cat == nil {
		return ""
	}
	id, _ := cat["id"].(string)
	return id
}

// TxCategoryConfidence returns the transaction's category confidence,
// defaulting to 0 if absent or the wrong type.
func TxCategoryConfidence(tx map[string]interface{}) float64 {
	cat, _ := tx["category"].(map[string]interface{})
	if cat == nil {
		return 0
	}
	switch v := cat["confidence"].(type) {
	case float64:
		return v
	default:
		return 0
	}
}

// TxMerchant returns merchant, falling back to description, both trimmed.
func TxMerchant(tx map[string]interface{}) string {
	if m, _ := tx["merchant"].(string); strings.TrimSpace(m) != "" {
		return strings.TrimSpace(m)
	}
	if d, _ := tx["description"].(string); strings.TrimSpace(d) != "" {
		return strings.TrimSpace(d)
	}
	return ""
}

// TxSourceType returns the transaction's source.sourceType, or "" if absent.
func TxSourceType(tx map[string]interface{}) string {
	src, _ := tx["source"].(map[string]interface{})
	if src == nil {
		return ""
	}
	t, _ := src["sourceType"].(string)
	return t
}

// TxID returns the transaction's txId, or "" if absent.
func TxID(tx map[string]interface{}) string {
	id, _ := tx["txId"].(string)
	return id
}

// TxTags returns the transaction's tags list as strings.
func TxTags(tx map[string]interface{}) []string {
	raw, _ := tx["tags"].([]interface{})
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// HasTag reports whether tx carries tag among its tags.
func HasTag(tx map[string]interface{}, tag string) bool {
	for _, t := range TxTags(tx) {
		if t == tag {
			return true
		}
	}
	return false
}
