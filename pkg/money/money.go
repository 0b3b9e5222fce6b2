// Package money provides exact decimal arithmetic for monetary amounts.
// Binary floats are never used for values that round-trip through the
// ledger: parsing accepts several input representations and formatting
// always produces a non-scientific decimal string.
package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount pairs an exact decimal value with its currency code.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// amountJSON mirrors the wire shape: {"value": "...", "currency": "USD"}.
type amountJSON struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(amountJSON{Value: FormatDecimal(a.Value), Currency: a.Currency})
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw amountJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal amount: %w", err)
	}
	d, err := DecimalFromAny(raw.Value)
	if err != nil {
		return err
	}
	a.Value = d
	a.Currency = raw.Currency
	return nil
}

// DecimalFromAny parses a decimal from the loosely-typed representations
// the ledger accepts on import: empty/nil becomes zero, numeric JSON
// values arrive as float64 via interface{}, everything else is parsed as
// a string.
func DecimalFromAny(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		s := v
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid decimal %q: %w", v, err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported decimal type: %T", value)
	}
}

// FormatDecimal renders d as a plain (non-scientific) decimal string.
func FormatDecimal(d decimal.Decimal) string {
	return d.String()
}

// IsDebit reports whether the amount represents money leaving the
// account (negative value), matching the ledger's debit/credit sign
// convention.
func (a Amount) IsDebit() bool {
	return a.Value.IsNegative()
}

// Abs returns the absolute value as a decimal, discarding currency.
func (a Amount) Abs() decimal.Decimal {
	return a.Value.Abs()
}
