package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalFromAny(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, "0"},
		{"empty string", "", "0"},
		{"int", 42, "42"},
		{"float", 19.99, "19.99"},
		{"string", "-12.50", "-12.5"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, err := DecimalFromAny(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, d.String())
		})
	}
}

func TestDecimalFromAnyInvalid(t *testing.T) {
	_, err := DecimalFromAny("not-a-number")
	assert.Error(t, err)
}

func TestAmountJSONRoundTrip(t *testing.T) {
	a := Amount{Value: decimal.RequireFromString("-45.67"), Currency: "USD"}
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"-45.67","currency":"USD"}`, string(data))

	var out Amount
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, a.Value.Equal(out.Value))
	assert.Equal(t, a.Currency, out.Currency)
}

func TestIsDebit(t *testing.T) {
	assert.True(t, Amount{Value: decimal.RequireFromString("-1")}.IsDebit())
	assert.False(t, Amount{Value: decimal.RequireFromString("1")}.IsDebit())
}
