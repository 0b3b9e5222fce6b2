package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDPrefix(t *testing.T) {
	id := NewID(PrefixTransaction)
	assert.True(t, strings.HasPrefix(id, "tx_"))
	assert.Len(t, id, len("tx_")+26)
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		require.False(t, seen[id], "duplicate ULID generated")
		seen[id] = true
	}
}

func TestSHA256Bytes(t *testing.T) {
	got := SHA256Bytes([]byte("hello"))
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got)
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	v := map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"z": 1, "y": 2}}
	out, err := CanonicalJSON(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":2,"z":1}}`, string(out))
}

func TestCanonicalJSONNoWhitespace(t *testing.T) {
	out, err := CanonicalJSON(map[string]interface{}{"x": []int{1, 2, 3}})
	require.NoError(t, err)
	assert.NotContains(t, string(out), " ")
	assert.NotContains(t, string(out), "\n")
}
