// Package idgen generates content identifiers and hashes used across the
// ledger, source registry, task queue, and alert pipeline.
package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// entropy is a crypto/rand backed reader so ULIDs are unpredictable even
// across processes started in the same millisecond.
type entropy struct{}

func (entropy) Read(p []byte) (int, error) {
	return rand.Read(p)
}

// New generates a fresh 26-char Crockford-base32 ULID.
func New() string {
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, entropy{})
	if err != nil {
		// crypto/rand failure is fatal to any caller relying on unique ids;
		// fall back to the monotonic default entropy source rather than panic.
		id = ulid.MustNew(ms, ulid.Monotonic(rand.Reader, 0))
	}
	return id.String()
}

// NewID returns a prefixed identifier, e.g. NewID("tx") -> "tx_01H...".
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, New())
}

const (
	PrefixTransaction = "tx"
	PrefixEvent       = "evt"
	PrefixDocument    = "doc"
	PrefixTask        = "tsk"
	PrefixAlert       = "alrt"
	PrefixDelivery    = "adel"
)

// SHA256Bytes hashes a byte slice and returns its lowercase hex digest.
func SHA256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256Reader hashes the full contents of r, streaming rather than
// buffering in memory.
func SHA256Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash reader: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CanonicalJSON re-encodes v with sorted keys and no insignificant
// whitespace, suitable for content hashing. It round-trips v through a
// generic map/slice representation because Go's encoding/json sorts
// map[string]interface{} keys, but does not sort struct fields by name.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json marshal: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonical json normalize: %w", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonical json re-marshal: %w", err)
	}
	return out, nil
}
