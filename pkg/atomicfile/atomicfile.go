// Package atomicfile provides the two durable write primitives every other
// LedgerFlow package builds on: atomic whole-file JSON replace, and durable
// JSONL append with a best-effort post-append hook.
package atomicfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates path (and any missing parents) if it does not exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", path, err)
	}
	return nil
}

// ReadJSON unmarshals path into v. If the file does not exist, v is left
// holding whatever the caller pre-populated it with (the "default").
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read json %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal json %s: %w", path, err)
	}
	return nil
}

// WriteJSON pretty-prints v with sorted keys and atomically replaces path:
// write to a temp file in the same directory, fsync, then rename.
func WriteJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	canonical, err := canonicalIndent(v)
	if err != nil {
		return fmt.Errorf("marshal json %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(canonical); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}
	return nil
}

// canonicalIndent re-encodes v with sorted map keys, two-space indent, and a
// trailing newline, matching the storage.write_json shape it is grounded on.
func canonicalIndent(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// AppendHook is invoked after a successful JSONL append so callers (the
// secondary index) can piggyback on the write. Hook failures never fail the
// append; callers are expected to log internally.
type AppendHook func(path string, record map[string]interface{})

// AppendJSONL appends one canonical JSON line to path, opening it in
// append mode and flushing before returning. If hook is non-nil it runs
// after the append completes, with its own errors swallowed by the caller.
func AppendJSONL(path string, v interface{}, hook AppendHook) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal jsonl %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open jsonl %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append jsonl %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync jsonl %s: %w", path, err)
	}

	if hook != nil {
		var record map[string]interface{}
		if err := json.Unmarshal(line, &record); err == nil {
			hook(path, record)
		}
	}
	return nil
}

// IterJSONL reads path line by line, skipping blank lines and lines that do
// not decode to a JSON object (tolerated for forward/backward compatibility).
// A missing file yields no records and no error.
func IterJSONL(path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open jsonl %s: %w", path, err)
	}
	defer f.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(trimSpace(line)) == 0 {
			continue
		}
		var record map[string]interface{}
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		out = append(out, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl %s: %w", path, err)
	}
	return out, nil
}

// ReadJSONLLimit reads path and returns at most the last limit records (or
// all of them when limit < 0).
func ReadJSONLLimit(path string, limit int) ([]map[string]interface{}, error) {
	all, err := IterJSONL(path)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(all) > limit {
		return all[len(all)-limit:], nil
	}
	return all, nil
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
