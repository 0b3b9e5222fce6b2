package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sriinnu/ledgerflow/pkg/layout"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCreateThenRestoreRoundTrips(t *testing.T) {
	src := t.TempDir()
	l := layout.For(src)
	writeFile(t, l.TransactionsPath(), `{"txId":"tx_1"}`+"\n")
	writeFile(t, filepath.Join(l.InboxDir(), "statement.csv"), "date,amount\n")

	archiveDir := t.TempDir()
	out := filepath.Join(archiveDir, "backup.tar.gz")

	result, err := Create(l, CreateOptions{OutPath: out, IncludeInbox: true})
	require.NoError(t, err)
	assert.Equal(t, out, result.ArchivePath)
	assert.GreaterOrEqual(t, result.FileCount, 2)
	assert.True(t, result.IncludeInbox)
	assert.Greater(t, result.SizeBytes, int64(0))

	target := t.TempDir()
	restoreResult, err := Restore(out, target, false)
	require.NoError(t, err)
	assert.Equal(t, result.FileCount+1, restoreResult.ExtractedEntries) // +1 for MANIFEST.json

	restored, err := os.ReadFile(filepath.Join(target, "ledger", "transactions.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, `{"txId":"tx_1"}`+"\n", string(restored))

	manifestBytes, err := os.ReadFile(filepath.Join(target, "MANIFEST.json"))
	require.NoError(t, err)
	assert.Contains(t, string(manifestBytes), `"includeInbox":true`)
}

func TestCreateExcludesInboxByDefault(t *testing.T) {
	src := t.TempDir()
	l := layout.For(src)
	writeFile(t, l.TransactionsPath(), `{}`)
	writeFile(t, filepath.Join(l.InboxDir(), "statement.csv"), "date,amount\n")

	out := filepath.Join(t.TempDir(), "backup.tar.gz")
	_, err := Create(l, CreateOptions{OutPath: out})
	require.NoError(t, err)

	target := t.TempDir()
	_, err = Restore(out, target, false)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(target, "inbox", "statement.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRestoreRefusesNonEmptyTargetWithoutForce(t *testing.T) {
	src := t.TempDir()
	l := layout.For(src)
	writeFile(t, l.TransactionsPath(), `{}`)
	out := filepath.Join(t.TempDir(), "backup.tar.gz")
	_, err := Create(l, CreateOptions{OutPath: out})
	require.NoError(t, err)

	target := t.TempDir()
	writeFile(t, filepath.Join(target, "preexisting.txt"), "keep me")

	_, err = Restore(out, target, false)
	assert.Error(t, err)

	_, err = Restore(out, target, true)
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(target, "preexisting.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRestoreRejectsArchiveMissingManifest(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "no-manifest.tar.gz")
	f, err := os.Create(archive)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	var payload bytes.Buffer
	payload.WriteString(`{"txId":"tx_1"}`)
	hdr := &tar.Header{Name: "ledger/transactions.jsonl", Mode: 0o644, Size: int64(payload.Len())}
	require.NoError(t, tw.WriteHeader(hdr))
	_, err = tw.Write(payload.Bytes())
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	target := t.TempDir()
	_, err = Restore(archive, target, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "MANIFEST.json")
	_, statErr := os.Stat(filepath.Join(target, "ledger", "transactions.jsonl"))
	assert.True(t, os.IsNotExist(statErr), "restore must not write any file before manifest validation fails")
}

func TestRestoreRejectsNewerManifestFormatVersion(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "future.tar.gz")
	f, err := os.Create(archive)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	manifest := []byte(`{"formatVersion":999,"createdAt":"2026-01-01T00:00:00Z","fileCount":0,"includeInbox":false,"sourceDir":"/tmp"}`)
	hdr := &tar.Header{Name: "MANIFEST.json", Mode: 0o644, Size: int64(len(manifest))}
	require.NoError(t, tw.WriteHeader(hdr))
	_, err = tw.Write(manifest)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	target := t.TempDir()
	_, err = Restore(archive, target, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "newer than this build supports")
}

func TestSafeExtractRejectsPathTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	f, err := os.Create(archive)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	var payload bytes.Buffer
	payload.WriteString("pwned")
	hdr := &tar.Header{Name: "../../etc/passwd", Mode: 0o644, Size: int64(payload.Len())}
	require.NoError(t, tw.WriteHeader(hdr))
	_, err = tw.Write(payload.Bytes())
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	target := t.TempDir()
	_, err = Restore(archive, target, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}
