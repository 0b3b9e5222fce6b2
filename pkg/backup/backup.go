// Package backup creates and restores gzipped tar snapshots of a
// LedgerFlow data directory, validating every archive member before
// extracting any of them.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/idgen"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/log"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// ManifestFormatVersion is the archive layout version stamped into every
// MANIFEST.json. Restore refuses any archive with a newer version than
// this build understands, before extracting anything else.
const ManifestFormatVersion = 1

// Manifest is written into every archive as MANIFEST.json, its first tar
// entry, enriching the original's bare tarball with enough metadata for
// Restore to check compatibility before extracting the rest of the
// archive.
type Manifest struct {
	FormatVersion int    `json:"formatVersion"`
	CreatedAt     string `json:"createdAt"`
	FileCount     int    `json:"fileCount"`
	IncludeInbox  bool   `json:"includeInbox"`
	SourceDir     string `json:"sourceDir"`
}

// CreateResult describes a completed backup.
type CreateResult struct {
	ArchivePath  string `json:"archivePath"`
	SizeBytes    int64  `json:"sizeBytes"`
	FileCount    int    `json:"fileCount"`
	IncludeInbox bool   `json:"includeInbox"`
	CreatedAt    string `json:"createdAt"`
}

// CreateOptions configures Create.
type CreateOptions struct {
	OutPath      string
	IncludeInbox bool
}

// Create tars and gzips every file under l.DataDir into outPath (or a
// timestamped default alongside the data directory when empty), skipping
// the archive file itself and, unless IncludeInbox is set, everything
// under the inbox directory.
func Create(l layout.Layout, opts CreateOptions) (CreateResult, error) {
	logger := log.WithComponent("backup")
	srcRoot, err := filepath.Abs(l.DataDir)
	if err != nil {
		return CreateResult{}, err
	}

	out := opts.OutPath
	if out == "" {
		out = defaultBackupPath(srcRoot)
	}
	out, err = filepath.Abs(out)
	if err != nil {
		return CreateResult{}, err
	}
	if err := atomicfile.EnsureDir(filepath.Dir(out)); err != nil {
		return CreateResult{}, err
	}

	file, err := os.Create(out)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create archive %s: %w", out, err)
	}
	defer file.Close()

	fileCount, err := countEligibleFiles(srcRoot, out, opts.IncludeInbox)
	if err != nil {
		return CreateResult{}, fmt.Errorf("walk data dir: %w", err)
	}

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)

	createdAt := timeutil.NowISO()
	manifest := Manifest{
		FormatVersion: ManifestFormatVersion,
		CreatedAt:     createdAt,
		FileCount:     fileCount,
		IncludeInbox:  opts.IncludeInbox,
		SourceDir:     srcRoot,
	}
	if err := addManifestToTar(tw, manifest); err != nil {
		tw.Close()
		gz.Close()
		return CreateResult{}, err
	}

	err = filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if absPath == out {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, absPath)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !opts.IncludeInbox && (rel == "inbox" || strings.HasPrefix(rel, "inbox/")) {
			return nil
		}
		return addFileToTar(tw, path, rel, info)
	})
	if err != nil {
		tw.Close()
		gz.Close()
		return CreateResult{}, fmt.Errorf("walk data dir: %w", err)
	}

	if err := tw.Close(); err != nil {
		gz.Close()
		return CreateResult{}, fmt.Errorf("finalize tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return CreateResult{}, fmt.Errorf("finalize gzip: %w", err)
	}

	info, err := os.Stat(out)
	var size int64
	if err == nil {
		size = info.Size()
	}

	logger.Info().Str("archive", out).Int("files", fileCount).Msg("backup created")
	return CreateResult{
		ArchivePath: out, SizeBytes: size, FileCount: fileCount,
		IncludeInbox: opts.IncludeInbox, CreatedAt: createdAt,
	}, nil
}

// countEligibleFiles walks srcRoot and counts the files Create will archive,
// without touching the tar writer, so the manifest's fileCount is known
// before the first tar entry is written.
func countEligibleFiles(srcRoot, outPath string, includeInbox bool) (int, error) {
	count := 0
	err := filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if absPath == outPath {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, absPath)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !includeInbox && (rel == "inbox" || strings.HasPrefix(rel, "inbox/")) {
			return nil
		}
		count++
		return nil
	})
	return count, err
}

func defaultBackupPath(srcRoot string) string {
	stamp := strings.NewReplacer(":", "", "-", "", "T", "-", "Z", "").Replace(timeutil.NowISO())
	return filepath.Join(filepath.Dir(srcRoot), "ledgerflow_backups", fmt.Sprintf("ledgerflow-%s.tar.gz", stamp))
}

func addFileToTar(tw *tar.Writer, path, arcname string, info os.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = arcname
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

func addManifestToTar(tw *tar.Writer, manifest Manifest) error {
	data, err := idgen.CanonicalJSON(manifest)
	if err != nil {
		return err
	}
	hdr := &tar.Header{Name: "MANIFEST.json", Mode: 0o644, Size: int64(len(data))}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = tw.Write(data)
	return err
}
