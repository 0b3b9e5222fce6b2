package backup

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/log"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// tarEntry is one buffered archive member: header plus its full data for
// regular files, read before any of it is written to disk.
type tarEntry struct {
	header *tar.Header
	data   []byte
}

// RestoreResult describes a completed restore.
type RestoreResult struct {
	ArchivePath      string `json:"archivePath"`
	TargetDir        string `json:"targetDir"`
	ExtractedEntries int    `json:"extractedEntries"`
	RestoredAt       string `json:"restoredAt"`
}

// Restore extracts archivePath into targetDir. If targetDir already has
// content, force must be true or Restore fails rather than silently
// clobbering existing data.
func Restore(archivePath, targetDir string, force bool) (RestoreResult, error) {
	logger := log.WithComponent("backup")

	archive, err := filepath.Abs(archivePath)
	if err != nil {
		return RestoreResult{}, err
	}
	info, err := os.Stat(archive)
	if err != nil || info.IsDir() {
		return RestoreResult{}, fmt.Errorf("archivePath does not exist")
	}

	target, err := filepath.Abs(targetDir)
	if err != nil {
		return RestoreResult{}, err
	}
	if entries, err := os.ReadDir(target); err == nil && len(entries) > 0 {
		if !force {
			return RestoreResult{}, fmt.Errorf("targetDir is not empty; pass force=true to overwrite")
		}
		if err := os.RemoveAll(target); err != nil {
			return RestoreResult{}, fmt.Errorf("clear target dir: %w", err)
		}
	}
	if err := atomicfile.EnsureDir(target); err != nil {
		return RestoreResult{}, err
	}

	extracted, err := safeExtract(archive, target)
	if err != nil {
		return RestoreResult{}, err
	}

	restoredAt := timeutil.NowISO()
	logger.Info().Str("archive", archive).Str("target", target).Int("entries", extracted).Msg("backup restored")
	return RestoreResult{ArchivePath: archive, TargetDir: target, ExtractedEntries: extracted, RestoredAt: restoredAt}, nil
}

// safeExtract validates every archive member's destination path and the
// archive's MANIFEST.json before extracting any of them, refusing
// absolute paths, any entry that would resolve outside target, and any
// archive missing a manifest or stamped with a newer format version than
// this build understands.
func safeExtract(archivePath, target string) (int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	var entries []tarEntry

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read tar: %w", err)
		}
		name := hdr.Name
		if name == "" || strings.HasPrefix(name, "/") {
			return 0, fmt.Errorf("invalid archive member path")
		}
		dest := filepath.Join(target, filepath.FromSlash(name))
		destResolved, err := filepath.Abs(dest)
		if err != nil {
			return 0, err
		}
		if destResolved != target && !strings.HasPrefix(destResolved, target+string(os.PathSeparator)) {
			return 0, fmt.Errorf("archive contains path traversal entries")
		}

		var data []byte
		if hdr.Typeflag == tar.TypeReg {
			data, err = io.ReadAll(tr)
			if err != nil {
				return 0, fmt.Errorf("read tar entry %s: %w", name, err)
			}
		}
		entries = append(entries, tarEntry{header: hdr, data: data})
	}

	if err := validateManifest(entries); err != nil {
		return 0, err
	}

	for _, e := range entries {
		dest := filepath.Join(target, filepath.FromSlash(e.header.Name))
		switch e.header.Typeflag {
		case tar.TypeDir:
			if err := atomicfile.EnsureDir(dest); err != nil {
				return 0, err
			}
		case tar.TypeReg:
			if err := atomicfile.EnsureDir(filepath.Dir(dest)); err != nil {
				return 0, err
			}
			if err := os.WriteFile(dest, e.data, os.FileMode(e.header.Mode)); err != nil {
				return 0, fmt.Errorf("write %s: %w", dest, err)
			}
		}
	}

	return len(entries), nil
}

// validateManifest locates MANIFEST.json among entries and checks it
// parses and declares a format version this build can restore, before
// any entry is written to disk. Archives from an older backup package
// revision with no manifest at all are rejected the same way.
func validateManifest(entries []tarEntry) error {
	for _, e := range entries {
		if e.header.Typeflag != tar.TypeReg || e.header.Name != "MANIFEST.json" {
			continue
		}
		var manifest Manifest
		if err := json.Unmarshal(e.data, &manifest); err != nil {
			return fmt.Errorf("archive manifest is not valid JSON: %w", err)
		}
		if manifest.FormatVersion > ManifestFormatVersion {
			return fmt.Errorf("archive manifest format version %d is newer than this build supports (%d)",
				manifest.FormatVersion, ManifestFormatVersion)
		}
		return nil
	}
	return fmt.Errorf("archive is missing MANIFEST.json")
}
