// Package source implements the content-addressed source document
// registry: every ingested file (CSV/JSON/receipt/bill) is identified by
// the SHA-256 of its bytes, and re-registering the same content is
// idempotent.
package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sriinnu/ledgerflow/pkg/atomicfile"
	"github.com/sriinnu/ledgerflow/pkg/idgen"
	"github.com/sriinnu/ledgerflow/pkg/layout"
	"github.com/sriinnu/ledgerflow/pkg/log"
	"github.com/sriinnu/ledgerflow/pkg/timeutil"
)

// Doc is a registered source document record, written to
// sources/<docId>/meta.json and mirrored into sources/index.json.
type Doc struct {
	DocID        string                 `json:"docId"`
	OriginalPath string                 `json:"originalPath"`
	StoredPath   string                 `json:"storedPath,omitempty"`
	SHA256       string                 `json:"sha256"`
	Size         int64                  `json:"size"`
	AddedAt      string                 `json:"addedAt"`
	SourceType   string                 `json:"sourceType,omitempty"`
	Extra        map[string]interface{} `json:"-"`
}

// index is the on-disk sources/index.json document.
type index struct {
	Version int                      `json:"version"`
	Docs    []map[string]interface{} `json:"docs"`
}

func defaultIndex() index {
	return index{Version: 1, Docs: []map[string]interface{}{}}
}

// Registry registers and looks up source documents under a data directory.
type Registry struct {
	layout layout.Layout
	logger zerolog.Logger
}

// New returns a Registry rooted at l.
func New(l layout.Layout) *Registry {
	return &Registry{layout: l, logger: log.WithComponent("source")}
}

// RegisterOptions controls Register's behavior.
type RegisterOptions struct {
	CopyIntoStore bool
	SourceType    string
	ExtraMeta     map[string]interface{}
}

// Register computes the SHA-256 of filePath's bytes and either returns the
// existing Doc for that hash (enriched with any newly supplied metadata),
// or mints a fresh docId, copies the file in, and persists a new record.
// Uniqueness is keyed on content hash, never on filename.
func (r *Registry) Register(filePath string, opts RegisterOptions) (Doc, error) {
	sum, size, err := hashFile(filePath)
	if err != nil {
		return Doc{}, err
	}

	idxPath := r.layout.SourcesIndexPath()
	var idx index
	idx = defaultIndex()
	if err := atomicfile.ReadJSON(idxPath, &idx); err != nil {
		return Doc{}, err
	}
	if idx.Docs == nil {
		idx.Docs = []map[string]interface{}{}
	}

	for i, raw := range idx.Docs {
		if asString(raw["sha256"]) != sum {
			continue
		}
		changed := false
		if opts.SourceType != "" && asString(raw["sourceType"]) == "" {
			raw["sourceType"] = opts.SourceType
			changed = true
		}
		for k, v := range opts.ExtraMeta {
			if _, exists := raw[k]; !exists {
				raw[k] = v
				changed = true
			}
		}
		if changed {
			idx.Docs[i] = raw
			docID := asString(raw["docId"])
			docDir := filepath.Join(r.layout.SourcesDir(), docID)
			if _, statErr := os.Stat(docDir); statErr == nil {
				if err := atomicfile.WriteJSON(filepath.Join(docDir, "meta.json"), raw); err != nil {
					return Doc{}, err
				}
			}
			if err := atomicfile.WriteJSON(idxPath, idx); err != nil {
				return Doc{}, err
			}
		}
		r.logger.Debug().Str("doc_id", asString(raw["docId"])).Msg("source register: hash already known")
		return docFromMap(raw), nil
	}

	docID := idgen.NewID(idgen.PrefixDocument)
	docDir := filepath.Join(r.layout.SourcesDir(), docID)
	if err := atomicfile.EnsureDir(docDir); err != nil {
		return Doc{}, err
	}

	var storedPath string
	if opts.CopyIntoStore {
		ext := strings.ToLower(filepath.Ext(filePath))
		storedName := "original"
		if ext != "" {
			storedName = "original" + ext
		}
		dst := filepath.Join(docDir, storedName)
		if err := copyFile(filePath, dst); err != nil {
			return Doc{}, err
		}
		rel, err := filepath.Rel(r.layout.SourcesDir(), dst)
		if err != nil {
			rel = dst
		}
		storedPath = rel
	}

	doc := map[string]interface{}{
		"docId":        docID,
		"originalPath": filePath,
		"sha256":       sum,
		"size":         size,
		"addedAt":      timeutil.NowISO(),
	}
	if storedPath != "" {
		doc["storedPath"] = storedPath
	}
	if opts.SourceType != "" {
		doc["sourceType"] = opts.SourceType
	}
	for k, v := range opts.ExtraMeta {
		if _, exists := doc[k]; !exists {
			doc[k] = v
		}
	}

	if err := atomicfile.WriteJSON(filepath.Join(docDir, "meta.json"), doc); err != nil {
		return Doc{}, err
	}

	idx.Docs = append(idx.Docs, doc)
	if err := atomicfile.WriteJSON(idxPath, idx); err != nil {
		return Doc{}, err
	}

	r.logger.Info().Str("doc_id", docID).Str("sha256", sum).Msg("source registered")
	return docFromMap(doc), nil
}

// List returns every registered source document.
func (r *Registry) List() ([]Doc, error) {
	var idx index
	idx = defaultIndex()
	if err := atomicfile.ReadJSON(r.layout.SourcesIndexPath(), &idx); err != nil {
		return nil, err
	}
	out := make([]Doc, 0, len(idx.Docs))
	for _, raw := range idx.Docs {
		out = append(out, docFromMap(raw))
	}
	return out, nil
}

// Get looks up a single source document by docId.
func (r *Registry) Get(docID string) (Doc, bool, error) {
	docs, err := r.List()
	if err != nil {
		return Doc{}, false, err
	}
	for _, d := range docs {
		if d.DocID == docID {
			return d, true, nil
		}
	}
	return Doc{}, false, nil
}

func docFromMap(raw map[string]interface{}) Doc {
	d := Doc{
		DocID:        asString(raw["docId"]),
		OriginalPath: asString(raw["originalPath"]),
		StoredPath:   asString(raw["storedPath"]),
		SHA256:       asString(raw["sha256"]),
		AddedAt:      asString(raw["addedAt"]),
		SourceType:   asString(raw["sourceType"]),
	}
	switch v := raw["size"].(type) {
	case float64:
		d.Size = int64(v)
	case int64:
		d.Size = v
	case int:
		d.Size = int64(v)
	}
	return d
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func hashFile(path string) (sum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open source file %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat source file %s: %w", path, err)
	}
	digest, err := idgen.SHA256Reader(f)
	if err != nil {
		return "", 0, err
	}
	return digest, info.Size(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}
