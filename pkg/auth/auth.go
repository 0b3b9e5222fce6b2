// Package auth implements the environment-driven scoped API key store and
// the method+path -> required-scopes mapping that guards the HTTP API.
package auth

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes a legacy full-access key from an explicitly scoped
// one.
type Kind string

const (
	KindLegacy Kind = "legacy"
	KindScoped Kind = "scoped"
)

// KeyMeta describes one configured API key.
type KeyMeta struct {
	ID         string
	Kind       Kind
	Role       string
	Scopes     []string
	Enabled    bool
	ExpiresAt  *time.Time
	Workspaces []string
}

func (k KeyMeta) scopeSet() map[string]bool {
	set := make(map[string]bool, len(k.Scopes))
	for _, s := range k.Scopes {
		set[s] = true
	}
	return set
}

// HasScope reports whether k satisfies required, honoring admin -> read+
// write and write -> read implication.
func (k KeyMeta) HasScope(required string) bool {
	scopes := k.scopeSet()
	if scopes["admin"] {
		return true
	}
	if required == "read" && scopes["write"] {
		return true
	}
	return scopes[required]
}

// Expired reports whether k's expiry has passed as of now.
func (k KeyMeta) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// AllowsWorkspace reports whether k may act against workspaceID: an empty
// allow-list passes every workspace.
func (k KeyMeta) AllowsWorkspace(workspaceID string) bool {
	if len(k.Workspaces) == 0 {
		return true
	}
	for _, w := range k.Workspaces {
		if w == workspaceID {
			return true
		}
	}
	return false
}

// Store maps bearer token -> KeyMeta.
type Store map[string]KeyMeta

// Mode reports the authentication posture the store implies.
func (s Store) Mode() string {
	if len(s) == 0 {
		return "local_only_no_key"
	}
	for _, meta := range s {
		if meta.Kind == KindScoped {
			return "api_key_scoped"
		}
	}
	return "api_key"
}

var defaultRWScopes = []string{"read", "write"}

func parseScopes(raw interface{}) []string {
	set := map[string]bool{}
	switch v := raw.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				set[p] = true
			}
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if p := strings.TrimSpace(s); p != "" {
					set[p] = true
				}
			}
		}
	}
	if set["admin"] {
		set["read"] = true
		set["write"] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type scopedKeyRow struct {
	ID         string      `json:"id"`
	Key        string      `json:"key"`
	Scopes     interface{} `json:"scopes"`
	Role       string      `json:"role"`
	Enabled    *bool       `json:"enabled"`
	ExpiresAt  string      `json:"expiresAt"`
	Workspaces []string    `json:"workspaces"`
}

func (r scopedKeyRow) toMeta(fallbackID string) KeyMeta {
	scopes := parseScopes(r.Scopes)
	if len(scopes) == 0 {
		scopes = append([]string{}, defaultRWScopes...)
	}
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = fallbackID
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	meta := KeyMeta{ID: id, Kind: KindScoped, Role: r.Role, Scopes: scopes, Enabled: enabled, Workspaces: r.Workspaces}
	if r.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, r.ExpiresAt); err == nil {
			meta.ExpiresAt = &t
		}
	}
	return meta
}

// LoadFromEnv builds a Store from LEDGERFLOW_API_KEYS (list or object of
// scoped keys) and LEDGERFLOW_API_KEY (a single legacy admin+read+write
// key, only used when its token is not already present in the scoped set).
func LoadFromEnv() Store {
	store := Store{}

	if raw := strings.TrimSpace(os.Getenv("LEDGERFLOW_API_KEYS")); raw != "" {
		var asList []scopedKeyRow
		if err := json.Unmarshal([]byte(raw), &asList); err == nil {
			for i, row := range asList {
				token := strings.TrimSpace(row.Key)
				if token == "" {
					continue
				}
				store[token] = row.toMeta(defaultKeyID(i + 1))
			}
		} else {
			var asObject map[string]scopedKeyRow
			if err := json.Unmarshal([]byte(raw), &asObject); err == nil {
				i := 0
				for keyID, row := range asObject {
					i++
					token := strings.TrimSpace(row.Key)
					if token == "" {
						continue
					}
					if strings.TrimSpace(row.ID) == "" {
						row.ID = keyID
					}
					store[token] = row.toMeta(defaultKeyID(i))
				}
			}
		}
	}

	if legacy := strings.TrimSpace(os.Getenv("LEDGERFLOW_API_KEY")); legacy != "" {
		if _, exists := store[legacy]; !exists {
			store[legacy] = KeyMeta{
				ID: "legacy", Kind: KindLegacy,
				Scopes:  []string{"admin", "read", "write"},
				Enabled: true,
			}
		}
	}

	return store
}

func defaultKeyID(i int) string {
	return "key" + strconv.Itoa(i)
}
