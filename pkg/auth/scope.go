package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/sriinnu/ledgerflow/pkg/metrics"
)

// RequiredScopes returns the scopes a request must hold, in the order
// they must all be satisfied. A nil/empty slice means the request needs
// no authorization at all (health checks, CORS preflight).
func RequiredScopes(method, path string) []string {
	method = strings.ToUpper(method)
	if !strings.HasPrefix(path, "/api/") {
		return nil
	}
	if path == "/api/health" || method == http.MethodOptions {
		return nil
	}

	base := "write"
	if method == http.MethodGet || method == http.MethodHead {
		base = "read"
	}
	scopes := []string{base}

	switch {
	case strings.HasPrefix(path, "/api/automation/"):
		scopes = append(scopes, "automation")
	case path == "/api/ops/metrics":
		scopes = append(scopes, "ops")
	case path == "/api/auth/keys", strings.HasPrefix(path, "/api/backup/"):
		scopes = append(scopes, "admin")
	}
	return scopes
}

// DenyReason is empty on success, or a short machine-readable reason.
type DenyReason string

const (
	DenyNone           DenyReason = ""
	DenyNoKey          DenyReason = "no_key_configured"
	DenyUnknownKey     DenyReason = "unknown_key"
	DenyDisabledKey    DenyReason = "key_disabled"
	DenyExpiredKey     DenyReason = "key_expired"
	DenyMissingScope   DenyReason = "missing_scope"
	DenyWorkspaceBlock DenyReason = "workspace_not_allowed"
)

// Decision is the outcome of authorizing one request.
type Decision struct {
	Allowed        bool
	RequiredScopes []string
	KeyID          string
	DenyReason     DenyReason
}

// Authorize checks token against store for a request needing the scopes
// implied by method+path, optionally constrained to workspaceID (from a
// request header; "" when the caller didn't scope the call to a
// workspace). now is injected for deterministic expiry testing.
func Authorize(store Store, token, method, path, workspaceID string, now time.Time) Decision {
	required := RequiredScopes(method, path)
	if len(required) == 0 {
		metrics.AuthRequestsTotal.WithLabelValues("unauthenticated_allowed").Inc()
		return Decision{Allowed: true}
	}

	if len(store) == 0 {
		metrics.AuthRequestsTotal.WithLabelValues("denied").Inc()
		return Decision{Allowed: false, RequiredScopes: required, DenyReason: DenyNoKey}
	}

	meta, ok := store[token]
	if !ok {
		metrics.AuthRequestsTotal.WithLabelValues("denied").Inc()
		return Decision{Allowed: false, RequiredScopes: required, DenyReason: DenyUnknownKey}
	}
	if !meta.Enabled {
		metrics.AuthRequestsTotal.WithLabelValues("denied").Inc()
		return Decision{Allowed: false, RequiredScopes: required, KeyID: meta.ID, DenyReason: DenyDisabledKey}
	}
	if meta.Expired(now) {
		metrics.AuthRequestsTotal.WithLabelValues("denied").Inc()
		return Decision{Allowed: false, RequiredScopes: required, KeyID: meta.ID, DenyReason: DenyExpiredKey}
	}
	for _, scope := range required {
		if !meta.HasScope(scope) {
			metrics.AuthRequestsTotal.WithLabelValues("denied").Inc()
			return Decision{Allowed: false, RequiredScopes: required, KeyID: meta.ID, DenyReason: DenyMissingScope}
		}
	}
	if workspaceID != "" && !meta.AllowsWorkspace(workspaceID) {
		metrics.AuthRequestsTotal.WithLabelValues("denied").Inc()
		return Decision{Allowed: false, RequiredScopes: required, KeyID: meta.ID, DenyReason: DenyWorkspaceBlock}
	}

	metrics.AuthRequestsTotal.WithLabelValues("allowed").Inc()
	return Decision{Allowed: true, RequiredScopes: required, KeyID: meta.ID}
}
