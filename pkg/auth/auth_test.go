package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequiredScopesHealthAndOptionsNeedNothing(t *testing.T) {
	assert.Empty(t, RequiredScopes(http.MethodGet, "/api/health"))
	assert.Empty(t, RequiredScopes(http.MethodOptions, "/api/transactions"))
	assert.Nil(t, RequiredScopes(http.MethodGet, "/other/path"))
}

func TestRequiredScopesReadVsWrite(t *testing.T) {
	assert.Equal(t, []string{"read"}, RequiredScopes(http.MethodGet, "/api/transactions"))
	assert.Equal(t, []string{"write"}, RequiredScopes(http.MethodPost, "/api/transactions"))
}

func TestRequiredScopesAddsDomainScopes(t *testing.T) {
	assert.Equal(t, []string{"write", "automation"}, RequiredScopes(http.MethodPost, "/api/automation/tasks"))
	assert.Equal(t, []string{"read", "ops"}, RequiredScopes(http.MethodGet, "/api/ops/metrics"))
	assert.Equal(t, []string{"write", "admin"}, RequiredScopes(http.MethodPost, "/api/auth/keys"))
	assert.Equal(t, []string{"write", "admin"}, RequiredScopes(http.MethodPost, "/api/backup/restore"))
}

func TestKeyMetaScopeImplication(t *testing.T) {
	admin := KeyMeta{Scopes: []string{"admin"}}
	assert.True(t, admin.HasScope("read"))
	assert.True(t, admin.HasScope("write"))
	assert.True(t, admin.HasScope("automation"))

	writer := KeyMeta{Scopes: []string{"write"}}
	assert.True(t, writer.HasScope("read"))
	assert.True(t, writer.HasScope("write"))
	assert.False(t, writer.HasScope("admin"))

	reader := KeyMeta{Scopes: []string{"read"}}
	assert.False(t, reader.HasScope("write"))
}

func TestAuthorizeDeniesUnknownKey(t *testing.T) {
	store := Store{"good-token": {ID: "k1", Enabled: true, Scopes: []string{"read", "write"}}}
	d := Authorize(store, "bad-token", http.MethodGet, "/api/transactions", "", time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyUnknownKey, d.DenyReason)
}

func TestAuthorizeDeniesExpiredKey(t *testing.T) {
	past := time.Now().Add(-1 * time.Hour)
	store := Store{"tok": {ID: "k1", Enabled: true, Scopes: []string{"admin"}, ExpiresAt: &past}}
	d := Authorize(store, "tok", http.MethodGet, "/api/transactions", "", time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyExpiredKey, d.DenyReason)
}

func TestAuthorizeEnforcesWorkspaceAllowList(t *testing.T) {
	store := Store{"tok": {ID: "k1", Enabled: true, Scopes: []string{"admin"}, Workspaces: []string{"ws-a"}}}
	denied := Authorize(store, "tok", http.MethodGet, "/api/transactions", "ws-b", time.Now())
	assert.False(t, denied.Allowed)
	assert.Equal(t, DenyWorkspaceBlock, denied.DenyReason)

	allowed := Authorize(store, "tok", http.MethodGet, "/api/transactions", "ws-a", time.Now())
	assert.True(t, allowed.Allowed)
}

func TestAuthorizeNoKeyConfiguredDeniesProtectedRoute(t *testing.T) {
	d := Authorize(Store{}, "", http.MethodGet, "/api/transactions", "", time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyNoKey, d.DenyReason)
}

func TestAuthorizeHealthAlwaysAllowedEvenWithoutKeys(t *testing.T) {
	d := Authorize(Store{}, "", http.MethodGet, "/api/health", "", time.Now())
	assert.True(t, d.Allowed)
}

func TestLoadFromEnvLegacyKeyGetsAdminScopes(t *testing.T) {
	t.Setenv("LEDGERFLOW_API_KEYS", "")
	t.Setenv("LEDGERFLOW_API_KEY", "legacy-token")
	store := LoadFromEnv()
	meta, ok := store["legacy-token"]
	assert.True(t, ok)
	assert.Equal(t, KindLegacy, meta.Kind)
	assert.True(t, meta.HasScope("admin"))
}

func TestLoadFromEnvScopedKeysList(t *testing.T) {
	t.Setenv("LEDGERFLOW_API_KEY", "")
	t.Setenv("LEDGERFLOW_API_KEYS", `[{"id":"reader","key":"r-token","scopes":["read"]}]`)
	store := LoadFromEnv()
	meta, ok := store["r-token"]
	assert.True(t, ok)
	assert.Equal(t, "reader", meta.ID)
	assert.True(t, meta.HasScope("read"))
	assert.False(t, meta.HasScope("write"))
}
