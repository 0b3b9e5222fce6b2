package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sriinnu/ledgerflow/pkg/layout"
)

func TestAppendAndListFiltersByWorkspace(t *testing.T) {
	l := layout.For(t.TempDir())
	a := New(l)
	a.Append(Record{Method: "POST", Path: "/api/transactions", Status: 201, WorkspaceID: "ws-a"})
	a.Append(Record{Method: "DELETE", Path: "/api/transactions/tx1", Status: 200, WorkspaceID: "ws-b"})

	all, err := a.List("", -1)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := a.List("ws-a", -1)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "/api/transactions", scoped[0].Path)
}

func TestIsMutating(t *testing.T) {
	assert.True(t, IsMutating("POST"))
	assert.True(t, IsMutating("DELETE"))
	assert.False(t, IsMutating("GET"))
	assert.False(t, IsMutating("HEAD"))
}
