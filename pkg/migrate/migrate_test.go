package migrate

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sriinnu/ledgerflow/pkg/layout"
)

func TestStatusBeforeMigration(t *testing.T) {
	l := layout.For(t.TempDir())
	c := New(l)
	st, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentVersion)
	assert.Equal(t, LatestVersion, st.LatestVersion)
	assert.Equal(t, LatestVersion, st.Pending)
}

func TestMigrateToLatestAppliesStepsInOrder(t *testing.T) {
	l := layout.For(t.TempDir())
	c := New(l)

	res, err := c.MigrateToLatest(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FromVersion)
	assert.Equal(t, LatestVersion, res.ToVersion)
	assert.Equal(t, []int{1, 2}, res.Applied)

	_, err = os.Stat(l.CategoriesPath())
	assert.NoError(t, err, "step 1 must seed default categories")
	_, err = os.Stat(l.IndexDBPath())
	assert.NoError(t, err, "step 2 must create the index db")

	st, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, LatestVersion, st.CurrentVersion)
	assert.Equal(t, 0, st.Pending)
}

func TestMigrateToLatestIsIdempotent(t *testing.T) {
	l := layout.For(t.TempDir())
	c := New(l)
	_, err := c.MigrateToLatest(nil)
	require.NoError(t, err)

	res, err := c.MigrateToLatest(nil)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion, res.FromVersion)
	assert.Empty(t, res.Applied)
}

func TestMigrateToTargetVersion(t *testing.T) {
	l := layout.For(t.TempDir())
	c := New(l)
	target := 1
	res, err := c.MigrateToLatest(&target)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ToVersion)
	assert.Equal(t, []int{1}, res.Applied)
}
