package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithoutFlagsOrEnv(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.Equal(t, 300, cfg.LeaseSeconds)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadEnvVarsOverrideDefaults(t *testing.T) {
	t.Setenv("LEDGERFLOW_DATA_DIR", "/tmp/ledgerflow-data")
	t.Setenv("LEDGERFLOW_LOG_LEVEL", "debug")
	t.Setenv("LEDGERFLOW_API_KEY", "tok-123")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ledgerflow-data", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "tok-123", cfg.APIKey)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("LEDGERFLOW_DATA_DIR", "/tmp/from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Set("data-dir", "/tmp/from-flag"))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-flag", cfg.DataDir)
}
