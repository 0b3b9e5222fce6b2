// Package config resolves LedgerFlow's runtime configuration from flags,
// environment variables, and an optional config file, layering viper
// over pflag so flags take precedence over env vars, which take
// precedence over the config file, which takes precedence over defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved set of values LedgerFlow's command-line
// tools need to boot: where data lives, who may call the API, and how to
// log.
type Config struct {
	DataDir      string
	APIKey       string
	APIKeysJSON  string
	LogLevel     string
	LogJSON      bool
	LeaseSeconds int
}

const envPrefix = "LEDGERFLOW"

// defaultDataDir mirrors the Python original's default of a dotfolder
// under the user's home directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ledgerflow"
	}
	return filepath.Join(home, ".ledgerflow")
}

// Load resolves Config from (in increasing precedence) defaults, an
// optional YAML config file, environment variables, and flags already
// bound onto fs. fs may be nil, in which case only env vars and defaults
// apply.
func Load(fs *pflag.FlagSet, cfgFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data-dir", defaultDataDir())
	v.SetDefault("log-level", "info")
	v.SetDefault("log-json", false)
	v.SetDefault("lease-seconds", 300)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, err
		}
	}

	// LEDGERFLOW_API_KEY / LEDGERFLOW_API_KEYS are read directly by
	// pkg/auth.LoadFromEnv, which also understands the list/object JSON
	// forms; config only surfaces them for display/diagnostics.
	return Config{
		DataDir:      v.GetString("data-dir"),
		APIKey:       os.Getenv(envPrefix + "_API_KEY"),
		APIKeysJSON:  os.Getenv(envPrefix + "_API_KEYS"),
		LogLevel:     v.GetString("log-level"),
		LogJSON:      v.GetBool("log-json"),
		LeaseSeconds: v.GetInt("lease-seconds"),
	}, nil
}

// BindFlags registers the persistent flags config.Load expects to be
// able to bind on the root command.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", defaultDataDir(), "LedgerFlow data directory")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.Bool("log-json", false, "Output logs in JSON format")
	fs.Int("lease-seconds", 300, "Task claim lease duration in seconds")
}
