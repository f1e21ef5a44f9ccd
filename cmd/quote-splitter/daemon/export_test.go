package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbtplatform/quote-splitter/internal/config"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type (
	AppConfig = appConfig
)

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}

// NewForTests creates a new App instance for testing purposes.
func NewForTests(t *testing.T, conf *AppConfig, args ...string) *App {
	t.Helper()

	if conf == nil {
		conf = &AppConfig{}
	}

	if conf.SourceDir == "" {
		conf.SourceDir = filepath.Join(t.TempDir(), "quotes")
	}
	if conf.SplitConfig == "" {
		conf.SplitConfig = GenerateTestSplitConfig(t, &config.Conf{
			KeyField:       "QuoteId",
			ExtractObjects: []string{"Vehicle"},
		})
	}

	p := GenerateTestConfig(t, conf)
	argsWithConf := []string{"--config", p}
	argsWithConf = append(argsWithConf, args...)

	a, err := New()
	require.NoError(t, err, "Setup: failed to create app")
	a.cmd.SetArgs(argsWithConf)
	return a
}

// GenerateTestSplitConfig generates a temporary split rules file for testing.
func GenerateTestSplitConfig(t *testing.T, rules *config.Conf) string {
	t.Helper()

	d, err := json.Marshal(rules)
	require.NoError(t, err, "Setup: failed to marshal split rules for tests")
	rulesPath := filepath.Join(t.TempDir(), "split-rules-test.json")
	require.NoError(t, os.WriteFile(rulesPath, d, 0600), "Setup: failed to write split rules for tests")

	return rulesPath
}

// GenerateTestConfig generates a temporary config file for testing.
func GenerateTestConfig(t *testing.T, origConf *AppConfig) string {
	t.Helper()

	var conf appConfig

	if origConf != nil {
		conf = *origConf
	}

	if conf.Verbosity == 0 {
		conf.Verbosity = 2
	}

	d, err := yaml.Marshal(conf)
	require.NoError(t, err, "Setup: failed to marshal config for tests")

	confPath := filepath.Join(t.TempDir(), "testconfig.yaml")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: failed to write config for tests")

	return confPath
}

// SetArgs set some arguments on root command for tests.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// SetSilenceUsage set the SilenceUsage flag on root command for tests.
func (a *App) SetSilenceUsage(silence bool) {
	a.cmd.SilenceUsage = silence
}
