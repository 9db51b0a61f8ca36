package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
components:
  - name: widget
    version: "v1.0.0"
    owner: acme
    repo: widget
    path: "Plugins/widget.dll"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.github.com", cfg.Source.APIBaseURL)
	assert.Equal(t, "https://raw.githubusercontent.com", cfg.Source.RawBaseURL)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)

	s, err := cfg.Updates.Settings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("PLUGWATCH_TEST_TOKEN", "secret-token")
	path := writeConfig(t, `
source:
  token: "${PLUGWATCH_TEST_TOKEN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Source.Token)
}

func TestLoadRejectsDuplicateComponentNames(t *testing.T) {
	path := writeConfig(t, `
components:
  - name: widget
    owner: acme
    repo: widget
    path: "Plugins/widget.dll"
  - name: widget
    owner: acme
    repo: widget2
    path: "Plugins/widget2.dll"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate component name")
}

func TestSettingsMergeOverDefaults(t *testing.T) {
	disabled := false
	u := UpdatesConfig{
		Enabled:       &disabled,
		CheckInterval: "15m",
	}

	s, err := u.Settings()
	require.NoError(t, err)
	assert.False(t, s.Enabled)
	assert.Equal(t, 15*time.Minute, s.CheckInterval)
	// Unspecified fields keep their defaults.
	assert.Equal(t, DefaultSettings().InitialDelay, s.InitialDelay)
	assert.Equal(t, DefaultSettings().StaggerDelay, s.StaggerDelay)
}

func TestSettingsRejectsInvalidDuration(t *testing.T) {
	_, err := UpdatesConfig{CheckInterval: "soon"}.Settings()
	require.Error(t, err)

	_, err = UpdatesConfig{StaggerDelay: "-5s"}.Settings()
	require.Error(t, err)
}

func TestNormalizeLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, NormalizeLogLevel("DEBUG"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("bogus"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel(""))
}

func TestInitRefusesToOverwrite(t *testing.T) {
	path := writeConfig(t, "updates: {}\n")

	err := Init(path, false)
	require.Error(t, err)

	require.NoError(t, Init(path, true))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Components)
}
