package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no stray config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gviz", cfg.Roster.Format)
	assert.Equal(t, 1, cfg.Roster.HeaderRows)
	assert.Equal(t, ColumnsConfig{ID: 0, Name: 1, Address: 2, Status: 3, Coordinates: 4}, cfg.Roster.Columns)
	assert.Equal(t, "xyz", cfg.Geocode.Provider)
	assert.InDelta(t, 2.0, cfg.Geocode.RateLimit, 0.001)
	assert.Equal(t, 5, cfg.Geocode.CircuitThreshold)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 10, cfg.Sync.CooldownEvery)
	assert.Equal(t, 100*time.Millisecond, cfg.Sync.Cooldown)
	assert.Equal(t, 1, cfg.Fetch.MaxRetries)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Map.BaseEnabled)
	assert.InDelta(t, 30.6509, cfg.Map.BaseLat, 0.001)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.History.DSN)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
roster:
  sheet_id: abc123
  format: csv
  columns:
    coordinates: -1
  status_labels:
    - label: Out
      status: EN_ROUTE
sync:
  interval: 1m
  cooldown: 250ms
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.Roster.SheetID)
	assert.Equal(t, "csv", cfg.Roster.Format)
	assert.Equal(t, -1, cfg.Roster.Columns.Coordinates)
	assert.Equal(t, 2, cfg.Roster.Columns.Address)
	assert.Equal(t, []StatusLabel{{Label: "Out", Status: "EN_ROUTE"}}, cfg.Roster.StatusLabels)
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.Cooldown)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Sync.CooldownEvery)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
geocode:
  provider: google
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("ROSTERMAP_GEOCODE_PROVIDER", "xyz")
	t.Setenv("ROSTERMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "xyz", cfg.Geocode.Provider)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ROSTERMAP_SERVER_PORT", "3000")
	t.Setenv("ROSTERMAP_SYNC_INTERVAL", "5s")
	t.Setenv("ROSTERMAP_GEOCODE_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "secret", cfg.Geocode.APIKey)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("roster: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Roster.SheetID = "sheet"
	cfg.Roster.Format = "gviz"
	cfg.Geocode.Provider = "xyz"
	cfg.Geocode.RateLimit = 2
	cfg.Sync.Interval = 30 * time.Second
	cfg.Sync.CooldownEvery = 10
	cfg.Sync.Cooldown = 100 * time.Millisecond
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	cfg.Sync.Interval = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.Contains(t, err.Error(), "sync.interval must be > 0")
}

func TestValidateSync_MissingRoster(t *testing.T) {
	cfg := validDefaults()
	cfg.Roster.SheetID = ""

	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roster.url or roster.sheet_id is required")

	cfg.Roster.URL = "https://example.com/roster.csv"
	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidateSync_BadFormat(t *testing.T) {
	cfg := validDefaults()
	cfg.Roster.Format = "pdf"

	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roster.format")
}

func TestValidateGeocode(t *testing.T) {
	cfg := validDefaults()
	cfg.Roster.SheetID = ""
	assert.NoError(t, cfg.Validate("geocode"), "roster is not needed to geocode")

	cfg.Geocode.Provider = "google"
	err := cfg.Validate("geocode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.api_key is required")

	cfg.Geocode.Provider = "bing"
	err = cfg.Validate("geocode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.provider")

	cfg.Geocode.Provider = "xyz"
	cfg.Geocode.RateLimit = 0
	assert.Error(t, cfg.Validate("geocode"))
}

func TestValidateHistory(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.dsn is required")

	cfg.History.DSN = "history.db"
	assert.NoError(t, cfg.Validate("history"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
