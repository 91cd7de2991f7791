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
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml or .env is found
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "./data/commissions.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 60, cfg.Renewal.LookaheadDays)
	assert.Equal(t, 0, cfg.Renewal.TermMonths, "term length has no default")
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 7, cfg.IDs.Length)
	assert.Equal(t, 3, cfg.Reconcile.MaxRetries)

	ec := cfg.EngineConfig()
	assert.True(t, ec.Term.IsZero())
	assert.Equal(t, 60, ec.LookaheadDays)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: memory
log:
  level: debug
  format: console
server:
  port: 9090
renewal:
  lookahead_days: 45
  term_months: 6
scheduler:
  enabled: true
  interval: 1h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45, cfg.Renewal.LookaheadDays)
	assert.Equal(t, 6, cfg.EngineConfig().Term.Months)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("COMMISSION_SERVER_PORT", "7070")
	t.Setenv("COMMISSION_RENEWAL_TERM_MONTHS", "12")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Renewal.TermMonths)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("COMMISSION_LOG_LEVEL", "")
	os.Unsetenv("COMMISSION_LOG_LEVEL")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COMMISSION_LOG_LEVEL=warn\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	chdirTemp(t)

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Store:   StoreConfig{Driver: "sqlite"},
			Renewal: RenewalConfig{LookaheadDays: 60},
			IDs:     IDConfig{Length: 7, MinLetters: 2, MinDigits: 2},
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Store.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Store.Driver = "postgres"
	assert.Error(t, cfg.Validate(), "postgres needs a url")

	cfg = base()
	cfg.Renewal.LookaheadDays = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.IDs.Length = 3
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Scheduler.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
