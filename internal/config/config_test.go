package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, "permit-cli/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "downloads", cfg.Browser.DownloadDir)
	assert.Equal(t, "logs", cfg.Report.LogDir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PERMIT_STORE_DRIVER", "sqlite")
	t.Setenv("PERMIT_LOG_LEVEL", "debug")
	t.Setenv("PERMIT_FETCH_TIMEOUT_SECS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Fetch.TimeoutSecs)
}

func TestLoad_EnvOnlyKeys(t *testing.T) {
	// Keys with no non-empty default must still be reachable by env var.
	t.Setenv("PERMIT_STORE_DATABASE_URL", "postgres://permits@db/permits")
	t.Setenv("PERMIT_SOURCES_FILE", "/etc/permit/sources.yaml")
	t.Setenv("PERMIT_SOURCES_SOCRATA_TOKEN", "tok-123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://permits@db/permits", cfg.Store.DatabaseURL)
	assert.Equal(t, "/etc/permit/sources.yaml", cfg.Sources.File)
	assert.Equal(t, "tok-123", cfg.Sources.SocrataToken)
}

func TestBrowserConfig_DownloadWaitDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, BrowserConfig{}.DownloadWaitDuration())
	assert.Equal(t, 90*time.Second, BrowserConfig{DownloadWaitSecs: -1}.DownloadWaitDuration())
	assert.Equal(t, 15*time.Second, BrowserConfig{DownloadWaitSecs: 15}.DownloadWaitDuration())
}

func TestInitLogger_RejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestInitLogger_ValidLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, InitLogger(LogConfig{Level: level, Format: "json"}), level)
	}
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "console"}))
}
