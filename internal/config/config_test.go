package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[sync]
root = "/home/alice/Distribox"
metadata_dir = ".Distribox"
debounce_interval = "250ms"

[peers]
listen_addr = ":9000"
known_peers = ["10.0.0.2:9000", "10.0.0.3:9000"]
transfer_workers = 8

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "/home/alice/Distribox", cfg.Sync.Root)
	assert.Equal(t, "250ms", cfg.Sync.DebounceInterval)
	assert.Equal(t, []string{"10.0.0.2:9000", "10.0.0.3:9000"}, cfg.Peers.KnownPeers)
	assert.Equal(t, 8, cfg.Peers.TransferWorkers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DefaultsFillUnsetFields(t *testing.T) {
	path := writeTestConfig(t, `
[sync]
root = "/home/alice/Distribox"
`)

	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, defaultMetadataDirName, cfg.Sync.MetadataDirName)
	assert.Equal(t, defaultDebounceInterval, cfg.Sync.DebounceInterval)
	assert.Equal(t, defaultListenAddr, cfg.Peers.ListenAddr)
	assert.Equal(t, defaultLogLevel, cfg.Logging.Level)
}

func TestLoad_UnknownKeyRejectedWithSuggestion(t *testing.T) {
	path := writeTestConfig(t, `
[sync]
root = "/home/alice/Distribox"
debunce_interval = "1s"
`)

	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.debunce_interval")
	assert.Contains(t, err.Error(), "sync.debounce_interval")
}

func TestLoad_MissingRootFailsValidation(t *testing.T) {
	path := writeTestConfig(t, `
[logging]
level = "debug"
`)

	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRootRequired)
}

func TestLoadOrDefault_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "does-not-exist.toml"), testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate_RejectsBadDurationsAndWorkerCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.Root = "/tmp/root"
	cfg.Sync.DebounceInterval = "not-a-duration"
	cfg.Peers.TransferWorkers = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debounce_interval")
	assert.Contains(t, err.Error(), "transfer_workers")
}
