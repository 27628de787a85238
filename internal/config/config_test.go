package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:9005", cfg.Address())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 5*time.Second, cfg.StartupGrace())
	assert.Equal(t, time.Duration(0), cfg.ReadTimeout())
	assert.Equal(t, 1024, cfg.BufferSize)
	assert.Nil(t, cfg.Features.Disabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Port, cfg.Port)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 2048,
		"server": {"exec": ["python", "-m", "server"]},
		"features": {"document_hover": false}
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2048, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, []string{"python", "-m", "server"}, cfg.Server.Exec)
	assert.Equal(t, 5000, cfg.Server.StartupGraceMillis)
	assert.True(t, cfg.Features.Completion)
	assert.Equal(t, map[string]bool{"document_hover": false}, cfg.Features.Disabled())
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Port = 9100
	cfg.Formatter.Exec = []string{"ruff", "format", "-"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvHost:     "127.0.0.1",
		EnvPort:     "9100",
		EnvLogLevel: "debug",
		EnvLogPath:  "/tmp/pytools.log",
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "127.0.0.1:9100", cfg.Address())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/pytools.log", cfg.LogPath)

	env[EnvPort] = "not-a-port"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 70000
	cfg.RequestTimeoutSeconds = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 70000")
	assert.Contains(t, err.Error(), "request_timeout_seconds")
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/pytools.json")
	assert.Equal(t, "/etc/pytools.json", GetConfigPath())
}
