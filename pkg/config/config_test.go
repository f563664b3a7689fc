package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiredFieldMissing(t *testing.T) {
	t.Setenv("DATA_DIR", "")
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required config")
	assert.Contains(t, err.Error(), "DATA_DIR")
	assert.Contains(t, err.Error(), "data_dir")
}

func TestNew_WithEnvVar(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/lectern")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/lectern", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/lectern", "lectern.sqlite"), cfg.DatabaseFilePath)
	assert.Equal(t, filepath.Join("/tmp/lectern", "cache"), cfg.CacheDir)
	assert.Equal(t, filepath.Join("/tmp/lectern", "settings.json"), cfg.SettingsFilePath)
}

func TestNew_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
data_dir: /data
database_file_path: /data/books.db
server_port: 8080
database_debug: true
load_timeout: 45s
await_layout_settled: true
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("DATA_DIR", "")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/books.db", cfg.DatabaseFilePath)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.True(t, cfg.DatabaseDebug)
	assert.Equal(t, 45*time.Second, cfg.LoadTimeout)
	assert.True(t, cfg.AwaitLayoutSettled)
}

func TestNew_EnvVarOverridesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
data_dir: /data/from-file
server_port: 8080
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("DATA_DIR", "/data/from-env")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := New()
	require.NoError(t, err)
	// Env vars should override config file
	assert.Equal(t, "/data/from-env", cfg.DataDir)
	assert.Equal(t, 9090, cfg.ServerPort)
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/lectern")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.DatabaseConnectRetryCount)
	assert.Equal(t, 2*time.Second, cfg.DatabaseConnectRetryDelay)
	assert.False(t, cfg.DatabaseDebug)
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 3700, cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.LoadTimeout)
	assert.Equal(t, 5*time.Second, cfg.SaveThrottle)
	assert.Equal(t, 5*time.Second, cfg.MinSessionDuration)
	assert.Equal(t, 300*time.Millisecond, cfg.RestoreSeekDelay)
	assert.False(t, cfg.AwaitLayoutSettled)
	assert.Equal(t, int64(2*1024*1024), cfg.TextChunkThreshold)
	assert.Equal(t, int64(30*1024), cfg.TextChunkSize)
}

func TestNew_DurationFromEnv(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/lectern")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("SAVE_THROTTLE", "10s")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.SaveThrottle)
}

func TestNew_InvalidLoadTimeout(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/lectern")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("LOAD_TIMEOUT", "10ms")

	cfg, err := New()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load_timeout")
}

func TestNew_UnrelatedEnvIgnored(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/lectern")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("SOME_OTHER_SETTING", "not-an-int")

	_, err := New()
	require.NoError(t, err)
}
