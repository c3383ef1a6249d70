package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GetString(t *testing.T) {
	manager := NewConfigManager()

	// Set a test environment variable
	os.Setenv("TEST_KEY", "test_value")
	defer os.Unsetenv("TEST_KEY")

	value, err := manager.GetString("TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "test_value", value)
}

func TestManager_GetString_Missing(t *testing.T) {
	manager := NewConfigManager()

	_, err := manager.GetString("NON_EXISTENT_KEY")
	assert.Error(t, err)
}

func TestManager_GetStringWithDefault(t *testing.T) {
	manager := NewConfigManager()

	// Test with existing key
	os.Setenv("TEST_KEY", "test_value")
	defer os.Unsetenv("TEST_KEY")

	value := manager.GetStringWithDefault("TEST_KEY", "default_value")
	assert.Equal(t, "test_value", value)

	// Test with missing key
	value = manager.GetStringWithDefault("NON_EXISTENT_KEY", "default_value")
	assert.Equal(t, "default_value", value)
}

func TestManager_RequireString(t *testing.T) {
	manager := NewConfigManager()

	// Test with existing key
	os.Setenv("TEST_KEY", "test_value")
	defer os.Unsetenv("TEST_KEY")

	value := manager.RequireString("TEST_KEY")
	assert.Equal(t, "test_value", value)
}

func TestManager_RequireString_Panics(t *testing.T) {
	manager := NewConfigManager()

	// Test with missing key should panic
	assert.Panics(t, func() {
		manager.RequireString("NON_EXISTENT_KEY")
	})
}

func TestManager_GetBoolWithDefault(t *testing.T) {
	manager := NewConfigManager()

	// Test with existing key (true)
	os.Setenv("TEST_BOOL_TRUE", "true")
	defer os.Unsetenv("TEST_BOOL_TRUE")
	value := manager.GetBoolWithDefault("TEST_BOOL_TRUE", false)
	assert.True(t, value)

	// Test with existing key (false)
	os.Setenv("TEST_BOOL_FALSE", "false")
	defer os.Unsetenv("TEST_BOOL_FALSE")
	value = manager.GetBoolWithDefault("TEST_BOOL_FALSE", true)
	assert.False(t, value)

	// Test with missing key
	value = manager.GetBoolWithDefault("NON_EXISTENT_BOOL_KEY", true)
	assert.True(t, value)

	// Test with invalid value
	os.Setenv("TEST_BOOL_INVALID", "not-a-bool")
	defer os.Unsetenv("TEST_BOOL_INVALID")
	value = manager.GetBoolWithDefault("TEST_BOOL_INVALID", true)
	assert.True(t, value)
}
func TestManager_GetDurationWithDefault(t *testing.T) {
	manager := NewConfigManager()

	t.Setenv("TEST_DURATION", "250ms")
	assert.Equal(t, 250*time.Millisecond, manager.GetDurationWithDefault("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "3000")
	assert.Equal(t, 3*time.Second, manager.GetDurationWithDefault("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Second, manager.GetDurationWithDefault("TEST_DURATION", time.Second))

	assert.Equal(t, time.Minute, manager.GetDurationWithDefault("NON_EXISTENT_DURATION", time.Minute))
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"DEVKIT_ENV", "DEVKIT_REMOTE_HOST", "DEVKIT_REMOTE_PORT", "DEVKIT_REMOTE_SECURE",
		"DEVKIT_REMOTE_RECONNECT_INTERVAL", "DEVKIT_REMOTE_MAX_RETRIES", "DEVKIT_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DEVKIT_DATA_DIR", t.TempDir())

	cfg := Load(NewConfigManager())

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "localhost", cfg.Remote.Host)
	assert.Equal(t, 8081, cfg.Remote.Port)
	assert.False(t, cfg.Remote.Secure)
	assert.Equal(t, 3*time.Second, cfg.Remote.ReconnectInterval)
	assert.Equal(t, 5, cfg.Remote.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.ProfilerInterval)
	assert.Equal(t, 10*time.Second, cfg.LeakInterval)
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEVKIT_ENV", "Production")
	t.Setenv("DEVKIT_DATA_DIR", dir)
	t.Setenv("DEVKIT_REMOTE_PORT", "9000")
	t.Setenv("DEVKIT_REMOTE_SECURE", "true")

	cfg := Load(NewConfigManager())

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 9000, cfg.Remote.Port)
	assert.True(t, cfg.Remote.Secure)
	assert.Equal(t, filepath.Join(dir, "settings.yaml"), cfg.SettingsPath())
	assert.Equal(t, filepath.Join(dir, "devkit.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join(dir, "reports"), cfg.ReportsDir())
	assert.Equal(t, filepath.Join(dir, "console_history"), cfg.HistoryPath())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEVKIT_DOTENV_PROBE=loaded\n"), 0o644))
	t.Setenv("DEVKIT_DOTENV_PROBE", "")
	os.Unsetenv("DEVKIT_DOTENV_PROBE")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("DEVKIT_DOTENV_PROBE"))
}
