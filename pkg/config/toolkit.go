package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Remote holds the remote debugger connection defaults.
type Remote struct {
	Host              string
	Port              int
	Secure            bool
	ReconnectInterval time.Duration
	MaxRetries        int
}

// Log holds the process logger settings.
type Log struct {
	Level  string
	Format string
	File   string
}

// Toolkit is the typed configuration for one toolkit instance.
type Toolkit struct {
	Env              string
	DataDir          string
	Log              Log
	Remote           Remote
	ProfilerInterval time.Duration
	LeakInterval     time.Duration
	AuthToken        string
}

// IsDevelopment reports whether the toolkit runs in development mode.
func (t Toolkit) IsDevelopment() bool {
	return t.Env != EnvProduction
}

// SettingsPath is the YAML file holding persisted debug settings.
func (t Toolkit) SettingsPath() string {
	return filepath.Join(t.DataDir, "settings.yaml")
}

// DatabasePath is the SQLite file for the report index and error store.
func (t Toolkit) DatabasePath() string {
	return filepath.Join(t.DataDir, "devkit.db")
}

// HistoryPath is the console line history file.
func (t Toolkit) HistoryPath() string {
	return filepath.Join(t.DataDir, "console_history")
}

// ReportsDir is where saved reports are written.
func (t Toolkit) ReportsDir() string {
	return filepath.Join(t.DataDir, "reports")
}

// Load reads the toolkit configuration from m.
func Load(m Manager) Toolkit {
	env := strings.ToLower(m.GetStringWithDefault("DEVKIT_ENV", EnvDevelopment))
	if env != EnvProduction {
		env = EnvDevelopment
	}

	return Toolkit{
		Env:     env,
		DataDir: resolveDataDir(m.GetStringWithDefault("DEVKIT_DATA_DIR", "~/.devkit")),
		Log: Log{
			Level:  m.GetStringWithDefault("DEVKIT_LOG_LEVEL", "info"),
			Format: m.GetStringWithDefault("DEVKIT_LOG_FORMAT", "text"),
			File:   m.GetStringWithDefault("DEVKIT_LOG_FILE", ""),
		},
		Remote: Remote{
			Host:              m.GetStringWithDefault("DEVKIT_REMOTE_HOST", "localhost"),
			Port:              m.GetIntWithDefault("DEVKIT_REMOTE_PORT", 8081),
			Secure:            m.GetBoolWithDefault("DEVKIT_REMOTE_SECURE", false),
			ReconnectInterval: m.GetDurationWithDefault("DEVKIT_REMOTE_RECONNECT_INTERVAL", 3*time.Second),
			MaxRetries:        m.GetIntWithDefault("DEVKIT_REMOTE_MAX_RETRIES", 5),
		},
		ProfilerInterval: m.GetDurationWithDefault("DEVKIT_PROFILER_INTERVAL", time.Second),
		LeakInterval:     m.GetDurationWithDefault("DEVKIT_LEAK_INTERVAL", 10*time.Second),
		AuthToken:        m.GetStringWithDefault("DEVKIT_AUTH_TOKEN", ""),
	}
}

func resolveDataDir(dir string) string {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return filepath.Join(".", ".devkit")
	}
	return expanded
}
