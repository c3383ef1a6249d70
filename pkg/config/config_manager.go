package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Manager provides configuration management functionality
type Manager interface {
	GetString(key string) (string, error)
	GetStringWithDefault(key, defaultValue string) string
	RequireString(key string) string
	GetInt(key string) (int, error)
	GetIntWithDefault(key string, defaultValue int) int
	GetBoolWithDefault(key string, defaultValue bool) bool
	GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration
}

// DefaultManager implements the Manager interface
type DefaultManager struct {
}

// NewConfigManager creates a new default config manager
func NewConfigManager() Manager {
	return &DefaultManager{}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Existing variables win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// GetString gets a configuration value by key, returns error if not found
func (m *DefaultManager) GetString(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("configuration key %s not found", key)
	}
	return value, nil
}

// GetStringWithDefault gets a configuration value by key, returns default if not found
func (m *DefaultManager) GetStringWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// RequireString gets a configuration value by key, panics if not found
func (m *DefaultManager) RequireString(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required configuration key %s not found", key))
	}
	return value
}

// GetInt gets an integer configuration value by key, returns error if not found or invalid
func (m *DefaultManager) GetInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("configuration key %s not found", key)
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("configuration key %s has invalid integer value: %s", key, value)
	}
	return intValue, nil
}

// GetIntWithDefault gets an integer configuration value by key, returns default if not found or invalid
func (m *DefaultManager) GetIntWithDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// GetBoolWithDefault gets a boolean configuration value by key, returns default if not found or invalid
func (m *DefaultManager) GetBoolWithDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// GetDurationWithDefault accepts Go duration strings ("3s") or a bare
// integer number of milliseconds.
func (m *DefaultManager) GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
