package fileops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manager provides file operation functionality
type Manager interface {
	EnsureDir(path string) error
	WriteFile(path string, content []byte) error
	ReadFile(path string) ([]byte, error)
	FileExists(path string) bool
	WriteObjectAsYAML(path string, object interface{}) error
	WriteObjectAsJSON(path string, object interface{}) (int64, error)
}

// DefaultManager implements the Manager interface
type DefaultManager struct {
}

// NewFileOpsManager creates a new default file manager
func NewFileOpsManager() Manager {
	return &DefaultManager{}
}

// EnsureDir creates a directory if it doesn't exist
func (m *DefaultManager) EnsureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	return nil
}

// WriteFile writes content through a temporary file in the same directory
// and renames it into place, so readers and watchers never see a partial
// file.
func (m *DefaultManager) WriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := m.EnsureDir(dir); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error replacing file: %w", err)
	}
	return nil
}

// ReadFile reads content from a file
func (m *DefaultManager) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// FileExists checks if a file exists
func (m *DefaultManager) FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// WriteObjectAsYAML marshals an object to YAML and writes it to a file
func (m *DefaultManager) WriteObjectAsYAML(path string, object interface{}) error {
	data, err := yaml.Marshal(object)
	if err != nil {
		return fmt.Errorf("error marshalling to YAML: %w", err)
	}

	return m.WriteFile(path, data)
}

// WriteObjectAsJSON writes an indented JSON document and returns its size.
func (m *DefaultManager) WriteObjectAsJSON(path string, object interface{}) (int64, error) {
	data, err := json.MarshalIndent(object, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("error marshalling to JSON: %w", err)
	}
	if err := m.WriteFile(path, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}
