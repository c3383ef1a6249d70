// Package history persists the lines entered in the debug console.
package history

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/kcaldas/devkit/pkg/fileops"
)

// DefaultMaxSize is the number of lines kept.
const DefaultMaxSize = 100

// ConsoleHistory manages console lines with persistent storage
type ConsoleHistory interface {
	Add(line string) error
	Entries() []string
	Load() error
	Save() error
}

// FileHistory implements ConsoleHistory with one line per entry in a file
type FileHistory struct {
	path    string
	files   fileops.Manager
	maxSize int

	mu    sync.Mutex
	lines []string
}

// NewConsoleHistory creates a history stored at path. A nil files manager
// uses the default file operations.
func NewConsoleHistory(path string, files fileops.Manager) *FileHistory {
	if files == nil {
		files = fileops.NewFileOpsManager()
	}
	return &FileHistory{
		path:    path,
		files:   files,
		maxSize: DefaultMaxSize,
	}
}

// Add appends line, moving an earlier identical line to the end, and saves.
func (h *FileHistory) Add(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	h.mu.Lock()
	for i, existing := range h.lines {
		if existing == line {
			h.lines = append(h.lines[:i], h.lines[i+1:]...)
			break
		}
	}
	h.lines = append(h.lines, line)
	if len(h.lines) > h.maxSize {
		h.lines = h.lines[len(h.lines)-h.maxSize:]
	}
	h.mu.Unlock()

	return h.Save()
}

// Entries returns a copy of the history, oldest first
func (h *FileHistory) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}

// Load reads the history file. A missing file means an empty history.
func (h *FileHistory) Load() error {
	data, err := h.files.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}
	if len(lines) > h.maxSize {
		lines = lines[len(lines)-h.maxSize:]
	}

	h.mu.Lock()
	h.lines = lines
	h.mu.Unlock()
	return nil
}

// Save writes the history file
func (h *FileHistory) Save() error {
	h.mu.Lock()
	var buf bytes.Buffer
	for _, line := range h.lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	h.mu.Unlock()

	if err := h.files.WriteFile(h.path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}
