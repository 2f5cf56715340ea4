package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Manifest appends the input path of every processed file to a log named
// <filetype>_<timestamp>.log.
type Manifest struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewManifest returns a manifest in dir. The file is created on the first
// Record call.
func NewManifest(dir, fileType string, now time.Time) *Manifest {
	return &Manifest{
		path: filepath.Join(dir, fmt.Sprintf("%s_%s.log", FileTypeLabel(fileType), now.Format("2006-01-02T15:04:05"))),
	}
}

// FileTypeLabel turns a file type pattern such as "*.tavg.monthly.*" into a
// name fragment, "all" when nothing is left.
func FileTypeLabel(fileType string) string {
	name := strings.Trim(strings.ReplaceAll(fileType, "*", ""), ".")
	if name == "" {
		return "all"
	}
	return name
}

// Path returns the log file path.
func (m *Manifest) Path() string {
	return m.path
}

// Record appends e.Input as one line.
func (m *Manifest) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		f, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open manifest: %w", err)
		}
		m.f = f
	}
	if _, err := fmt.Fprintln(m.f, e.Input); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Close closes the log file if it was opened.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}
