package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSnapshot keeps the document in a single JSON file. Writes go to a
// temporary file in the same directory which then replaces the target.
type FileSnapshot struct {
	path string
}

// NewFileSnapshot creates a file-backed snapshotter.
func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{path: path}
}

// Path returns the target file.
func (f *FileSnapshot) Path() string {
	return f.path
}

func (f *FileSnapshot) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}

	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, ErrNoSnapshot
	}

	return data, nil
}

func (f *FileSnapshot) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}

	return nil
}

// Ping checks that the data directory exists or can be created.
func (f *FileSnapshot) Ping(_ context.Context) error {
	return os.MkdirAll(filepath.Dir(f.path), 0o755)
}

// Compile-time check.
var _ Snapshotter = (*FileSnapshot)(nil)
