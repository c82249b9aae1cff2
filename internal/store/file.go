package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileLocation stores artifacts as JSON files under a root directory,
// one subdirectory per data type, one file per date.
type FileLocation struct {
	name string
	root string
}

// NewFileLocation creates a file-backed location rooted at dir.
func NewFileLocation(name, dir string) *FileLocation {
	return &FileLocation{name: name, root: dir}
}

func (l *FileLocation) Name() string { return l.name }

func (l *FileLocation) path(dataType, date string) string {
	return filepath.Join(l.root, dataType, date+".json")
}

// Put writes atomically: the payload lands in a temp file first and is
// renamed into place, so readers never observe a half-written artifact.
func (l *FileLocation) Put(ctx context.Context, dataType, date string, payload []byte) error {
	dir := filepath.Join(l.root, dataType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+date+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	final := l.path(dataType, date)
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (l *FileLocation) Get(ctx context.Context, dataType, date string) ([]byte, error) {
	payload, err := os.ReadFile(l.path(dataType, date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

// Dates lists every date with an artifact for the data type.
func (l *FileLocation) Dates(ctx context.Context, dataType string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.root, dataType))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		dates = append(dates, strings.TrimSuffix(name, ".json"))
	}
	return dates, nil
}
