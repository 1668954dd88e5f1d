package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps each bundle as <dir>/<name>.json. Writes go through a
// temporary file and a rename so readers never observe a partial bundle.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("artifact directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Put writes the bundle to disk, replacing any previous version.
func (s *FileStore) Put(ctx context.Context, bundle Bundle) error {
	if err := ValidateName(bundle.Name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+bundle.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(bundle.Name)); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}
	return nil
}

// GetLatest reads the bundle stored under name.
func (s *FileStore) GetLatest(ctx context.Context, name string) (Bundle, bool, error) {
	if err := ValidateName(name); err != nil {
		return Bundle{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Bundle{}, false, err
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Bundle{}, false, nil
		}
		return Bundle{}, false, fmt.Errorf("read bundle: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return Bundle{}, false, fmt.Errorf("failed to unmarshal bundle %q: %w", name, err)
	}
	return bundle, true, nil
}

// Raw returns the stored JSON document for name without decoding it.
func (s *FileStore) Raw(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(s.path(name))
}

// List returns the names of all stored bundles, sorted.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(n, ".json"))
	}
	sort.Strings(names)
	return names, nil
}
