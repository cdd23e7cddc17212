package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/site-content/pkg/sitecontent"
)

const backendName = "fs"

// Store is a filesystem implementation of the sitecontent.Store interface.
// Each document is one pretty-printed JSON file named after its key.
type Store struct {
	baseDir string
}

// Config options for the filesystem store
type Config struct {
	BaseDir string // Directory holding <key>.json files
}

// New creates a new filesystem store
func New(config Config) (*Store, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{baseDir: config.BaseDir}, nil
}

// Path returns the file backing key
func (s *Store) Path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", sitecontent.ErrInvalidKey
	}
	return filepath.Join(s.baseDir, key+".json"), nil
}

// Load reads and decodes the document file for key
func (s *Store) Load(ctx context.Context, key string) (sitecontent.Document, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, sitecontent.NewStoreError(backendName, key, "load", sitecontent.ErrDocumentNotFound)
	} else if err != nil {
		return nil, sitecontent.NewStoreError(backendName, key, "load", fmt.Errorf("failed to read file: %w", err))
	}

	doc, err := sitecontent.ParseDocument(data)
	if err != nil {
		return nil, sitecontent.NewStoreError(backendName, key, "load", fmt.Errorf("corrupt document: %w", err))
	}
	return doc, nil
}

// Save writes doc to a temporary file next to the target and renames it into
// place, so readers see either the old or the new document.
func (s *Store) Save(ctx context.Context, key string, doc sitecontent.Document) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}

	data, err := doc.Encode()
	if err != nil {
		return sitecontent.NewStoreError(backendName, key, "save", err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return sitecontent.NewStoreError(backendName, key, "save", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
