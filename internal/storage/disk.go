package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStore is the attachment storage collaborator: save, read, delete by
// relative path.
type FileStore interface {
	Save(path string, r io.Reader) (int64, error)
	Open(path string) (io.ReadCloser, error)
	Delete(path string) error
}

type DiskStore struct {
	Root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &DiskStore{Root: root}, nil
}

// resolve joins path onto the root, collapsing any traversal segments so a
// stored path can never escape the root directory.
func (s *DiskStore) resolve(path string) string {
	return filepath.Join(s.Root, filepath.Clean("/"+path))
}

func (s *DiskStore) Save(path string, r io.Reader) (int64, error) {
	full := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("storage: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return 0, fmt.Errorf("storage: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("storage: %w", err)
	}
	return n, nil
}

func (s *DiskStore) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return f, nil
}

func (s *DiskStore) Delete(path string) error {
	if err := os.Remove(s.resolve(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}
