package storage

import (
	"io"
	"os"
	"path/filepath"
)

// BlobStore serves the static assets bundled with a deployment (landing
// page, favicon).
type BlobStore interface {
	Get(key string) (io.ReadCloser, error)
}

type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./static"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.base, filepath.Clean("/"+key)))
}
