// Package archive keeps a copy of every raw upload.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Archiver stores the raw bytes of an upload under key and returns where
// they ended up.
type Archiver interface {
	Save(ctx context.Context, key string, payload []byte, contentType string) (string, error)
}

// ObjectKey builds the storage key for a document's original file.
func ObjectKey(documentID, filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return path.Join("documents", documentID, base)
}

type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Save(_ context.Context, key string, payload []byte, _ string) (string, error) {
	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(target, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(target, payload, 0644); err != nil {
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}
	return target, nil
}
