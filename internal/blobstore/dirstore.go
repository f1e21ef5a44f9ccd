package blobstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sbtplatform/quote-splitter/internal/fileutils"
	"github.com/ubuntu/decorate"
)

// DirStore is a Store backed by a directory tree on the local filesystem.
//
// Blob paths map to file paths relative to the root directory. Writes are
// atomic, so concurrent workers never observe partially written blobs.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir, creating it if missing.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory must be set")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %v", err)
	}

	return &DirStore{root: dir}, nil
}

// List returns the paths of all regular files under root starting with prefix.
// Paths are slash-separated, relative to root, in lexical order.
func (s *DirStore) List(ctx context.Context, prefix string) (paths []string, err error) {
	defer decorate.OnError(&err, "could not list %q", prefix)

	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// Read returns the content of the blob at path.
func (s *DirStore) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := s.abs(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// Write stores data at path, overwriting any existing blob.
func (s *DirStore) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	abs, err := s.abs(path)
	if err != nil {
		return err
	}
	return fileutils.AtomicWrite(abs, data)
}

// Copy duplicates the blob at src to dst, overwriting any existing blob.
func (s *DirStore) Copy(ctx context.Context, src, dst string) error {
	data, err := s.Read(ctx, src)
	if err != nil {
		return fmt.Errorf("could not read source blob: %w", err)
	}
	return s.Write(ctx, dst, data)
}

// Delete removes the blob at path.
func (s *DirStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	abs, err := s.abs(path)
	if err != nil {
		return err
	}
	return os.Remove(abs)
}

// abs resolves a blob path to a file path, rejecting escapes from the root.
func (s *DirStore) abs(path string) (string, error) {
	rel := filepath.FromSlash(path)
	if rel == "" || filepath.IsAbs(rel) || rel != filepath.Clean(rel) || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid blob path %q", path)
	}
	return filepath.Join(s.root, rel), nil
}
