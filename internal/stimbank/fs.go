package stimbank

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS serves stimulus content from a directory tree. Keys are slash paths
// relative to the root.
type FS struct {
	root string
}

// NewFS returns a filesystem bank rooted at path, creating it if needed.
func NewFS(root string) (*FS, error) {
	if root == "" {
		root = "./stims"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create stimulus root: %w", err)
	}
	return &FS{root: root}, nil
}

// Driver returns the backend identifier.
func (s *FS) Driver() Driver { return DriverFilesystem }

func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key traversal %q", key)
	}
	return clean, nil
}

// Path maps a key to its on-disk location, verifying it exists.
func (s *FS) Path(key string) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(k))
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("stimulus %s: %w", key, err)
	}
	return p, nil
}

// Put writes content under key; overwriting an existing key is an error.
func (s *FS) Put(_ context.Context, key string, r io.Reader) (Info, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return Info{}, err
	}
	p := filepath.Join(s.root, filepath.FromSlash(k))
	if _, err := os.Stat(p); err == nil {
		return Info{}, fmt.Errorf("stimulus %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Info{}, err
	}
	f, err := os.Create(p)
	if err != nil {
		return Info{}, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(p)
		return Info{}, err
	}
	return Info{Key: k, Size: n}, nil
}

// Open returns a reader over the content at key.
func (s *FS) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Head returns metadata for key.
func (s *FS) Head(_ context.Context, key string) (Info, error) {
	p, err := s.Path(key)
	if err != nil {
		return Info{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return Info{}, err
	}
	k, _ := sanitizeKey(key)
	return Info{Key: k, Size: info.Size()}, nil
}

// List returns the keys under prefix in sorted order.
func (s *FS) List(_ context.Context, prefix string) ([]Info, error) {
	var out []Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Info{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
