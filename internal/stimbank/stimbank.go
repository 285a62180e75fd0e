// Package stimbank stores and resolves stimulus content. Conditions carry
// content keys; the bank maps a key to bytes in one of three backends
// (filesystem, memory, S3) and can materialize remote content to a local
// cache path for the audio device.
package stimbank

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"operantcore/pkg/domain"
)

// Driver identifies a bank backend.
type Driver string

// Supported backends.
const (
	DriverFilesystem Driver = "fs"
	DriverMemory     Driver = "memory"
	DriverS3         Driver = "s3"
)

// Info describes one stored stimulus.
type Info struct {
	Key  string
	Size int64
}

// Store is the backend contract: content-addressed stimulus bytes.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	List(ctx context.Context, prefix string) ([]Info, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Driver Driver
	// Root is the content directory for the fs driver.
	Root string
	// Bucket, Region, Endpoint and PathStyle configure the s3 driver.
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// OpenStore builds the configured backend. Unknown drivers fail fast.
func OpenStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFS(cfg.Root)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, cfg)
	default:
		return nil, domain.NewConfigError("stimuli", fmt.Errorf("unknown driver %q", cfg.Driver))
	}
}

// Bank resolves content keys to local file paths, fetching remote content
// into a cache directory once per key.
type Bank struct {
	store    Store
	cacheDir string
}

// NewBank wraps a store with a local materialization cache. cacheDir may be
// empty for a temp directory.
func NewBank(store Store, cacheDir string) (*Bank, error) {
	if cacheDir == "" {
		dir, err := os.MkdirTemp("", "stimcache-")
		if err != nil {
			return nil, fmt.Errorf("create stimulus cache: %w", err)
		}
		cacheDir = dir
	} else if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create stimulus cache: %w", err)
	}
	return &Bank{store: store, cacheDir: cacheDir}, nil
}

// Store exposes the underlying backend.
func (b *Bank) Store() Store { return b.store }

// Resolve returns a local path holding the content for key. Filesystem
// content is returned in place; other backends are fetched into the cache
// on first use.
func (b *Bank) Resolve(ctx context.Context, key string) (string, error) {
	if fs, ok := b.store.(*FS); ok {
		return fs.Path(key)
	}
	local := filepath.Join(b.cacheDir, filepath.FromSlash(key))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	r, err := b.store.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("fetch stimulus %s: %w", key, err)
	}
	defer r.Close()
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("cache stimulus %s: %w", key, err)
	}
	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("cache stimulus %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(local)
		return "", fmt.Errorf("cache stimulus %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("cache stimulus %s: %w", key, err)
	}
	return local, nil
}
