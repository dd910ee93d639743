package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const fileExt = ".json"

// Backend stores one file per key under a directory. Writes go to a temp
// file that is renamed over the target, so readers never see a partial value.
type Backend struct {
	dir string
}

// New creates the directory if needed and returns a backend rooted there.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return &Backend{dir: dir}, nil
}

func (b *Backend) path(key string) string {
	return filepath.Join(b.dir, url.PathEscape(key)+fileExt)
}

func (b *Backend) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.NotFound("key", key)
		}
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), nil
}

func (b *Backend) Set(_ context.Context, key, value string) error {
	tmp, err := os.CreateTemp(b.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, b.path(key)); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Ping checks that the directory still exists and is a directory.
func (b *Backend) Ping(context.Context) error {
	info, err := os.Stat(b.dir)
	if err != nil {
		return fmt.Errorf("stat storage dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", b.dir)
	}
	return nil
}
