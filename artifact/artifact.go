// Package artifact provides storage backends for embedding model archives
// and a local cache that fetches and unpacks them on demand.
//
// Model archives are zstd-compressed tarballs keyed by model name. The
// cache keeps one directory per model under its root; a model directory
// that already exists is reused without touching the backing store.
package artifact

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ErrNotFound is returned when an artifact does not exist in the store.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("artifact not found")

// Store is an abstraction for accessing immutable model archives.
type Store interface {
	// Open opens an artifact for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Put writes an artifact.
	Put(ctx context.Context, name string, r io.Reader) error
}

// ArchiveKey maps a model name to its archive object key.
func ArchiveKey(modelName string) string {
	return strings.ReplaceAll(modelName, "/", "--") + ".tar.zst"
}

// Cache fetches model archives from a Store and unpacks them under a local
// root directory.
type Cache struct {
	store Store
	root  string
}

// NewCache creates a cache over store rooted at dir.
func NewCache(store Store, dir string) *Cache {
	return &Cache{store: store, root: dir}
}

// Dir returns the local directory a model unpacks into.
func (c *Cache) Dir(modelName string) string {
	return filepath.Join(c.root, strings.ReplaceAll(modelName, "/", "--"))
}

// Fetch ensures the model's artifacts are present locally and returns the
// model directory. An existing directory is trusted as complete.
func (c *Cache) Fetch(ctx context.Context, modelName string) (string, error) {
	dir := c.Dir(modelName)
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	rc, err := c.store.Open(ctx, ArchiveKey(modelName))
	if err != nil {
		return "", fmt.Errorf("opening archive for %q: %w", modelName, err)
	}
	defer rc.Close()

	// Unpack into a staging directory and rename, so a partially
	// extracted archive is never mistaken for a complete model.
	staging := dir + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return "", err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", err
	}
	if err := extractArchive(rc, staging); err != nil {
		_ = os.RemoveAll(staging)
		return "", fmt.Errorf("unpacking archive for %q: %w", modelName, err)
	}
	if err := os.Rename(staging, dir); err != nil {
		_ = os.RemoveAll(staging)
		return "", err
	}
	return dir, nil
}

// extractArchive streams a zstd-compressed tarball into dst.
func extractArchive(r io.Reader, dst string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := securePath(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			// Symlinks and specials are not expected in model archives.
			return fmt.Errorf("unsupported archive entry type %d for %q", hdr.Typeflag, hdr.Name)
		}
	}
}

// securePath rejects entries that would escape the extraction root.
func securePath(root, name string) (string, error) {
	target := filepath.Join(root, filepath.Clean("/"+name))
	if !strings.HasPrefix(target, filepath.Clean(root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction root", name)
	}
	return target, nil
}
