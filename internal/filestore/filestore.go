package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Storage persists opaque attachment blobs by key and serves them back by URL.
type Storage interface {
	// Save writes the blob under key and returns its retrievable URL.
	Save(ctx context.Context, key string, r io.Reader) (string, error)

	// Delete removes the blob for key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// URL returns the retrievable URL for key without touching storage.
	URL(key string) string
}

// Disk stores blobs under a root directory and serves them under a URL prefix.
type Disk struct {
	root      string
	urlPrefix string
}

// NewDisk creates a disk storage rooted at dir, serving under urlPrefix.
func NewDisk(dir, urlPrefix string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{root: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

func (d *Disk) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// Save writes the blob under key and returns its retrievable URL.
func (d *Disk) Save(_ context.Context, key string, r io.Reader) (string, error) {
	p, err := d.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create attachment dir: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return d.URL(key), nil
}

// Delete removes the blob for key.
func (d *Disk) Delete(_ context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}

// URL returns the retrievable URL for key.
func (d *Disk) URL(key string) string {
	return d.urlPrefix + path.Clean("/"+key)
}
