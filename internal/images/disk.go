package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes images to <root>/users. The HTTP layer serves root at
// /media/images.
type DiskStore struct {
	root          string
	publicBaseURL string
}

func NewDiskStore(root, publicBaseURL string) (*DiskStore, error) {
	const op = "images.NewDiskStore"

	if err := os.MkdirAll(filepath.Join(root, "users"), 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &DiskStore{root: root, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (d *DiskStore) Root() string {
	return d.root
}

func (d *DiskStore) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	const op = "images.DiskStore.Save"

	relPath := RelPath(name)
	if _, err := nameFromRelPath(relPath); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.OpenFile(d.fullPath(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(d.fullPath(name))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return relPath, nil
}

// Delete removes the file; a missing file is not an error.
func (d *DiskStore) Delete(_ context.Context, relPath string) error {
	const op = "images.DiskStore.Delete"

	name, err := nameFromRelPath(relPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Remove(d.fullPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (d *DiskStore) URL(baseURL, relPath string) string {
	if d.publicBaseURL != "" {
		baseURL = d.publicBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/media/" + relPath
}

func (d *DiskStore) fullPath(name string) string {
	return filepath.Join(d.root, "users", name)
}
