package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dir is the relative directory every stored image path starts with.
const Dir = "images/users"

var (
	ErrInvalidType = errors.New("only jpeg, jpg, png, gif and webp images are allowed")
	ErrTooLarge    = errors.New("image is too large")
	ErrInvalidPath = errors.New("invalid image path")
)

var allowedTypes = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

// Store persists profile images under relative paths like images/users/<name>.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, relPath string) error
	URL(baseURL, relPath string) string
}

// Validate checks both the file extension and the declared MIME type.
func Validate(filename, contentType string, size, maxSize int64) error {
	if maxSize > 0 && size > maxSize {
		return ErrTooLarge
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !allowedTypes[ext] {
		return ErrInvalidType
	}

	mime := strings.ToLower(contentType)
	if !strings.HasPrefix(mime, "image/") || !allowedTypes[strings.TrimPrefix(mime, "image/")] {
		return ErrInvalidType
	}

	return nil
}

// FileName builds user_<userID>_<unixMillis>-<random><ext>.
func FileName(userID string, original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("user_%s_%d-%d%s", userID, now.UnixMilli(), uuid.New().ID()%1_000_000_000, ext)
}

// RelPath returns the stored path for a file name.
func RelPath(name string) string {
	return path.Join(Dir, name)
}

// nameFromRelPath returns the file name of a stored path, rejecting anything
// outside Dir.
func nameFromRelPath(relPath string) (string, error) {
	clean := path.Clean(relPath)
	if path.Dir(clean) != Dir {
		return "", ErrInvalidPath
	}

	name := path.Base(clean)
	if name == "." || name == "/" || name == ".." {
		return "", ErrInvalidPath
	}

	return name, nil
}
