package images

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		filename    string
		contentType string
		size        int64
		wantErr     error
	}{
		{name: "png", filename: "a.png", contentType: "image/png", size: 10},
		{name: "upper ext", filename: "A.JPG", contentType: "image/jpeg", size: 10},
		{name: "webp", filename: "a.webp", contentType: "image/webp", size: 10},
		{name: "exe ext", filename: "a.exe", contentType: "image/png", size: 10, wantErr: ErrInvalidType},
		{name: "text mime", filename: "a.png", contentType: "text/plain", size: 10, wantErr: ErrInvalidType},
		{name: "svg", filename: "a.svg", contentType: "image/svg+xml", size: 10, wantErr: ErrInvalidType},
		{name: "no ext", filename: "png", contentType: "image/png", size: 10, wantErr: ErrInvalidType},
		{name: "too large", filename: "a.png", contentType: "image/png", size: 6 << 20, wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.filename, tt.contentType, tt.size, 5<<20)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123)
	name := FileName("42", "Photo.PNG", now)

	assert.Regexp(t, regexp.MustCompile(`^user_42_1700000000123-\d+\.png$`), name)
	assert.Equal(t, "images/users/"+name, RelPath(name))
}

func TestNameFromRelPath(t *testing.T) {
	t.Parallel()

	name, err := nameFromRelPath("images/users/a.png")
	assert.NoError(t, err)
	assert.Equal(t, "a.png", name)

	for _, bad := range []string{"", "a.png", "images/users/../../etc/passwd", "images/other/a.png", "images/users"} {
		_, err := nameFromRelPath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}
