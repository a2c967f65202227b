// Package upload validates image files selected by the user.
package upload

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ulle78/DeepMSI/pkg/models"
)

// DefaultMaxBytes caps an upload when no limit is configured.
const DefaultMaxBytes = 20 << 20

// Message is shown inline for any rejected upload.
const Message = "Please upload an image file (JPG/PNG)"

var (
	ErrNotImage = errors.New("file is not an image")
	ErrEmpty    = errors.New("file is empty")
	ErrTooLarge = errors.New("file is too large")
)

// Validate sniffs data and returns it as an image reference. Anything that
// is not image/* is rejected with ErrNotImage.
func Validate(filename string, data []byte, maxBytes int64) (models.ImageRef, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) == 0 {
		return models.ImageRef{}, fmt.Errorf("%s: %w", filename, ErrEmpty)
	}
	if int64(len(data)) > maxBytes {
		return models.ImageRef{}, fmt.Errorf("%s: %w (%d > %d bytes)", filename, ErrTooLarge, len(data), maxBytes)
	}

	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return models.ImageRef{}, fmt.Errorf("%s (%s): %w", filename, mime, ErrNotImage)
	}

	return models.ImageRef{MIME: mime, Data: data}, nil
}
