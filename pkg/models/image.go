package models

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidDataURL is returned when a string is not a base64 data URL.
var ErrInvalidDataURL = errors.New("invalid data URL")

// ImageRef is an uploaded image kept in memory.
type ImageRef struct {
	MIME string
	Data []byte
}

// DataURL encodes the image as data:<mime>;base64,<payload>.
func (i ImageRef) DataURL() string {
	return "data:" + i.MIME + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Extension returns a file extension matching the MIME type.
func (i ImageRef) Extension() string {
	switch i.MIME {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	}
	return ".img"
}

// ParseDataURL decodes a base64 data URL produced by DataURL.
func ParseDataURL(s string) (ImageRef, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return ImageRef{}, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return ImageRef{}, ErrInvalidDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mime == "" {
		return ImageRef{}, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageRef{}, ErrInvalidDataURL
	}
	return ImageRef{MIME: mime, Data: data}, nil
}
