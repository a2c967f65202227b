package upload

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidate_PNG(t *testing.T) {
	data := pngBytes(t)

	ref, err := Validate("slide.png", data, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ref.MIME)
	assert.Equal(t, data, ref.Data)
}

func TestValidate_JPEGMagic(t *testing.T) {
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...)

	ref, err := Validate("slide.jpg", data, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ref.MIME)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		max  int64
		want error
	}{
		{"text", []byte("patient notes, definitely not pixels"), 0, ErrNotImage},
		{"pdf", []byte("%PDF-1.4\n%âãÏÓ"), 0, ErrNotImage},
		{"html", []byte("<html><body>hi</body></html>"), 0, ErrNotImage},
		{"empty", nil, 0, ErrEmpty},
		{"too large", pngBytes(t), 8, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.name, tt.data, tt.max)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
