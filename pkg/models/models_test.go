package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenderValid(t *testing.T) {
	tests := []struct {
		in   Gender
		want bool
	}{
		{GenderMale, true},
		{GenderFemale, true},
		{GenderOther, true},
		{"", false},
		{"female", false},
		{"Unknown", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Valid())
		})
	}
}

func TestPredictionClass(t *testing.T) {
	assert.True(t, ClassMSIMUT.Valid())
	assert.True(t, ClassMSS.Valid())
	assert.False(t, PredictionClass("MSI").Valid())

	assert.Equal(t, "Microsatellite Instability (MSIMUT)", ClassMSIMUT.Label())
	assert.Equal(t, "Microsatellite Stable (MSS)", ClassMSS.Label())
}

func TestDataURLRoundTrip(t *testing.T) {
	img := ImageRef{MIME: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	url := img.DataURL()
	assert.Equal(t, "data:image/png;base64,iVBORw==", url)

	parsed, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, img, parsed)
}

func TestParseDataURL_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png,AAAA",
		"data:;base64,AAAA",
		"data:image/png;base64",
		"data:image/png;base64,***",
	} {
		_, err := ParseDataURL(s)
		assert.ErrorIs(t, err, ErrInvalidDataURL, s)
	}
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".jpg", ImageRef{MIME: "image/jpeg"}.Extension())
	assert.Equal(t, ".png", ImageRef{MIME: "image/png"}.Extension())
	assert.Equal(t, ".img", ImageRef{MIME: "image/tiff"}.Extension())
}
