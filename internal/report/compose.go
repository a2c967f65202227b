// Package report assembles report data from a patient, an image and a prediction.
package report

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ulle78/DeepMSI/pkg/models"
)

var (
	ErrNoImage      = errors.New("no uploaded image")
	ErrNoPrediction = errors.New("no prediction result")
)

const (
	idPrefix   = "HS-"
	idLength   = 6
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	dateLayout      = "02/01/2006"
	timestampLayout = "02/01/2006 15:04"
)

// IDGenerator produces display-only report identifiers.
type IDGenerator func() string

// NewID returns HS- followed by six uppercase base-36 characters drawn from r,
// or from the global source when r is nil. Not unique; never use as a key.
func NewID(r *rand.Rand) string {
	intN := rand.IntN
	if r != nil {
		intN = r.IntN
	}
	var b strings.Builder
	b.WriteString(idPrefix)
	for range idLength {
		b.WriteByte(idAlphabet[intN(len(idAlphabet))])
	}
	return strings.ToUpper(b.String())
}

// Compose builds the report for a submitted patient. It performs no I/O and
// stamps now as the composition time.
func Compose(patient models.PatientInfo, image *models.ImageRef, prediction *models.PredictionResult, now time.Time, ids IDGenerator) (*models.ReportData, error) {
	if image == nil || len(image.Data) == 0 {
		return nil, ErrNoImage
	}
	if prediction == nil {
		return nil, ErrNoPrediction
	}
	if ids == nil {
		ids = func() string { return NewID(nil) }
	}

	return &models.ReportData{
		ID:         ids(),
		Patient:    patient,
		Image:      *image,
		Prediction: *prediction,
		CreatedAt:  now,
		Date:       FormatDate(now),
	}, nil
}

// ConfidencePercent is the confidence bar width in percent.
func ConfidencePercent(probability float64) float64 {
	switch {
	case math.IsNaN(probability), probability <= 0:
		return 0
	case probability >= 1:
		return 100
	}
	return probability * 100
}

// FormatDate renders t as dd/MM/yyyy.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatTimestamp renders t as dd/MM/yyyy HH:mm.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}
