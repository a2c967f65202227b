package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulle78/DeepMSI/internal/export"
	"github.com/ulle78/DeepMSI/internal/predict"
	"github.com/ulle78/DeepMSI/internal/upload"
	"github.com/ulle78/DeepMSI/pkg/models"
)

type stubPredictor struct {
	result *models.PredictionResult
	err    error
	calls  int
}

func (s *stubPredictor) Predict(_ context.Context, _ models.ImageRef) (*models.PredictionResult, error) {
	s.calls++
	return s.result, s.err
}

type recorder struct {
	events []ProgressEvent
}

func (r *recorder) Emit(ev ProgressEvent) { r.events = append(r.events, ev) }

func (r *recorder) types() []string {
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func writePNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))
	path := filepath.Join(t.TempDir(), "slide.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

var janeDoe = models.PatientInfo{Name: "Jane Doe", Age: 54, Gender: models.GenderFemale, ClinicalHistory: "none"}

func TestRun_PredictOnly(t *testing.T) {
	pred := &stubPredictor{result: &models.PredictionResult{Class: models.ClassMSS, Probability: 0.82}}
	rec := &recorder{}

	res, err := Run(context.Background(), Params{ImagePath: writePNG(t), Predictor: pred, Emitter: rec})
	require.NoError(t, err)

	assert.Equal(t, "image/png", res.Image.MIME)
	assert.Equal(t, models.ClassMSS, res.Prediction.Class)
	assert.Nil(t, res.Report)
	assert.Nil(t, res.Artifact)
	assert.Equal(t, 1, pred.calls)
	assert.Equal(t, []string{"step", "step", "result", "done"}, rec.types())
}

func TestRun_FullReport(t *testing.T) {
	clock := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	exp, err := export.New(export.StrategyVector, export.Options{Now: func() time.Time { return clock }})
	require.NoError(t, err)
	rec := &recorder{}

	res, err := Run(context.Background(), Params{
		ImagePath: writePNG(t),
		Patient:   &janeDoe,
		Predictor: &stubPredictor{result: &models.PredictionResult{Class: models.ClassMSIMUT, Probability: 0.91}},
		Exporter:  exp,
		Emitter:   rec,
		Now:       func() time.Time { return clock },
		IDs:       func() string { return "HS-TEST01" },
	})
	require.NoError(t, err)

	require.NotNil(t, res.Report)
	assert.Equal(t, "HS-TEST01", res.Report.ID)
	assert.Equal(t, janeDoe, res.Report.Patient)
	assert.Equal(t, clock, res.Report.CreatedAt)
	require.NotNil(t, res.Artifact)
	assert.Equal(t, "histopath_report_20250314_100000.pdf", res.Artifact.Filename)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, "done", last.Type)
	assert.Equal(t, "HS-TEST01", last.ReportID)
	assert.Equal(t, res.Artifact.Filename, last.Filename)
	assert.Equal(t, 4, rec.events[0].MaxStep)
}

func TestRun_RejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))
	pred := &stubPredictor{}

	_, err := Run(context.Background(), Params{ImagePath: path, Predictor: pred})
	assert.ErrorIs(t, err, upload.ErrNotImage)
	assert.Equal(t, 0, pred.calls)
}

func TestRun_PredictionFailure(t *testing.T) {
	pred := &stubPredictor{err: predict.ErrPredictionFailed}

	_, err := Run(context.Background(), Params{ImagePath: writePNG(t), Predictor: pred, Patient: &janeDoe})
	assert.ErrorIs(t, err, predict.ErrPredictionFailed)
}

type failingExporter struct{}

func (failingExporter) Export(context.Context, *models.ReportData) (*export.Artifact, error) {
	return nil, errors.New("disk full")
}

func TestRun_ExportFailureSurfaced(t *testing.T) {
	_, err := Run(context.Background(), Params{
		ImagePath: writePNG(t),
		Patient:   &janeDoe,
		Predictor: &stubPredictor{result: &models.PredictionResult{Class: models.ClassMSS, Probability: 0.5}},
		Exporter:  failingExporter{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to export report")
}

func TestRun_MissingFileAndPredictor(t *testing.T) {
	_, err := Run(context.Background(), Params{ImagePath: "x.png"})
	assert.ErrorIs(t, err, ErrNoPredictor)

	_, err = Run(context.Background(), Params{ImagePath: filepath.Join(t.TempDir(), "missing.png"), Predictor: &stubPredictor{}})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
