// Package pipeline runs upload, prediction, composition and export end to end
// for non-interactive callers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ulle78/DeepMSI/internal/export"
	"github.com/ulle78/DeepMSI/internal/report"
	"github.com/ulle78/DeepMSI/internal/upload"
	"github.com/ulle78/DeepMSI/internal/workflow"
	"github.com/ulle78/DeepMSI/pkg/models"
)

// Predictor classifies an image.
type Predictor interface {
	Predict(ctx context.Context, img models.ImageRef) (*models.PredictionResult, error)
}

// Params configures a run. Patient and Exporter are optional: without a
// patient the run stops after prediction, without an exporter after composition.
type Params struct {
	ImagePath string
	MaxBytes  int64
	Patient   *models.PatientInfo
	Predictor Predictor
	Exporter  export.Exporter
	Emitter   ProgressEmitter
	Now       func() time.Time
	IDs       report.IDGenerator
}

// Result is what a run produced.
type Result struct {
	Image      models.ImageRef
	Prediction *models.PredictionResult
	Report     *models.ReportData
	Artifact   *export.Artifact
}

var ErrNoPredictor = errors.New("no predictor configured")

// Run validates the image, predicts, and optionally composes and exports.
func Run(ctx context.Context, p Params) (*Result, error) {
	if p.Predictor == nil {
		return nil, ErrNoPredictor
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	steps := 2
	if p.Patient != nil {
		steps++
		if p.Exporter != nil {
			steps++
		}
	}

	emit(p.Emitter, ProgressEvent{Type: "step", Step: 1, MaxStep: steps, Message: "Reading " + filepath.Base(p.ImagePath)})
	data, err := os.ReadFile(p.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	img, err := upload.Validate(filepath.Base(p.ImagePath), data, p.MaxBytes)
	if err != nil {
		return nil, err
	}

	state, err := workflow.Transition(workflow.State{}, workflow.Upload{Image: img})
	if err != nil {
		return nil, err
	}
	if state, err = workflow.Transition(state, workflow.PredictStart{}); err != nil {
		return nil, err
	}

	emit(p.Emitter, ProgressEvent{Type: "step", Step: 2, MaxStep: steps, Message: "Running prediction..."})
	start := time.Now()
	pred, err := p.Predictor.Predict(ctx, img)
	if err != nil {
		return nil, err
	}
	if state, err = workflow.Transition(state, workflow.PredictSuccess{Request: state.Request, Result: *pred}); err != nil {
		return nil, err
	}
	emit(p.Emitter, ProgressEvent{Type: "result", Step: 2, MaxStep: steps, Prediction: pred, LatencyMs: sinceMs(start)})

	res := &Result{Image: img, Prediction: state.Prediction}
	if p.Patient == nil {
		emit(p.Emitter, ProgressEvent{Type: "done", Prediction: res.Prediction})
		return res, nil
	}

	emit(p.Emitter, ProgressEvent{Type: "step", Step: 3, MaxStep: steps, Message: "Composing report"})
	state, err = workflow.Transition(state, workflow.ComposeReport{Patient: *p.Patient, Now: now(), IDs: p.IDs})
	if err != nil {
		return nil, err
	}
	res.Report = state.Report
	emit(p.Emitter, ProgressEvent{Type: "info", Message: "Report " + res.Report.ID})

	if p.Exporter == nil {
		emit(p.Emitter, ProgressEvent{Type: "done", Prediction: res.Prediction, ReportID: res.Report.ID})
		return res, nil
	}

	emit(p.Emitter, ProgressEvent{Type: "step", Step: 4, MaxStep: steps, Message: "Exporting PDF"})
	art, err := p.Exporter.Export(ctx, res.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to export report: %w", err)
	}
	res.Artifact = art

	emit(p.Emitter, ProgressEvent{Type: "done", Prediction: res.Prediction, ReportID: res.Report.ID, Filename: art.Filename})
	return res, nil
}
