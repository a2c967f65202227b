// Package workflow holds the classifier view state and its legal transitions.
//
// The state is a value. Transition never mutates its input; callers replace
// their copy with the returned state.
package workflow

import (
	"errors"
	"time"

	"github.com/ulle78/DeepMSI/internal/report"
	"github.com/ulle78/DeepMSI/pkg/models"
)

var (
	ErrBusy              = errors.New("a prediction is already in progress")
	ErrNoImage           = errors.New("please upload an image first")
	ErrNotLoading        = errors.New("no prediction is in progress")
	ErrReportUnavailable = errors.New("report generation requires an image and a prediction")
	ErrUnknownEvent      = errors.New("unknown event")
)

// State is everything the classifier view shows.
type State struct {
	Image      *models.ImageRef
	Prediction *models.PredictionResult
	Loading    bool
	Error      string
	Report     *models.ReportData

	// Request identifies the latest prediction request. Outcomes carrying
	// an older value are discarded.
	Request uint64
}

// CanPredict reports whether the analyze control is enabled.
func (s State) CanPredict() bool {
	return s.Image != nil && !s.Loading
}

// CanGenerateReport reports whether the report control is enabled.
func (s State) CanGenerateReport() bool {
	return s.Image != nil && s.Prediction != nil
}

// CanExport reports whether a composed report is open.
func (s State) CanExport() bool {
	return s.Report != nil
}

// Event is an input to Transition.
type Event interface {
	event()
}

// Reset clears the workflow.
type Reset struct{}

// Upload replaces the image with a validated upload.
type Upload struct {
	Image models.ImageRef
}

// RejectUpload records an invalid selection.
type RejectUpload struct {
	Message string
}

// PredictStart marks a prediction request as in flight. The new request id
// is State.Request of the returned state.
type PredictStart struct{}

// PredictSuccess stores the result of the in-flight request.
type PredictSuccess struct {
	Request uint64
	Result  models.PredictionResult
}

// PredictFailure records a failed request.
type PredictFailure struct {
	Request uint64
	Message string
}

// ComposeReport builds a report from the submitted patient.
type ComposeReport struct {
	Patient models.PatientInfo
	Now     time.Time
	IDs     report.IDGenerator
}

// CloseReport discards the open report.
type CloseReport struct{}

func (Reset) event()          {}
func (Upload) event()         {}
func (RejectUpload) event()   {}
func (PredictStart) event()   {}
func (PredictSuccess) event() {}
func (PredictFailure) event() {}
func (ComposeReport) event()  {}
func (CloseReport) event()    {}

// Transition applies ev to s. On error s is returned unchanged.
func Transition(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case Reset:
		return State{Request: s.Request + 1}, nil

	case Upload:
		if s.Loading {
			return s, ErrBusy
		}
		img := e.Image
		s.Image = &img
		s.Prediction = nil
		s.Report = nil
		s.Error = ""
		return s, nil

	case RejectUpload:
		s.Error = e.Message
		return s, nil

	case PredictStart:
		if s.Loading {
			return s, ErrBusy
		}
		if s.Image == nil {
			return s, ErrNoImage
		}
		s.Loading = true
		s.Request++
		s.Error = ""
		return s, nil

	case PredictSuccess:
		if !s.Loading || e.Request != s.Request {
			return s, ErrNotLoading
		}
		res := e.Result
		s.Prediction = &res
		s.Loading = false
		return s, nil

	case PredictFailure:
		if !s.Loading || e.Request != s.Request {
			return s, ErrNotLoading
		}
		s.Error = e.Message
		s.Loading = false
		return s, nil

	case ComposeReport:
		if !s.CanGenerateReport() {
			return s, ErrReportUnavailable
		}
		r, err := report.Compose(e.Patient, s.Image, s.Prediction, e.Now, e.IDs)
		if err != nil {
			return s, err
		}
		s.Report = r
		return s, nil

	case CloseReport:
		s.Report = nil
		return s, nil
	}

	return s, ErrUnknownEvent
}
