package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/ulle78/DeepMSI/pkg/models"
)

// ProgressEvent is a single progress update during a run.
type ProgressEvent struct {
	Type       string                   `json:"type"`              // "step", "info", "result", "done", "error"
	Step       int                      `json:"step,omitempty"`    // current stage
	MaxStep    int                      `json:"max,omitempty"`     // number of stages
	Message    string                   `json:"message,omitempty"` // human-readable message
	LatencyMs  int                      `json:"latencyMs,omitempty"`
	Prediction *models.PredictionResult `json:"prediction,omitempty"`
	ReportID   string                   `json:"reportId,omitempty"`
	Filename   string                   `json:"filename,omitempty"` // exported artifact
}

// ProgressEmitter receives progress events.
type ProgressEmitter interface {
	Emit(event ProgressEvent)
}

// TextEmitter formats progress events as human-readable text for CLI output.
type TextEmitter struct {
	W io.Writer
}

// Emit writes a formatted progress line to the underlying writer.
func (e *TextEmitter) Emit(ev ProgressEvent) {
	switch ev.Type {
	case "step":
		fmt.Fprintf(e.W, "[step %d/%d] %s\n", ev.Step, ev.MaxStep, ev.Message)
	case "result":
		if ev.Prediction != nil {
			fmt.Fprintf(e.W, "[step %d/%d]   %s (%.1f%%) in %s\n",
				ev.Step, ev.MaxStep, ev.Prediction.Class, ev.Prediction.Probability*100, formatDuration(ev.LatencyMs))
		}
	case "info":
		fmt.Fprintf(e.W, "  %s\n", ev.Message)
	case "done":
		if ev.Filename != "" {
			fmt.Fprintf(e.W, "Report exported as %s\n", ev.Filename)
		}
	case "error":
		fmt.Fprintf(e.W, "Error: %s\n", ev.Message)
	}
}

func formatDuration(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

func sinceMs(start time.Time) int {
	return int(time.Since(start) / time.Millisecond)
}

func emit(e ProgressEmitter, ev ProgressEvent) {
	if e != nil {
		e.Emit(ev)
	}
}
