package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ulle78/DeepMSI/pkg/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1000, "1.0s"},
		{3200, "3.2s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.ms), "formatDuration(%d)", tt.ms)
	}
}

func TestTextEmitter(t *testing.T) {
	tests := []struct {
		name string
		ev   ProgressEvent
		want string
	}{
		{"step", ProgressEvent{Type: "step", Step: 1, MaxStep: 3, Message: "Reading slide.png"}, "[step 1/3] Reading slide.png\n"},
		{"result", ProgressEvent{Type: "result", Step: 2, MaxStep: 3, LatencyMs: 1500,
			Prediction: &models.PredictionResult{Class: models.ClassMSS, Probability: 0.82}}, "[step 2/3]   MSS (82.0%) in 1.5s\n"},
		{"info", ProgressEvent{Type: "info", Message: "Report HS-AB12CD"}, "  Report HS-AB12CD\n"},
		{"done with file", ProgressEvent{Type: "done", Filename: "histopath_report_x.pdf"}, "Report exported as histopath_report_x.pdf\n"},
		{"done", ProgressEvent{Type: "done"}, ""},
		{"error", ProgressEvent{Type: "error", Message: "boom"}, "Error: boom\n"},
		{"unknown", ProgressEvent{Type: "other"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			(&TextEmitter{W: &buf}).Emit(tt.ev)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
