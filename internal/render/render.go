// Package render turns a composed report into a standalone HTML document.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/ulle78/DeepMSI/internal/report"
	"github.com/ulle78/DeepMSI/pkg/models"
)

// RootID is the element id wrapping the printable report.
const RootID = "report-content"

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTmpl = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// ErrNilReport is returned when there is nothing to render.
var ErrNilReport = errors.New("no report to render")

type view struct {
	RootID      string
	ID          string
	Date        string
	Patient     models.PatientInfo
	Class       models.PredictionClass
	Label       string
	Positive    bool
	Confidence  string
	BarWidth    template.CSS
	ImageSrc    template.URL
	GeneratedAt string
}

// HTML renders r. now stamps the footer's generation time.
func HTML(r *models.ReportData, now time.Time) ([]byte, error) {
	if r == nil {
		return nil, ErrNilReport
	}

	pct := report.ConfidencePercent(r.Prediction.Probability)
	v := view{
		RootID:      RootID,
		ID:          r.ID,
		Date:        r.Date,
		Patient:     r.Patient,
		Class:       r.Prediction.Class,
		Label:       r.Prediction.Class.Label(),
		Positive:    r.Prediction.Class == models.ClassMSIMUT,
		Confidence:  fmt.Sprintf("%.1f%%", pct),
		BarWidth:    template.CSS(fmt.Sprintf("width: %.1f%%", pct)),
		GeneratedAt: report.FormatTimestamp(now),
	}
	if len(r.Image.Data) > 0 {
		v.ImageSrc = template.URL(r.Image.DataURL())
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}
