package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"time"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ulle78/DeepMSI/internal/report"
	"github.com/ulle78/DeepMSI/pkg/models"
)

// A4 portrait layout, in mm.
const (
	a4Width     = 210.0
	marginLeft  = 20.0
	resultsLeft = 110.0
	fontFamily  = "Helvetica"
)

// Disclaimer is printed at the foot of every vector report.
const Disclaimer = "This is an AI-assisted analysis and should be reviewed by a qualified healthcare professional."

// VectorExporter lays the report out directly on an A4 page.
type VectorExporter struct {
	opts Options
}

// VectorFilename names a vector export by its local timestamp.
func VectorFilename(t time.Time) string {
	return "histopath_report_" + t.Format("20060102_150405") + ".pdf"
}

// Export implements Exporter.
func (e *VectorExporter) Export(ctx context.Context, r *models.ReportData) (*Artifact, error) {
	if r == nil {
		return nil, ErrNoReport
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := e.opts.now()

	data, err := vectorPDF(r, now)
	if err != nil {
		logFailure(e.opts.logger(), StrategyVector, r, err)
		return nil, err
	}

	return &Artifact{
		Filename:    VectorFilename(now),
		ContentType: ContentType,
		Data:        data,
	}, nil
}

func vectorPDF(r *models.ReportData, now time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	stampDeterministic(pdf, now)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := "Histopathological Analysis Report"
	pdf.SetFont(fontFamily, "B", 20)
	pdf.Text((a4Width-pdf.GetStringWidth(title))/2, 20, title)

	pdf.SetFont(fontFamily, "", 10)
	pdf.Text(marginLeft, 30, "Report Date: "+r.Date)
	pdf.Text(marginLeft, 35, "Report ID: "+r.ID)

	pdf.SetFont(fontFamily, "B", 12)
	pdf.Text(marginLeft, 45, "Patient Information")

	pdf.SetFont(fontFamily, "", 10)
	lines(pdf, marginLeft, 55, 10, []string{
		tr("Patient Name: " + r.Patient.Name),
		fmt.Sprintf("Age: %d years", r.Patient.Age),
		tr("Gender: " + string(r.Patient.Gender)),
		tr("Clinical History: " + r.Patient.ClinicalHistory),
	})

	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, 85, a4Width-marginLeft, 85)

	if len(r.Image.Data) > 0 {
		img, imageType, err := pdfImage(r.Image)
		if err != nil {
			return nil, err
		}
		opts := fpdf.ImageOptions{ImageType: imageType}
		pdf.RegisterImageOptionsReader("analysis", opts, bytes.NewReader(img))
		pdf.ImageOptions("analysis", marginLeft, 95, 80, 80, false, opts, 0, "")
	}

	pdf.SetFont(fontFamily, "B", 12)
	pdf.Text(resultsLeft, 100, "AI Analysis Results")

	pdf.SetFont(fontFamily, "", 10)
	lines(pdf, resultsLeft, 110, 10, []string{
		"Classification: " + string(r.Prediction.Class),
		fmt.Sprintf("Confidence Score: %.1f%%", report.ConfidencePercent(r.Prediction.Probability)),
		"Analysis Timestamp: " + report.FormatTimestamp(r.CreatedAt),
	})

	pdf.SetFont(fontFamily, "", 8)
	pdf.Text(marginLeft, 280, Disclaimer)

	return output(pdf)
}

// lines prints text one line per entry with a 1.15 line height.
func lines(pdf *fpdf.Fpdf, x, y, fontSize float64, text []string) {
	step := fontSize * 1.15 * 25.4 / 72
	for i, s := range text {
		pdf.Text(x, y+float64(i)*step, s)
	}
}

// pdfImage returns image bytes fpdf can embed, converting to PNG if needed.
func pdfImage(img models.ImageRef) ([]byte, string, error) {
	switch img.MIME {
	case "image/jpeg":
		return img.Data, "JPG", nil
	case "image/png":
		return img.Data, "PNG", nil
	case "image/gif":
		return img.Data, "GIF", nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s image: %w", img.MIME, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, "", fmt.Errorf("failed to convert image: %w", err)
	}
	return buf.Bytes(), "PNG", nil
}
