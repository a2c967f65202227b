package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/ulle78/DeepMSI/internal/render"
	"github.com/ulle78/DeepMSI/pkg/models"
)

// snapshotPageWidth is the page width in mm; the height follows the capture.
const snapshotPageWidth = 210.0

// SnapshotExporter rasterizes the rendered report and wraps it in a PDF page.
type SnapshotExporter struct {
	opts Options
}

// SnapshotFilename names a snapshot export by its UTC date.
func SnapshotFilename(t time.Time) string {
	return "histopath_report_" + t.UTC().Format("2006-01-02") + ".pdf"
}

// Export implements Exporter.
func (e *SnapshotExporter) Export(ctx context.Context, r *models.ReportData) (*Artifact, error) {
	if r == nil {
		return nil, ErrNoReport
	}
	now := e.opts.now()

	a, err := e.export(ctx, r, now)
	if err != nil {
		logFailure(e.opts.logger(), StrategySnapshot, r, err)
		return nil, err
	}
	return a, nil
}

func (e *SnapshotExporter) export(ctx context.Context, r *models.ReportData, now time.Time) (*Artifact, error) {
	html, err := render.HTML(r, now)
	if err != nil {
		return nil, err
	}

	png, err := e.opts.Capturer.Capture(ctx, html, "#"+render.RootID)
	if err != nil {
		return nil, fmt.Errorf("failed to capture report: %w", err)
	}

	data, err := snapshotPDF(png, now)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Filename:    SnapshotFilename(now),
		ContentType: ContentType,
		Data:        data,
	}, nil
}

func snapshotPDF(png []byte, now time.Time) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("invalid capture: %w", err)
	}
	if format != "png" || cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("invalid capture: %s %dx%d", format, cfg.Width, cfg.Height)
	}

	height := snapshotPageWidth * float64(cfg.Height) / float64(cfg.Width)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: snapshotPageWidth, Ht: height},
	})
	stampDeterministic(pdf, now)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("report", opts, bytes.NewReader(png))
	pdf.ImageOptions("report", 0, 0, snapshotPageWidth, height, false, opts, 0, "")

	return output(pdf)
}

func stampDeterministic(pdf *fpdf.Fpdf, now time.Time) {
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("DeepMSI", true)
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
