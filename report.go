package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ulle78/DeepMSI/internal/app"
	"github.com/ulle78/DeepMSI/internal/export"
	"github.com/ulle78/DeepMSI/internal/intake"
	"github.com/ulle78/DeepMSI/internal/pipeline"
)

var (
	patientName    string
	patientAge     string
	patientGender  string
	patientHistory string
	reportStrategy string
	reportOut      string
)

var reportCmd = &cobra.Command{
	Use:   "report <image>",
	Short: "Classify an image and export a patient report as PDF",
	Example: `  deepmsi report tile.png --name "Jane Doe" --age 54 --gender Female --history "none"
  deepmsi report tile.png --name "Jane Doe" --age 54 --gender Female --history "none" --strategy snapshot --out reports/`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&patientName, "name", "", "Patient name")
	reportCmd.Flags().StringVar(&patientAge, "age", "", "Patient age in years")
	reportCmd.Flags().StringVar(&patientGender, "gender", "", "Patient gender (Male, Female, Other)")
	reportCmd.Flags().StringVar(&patientHistory, "history", "", "Clinical history")
	reportCmd.Flags().StringVar(&reportStrategy, "strategy", "", "Export strategy (snapshot, vector); defaults to export.strategy")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", ".", "Output file or directory")
}

func runReport(cmd *cobra.Command, args []string) error {
	patient, err := intake.Parse(url.Values{
		intake.FieldName:            {patientName},
		intake.FieldAge:             {patientAge},
		intake.FieldGender:          {patientGender},
		intake.FieldClinicalHistory: {patientHistory},
	})
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig("warn")
	if err != nil {
		return err
	}

	name := reportStrategy
	if name == "" {
		name = cfg.Export.Strategy
	}
	strategy, err := export.ParseStrategy(name)
	if err != nil {
		return err
	}
	exporter, err := app.NewExporter(cfg, strategy, log)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(cmd.Context(), pipeline.Params{
		ImagePath: args[0],
		MaxBytes:  cfg.Upload.MaxBytes,
		Patient:   &patient,
		Predictor: app.NewPredictClient(cfg, log),
		Exporter:  exporter,
		Emitter:   &pipeline.TextEmitter{W: os.Stderr},
	})
	if err != nil {
		return err
	}

	path := outputPath(reportOut, res.Artifact.Filename)
	if err := os.WriteFile(path, res.Artifact.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	printPrediction(os.Stderr, os.Stdout, res.Prediction)
	fmt.Fprintf(os.Stdout, "%s %s\n", res.Report.ID, path)
	return nil
}

// outputPath treats out as a directory when it exists as one or ends in a
// separator, and as a file path otherwise.
func outputPath(out, filename string) string {
	if out == "" {
		return filename
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, filename)
	}
	if os.IsPathSeparator(out[len(out)-1]) {
		_ = os.MkdirAll(out, 0o755)
		return filepath.Join(out, filename)
	}
	return out
}
