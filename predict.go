package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ulle78/DeepMSI/internal/app"
	"github.com/ulle78/DeepMSI/internal/pipeline"
	"github.com/ulle78/DeepMSI/internal/report"
	"github.com/ulle78/DeepMSI/pkg/models"
)

var jsonOutput bool

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Classify a histopathology image",
	Args:  cobra.ExactArgs(1),
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig("warn")
	if err != nil {
		return err
	}

	stop := startSpinner(os.Stderr, " Analyzing "+args[0])
	res, err := pipeline.Run(cmd.Context(), pipeline.Params{
		ImagePath: args[0],
		MaxBytes:  cfg.Upload.MaxBytes,
		Predictor: app.NewPredictClient(cfg, log),
	})
	stop()
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(res.Prediction)
	}
	printPrediction(os.Stderr, os.Stdout, res.Prediction)
	return nil
}

func printPrediction(stderr, stdout io.Writer, p *models.PredictionResult) {
	fmt.Fprintln(stderr)
	dim := color.New(color.FgHiBlack)
	_, _ = dim.Fprintln(stderr, "  "+strings.Repeat("━", 50))
	printConfidenceBar(stderr, report.ConfidencePercent(p.Probability))
	fmt.Fprintln(stderr)

	label := color.New(color.Bold, color.FgBlue)
	if p.Class == models.ClassMSIMUT {
		label = color.New(color.Bold, color.FgGreen)
	}
	_, _ = label.Fprintln(stdout, p.Class.Label())
}

func printConfidenceBar(w io.Writer, percent float64) {
	const barWidth = 24
	filled := int(percent) * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}

	var barColor *color.Color
	switch {
	case percent >= 80:
		barColor = color.New(color.FgGreen)
	case percent >= 60:
		barColor = color.New(color.FgYellow)
	default:
		barColor = color.New(color.FgRed)
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(w, "  Confidence: %.1f%% ", percent)
	_, _ = barColor.Fprintln(w, bar)
}

// startSpinner shows a spinner on w when it is a terminal. The returned
// func stops it.
func startSpinner(w *os.File, suffix string) func() {
	if !isatty.IsTerminal(w.Fd()) && !isatty.IsCygwinTerminal(w.Fd()) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}
