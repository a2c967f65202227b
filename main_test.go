package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulle78/DeepMSI/pkg/models"
)

func init() {
	color.NoColor = true
}

func TestPrintPrediction_MSS(t *testing.T) {
	var stderr, stdout bytes.Buffer
	printPrediction(&stderr, &stdout, &models.PredictionResult{Class: models.ClassMSS, Probability: 0.82})

	assert.Contains(t, stderr.String(), "━")
	assert.Contains(t, stderr.String(), "Confidence: 82.0%")
	assert.Equal(t, "Microsatellite Stable (MSS)\n", stdout.String())
}

func TestPrintPrediction_MSIMUT(t *testing.T) {
	var stderr, stdout bytes.Buffer
	printPrediction(&stderr, &stdout, &models.PredictionResult{Class: models.ClassMSIMUT, Probability: 0.61})

	assert.Contains(t, stderr.String(), "Confidence: 61.0%")
	assert.Equal(t, "Microsatellite Instability (MSIMUT)\n", stdout.String())
}

func TestPrintConfidenceBar_Full(t *testing.T) {
	var buf bytes.Buffer
	printConfidenceBar(&buf, 100)

	out := buf.String()
	assert.Contains(t, out, "Confidence: 100.0%")
	assert.Contains(t, out, "████████████████████████")
	assert.NotContains(t, out, "░")
}

func TestPrintConfidenceBar_Half(t *testing.T) {
	var buf bytes.Buffer
	printConfidenceBar(&buf, 50)

	out := buf.String()
	assert.Contains(t, out, "Confidence: 50.0%")
	assert.Contains(t, out, "████████████░░░░░░░░░░░░")
}

func TestPrintConfidenceBar_Empty(t *testing.T) {
	var buf bytes.Buffer
	printConfidenceBar(&buf, 0)

	assert.Contains(t, buf.String(), "░░░░░░░░░░░░░░░░░░░░░░░░")
	assert.NotContains(t, buf.String(), "█")
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, filepath.Join(dir, "r.pdf"), outputPath(dir, "r.pdf"))
	assert.Equal(t, "custom.pdf", outputPath("custom.pdf", "r.pdf"))
	assert.Equal(t, "r.pdf", outputPath("", "r.pdf"))

	nested := filepath.Join(dir, "reports") + string(os.PathSeparator)
	assert.Equal(t, filepath.Join(dir, "reports", "r.pdf"), outputPath(nested, "r.pdf"))
	info, err := os.Stat(filepath.Join(dir, "reports"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStartSpinnerNonTTY(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	stop := startSpinner(f, " working")
	stop()

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"predict", "report", "serve", "config", "install-browser", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestReportRejectsInvalidPatient(t *testing.T) {
	patientName, patientAge, patientGender, patientHistory = "Jane Doe", "abc", "Female", "none"
	t.Cleanup(func() { patientName, patientAge, patientGender, patientHistory = "", "", "", "" })

	err := runReport(reportCmd, []string{"tile.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "age")
}
