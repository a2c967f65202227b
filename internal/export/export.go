// Package export turns a composed report into a downloadable PDF.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ulle78/DeepMSI/internal/browser"
	"github.com/ulle78/DeepMSI/pkg/models"
)

// Strategy names an export method.
type Strategy string

const (
	StrategySnapshot Strategy = "snapshot"
	StrategyVector   Strategy = "vector"
)

// Strategies lists the accepted strategies.
var Strategies = []Strategy{StrategySnapshot, StrategyVector}

// ContentType is the MIME type of every exported artifact.
const ContentType = "application/pdf"

var (
	ErrUnknownStrategy = errors.New("unknown export strategy")
	ErrNoReport        = errors.New("no report to export")
	ErrNoCapturer      = errors.New("snapshot export needs a capturer")
)

// Artifact is a finished export.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// WriteTo writes the artifact bytes to w.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.Data)
	return int64(n), err
}

// Exporter produces an artifact from a report.
type Exporter interface {
	Export(ctx context.Context, r *models.ReportData) (*Artifact, error)
}

// Options carries the collaborators shared by both strategies.
type Options struct {
	Capturer browser.Capturer
	Now      func() time.Time
	Logger   *logrus.Logger
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

// ParseStrategy accepts a strategy name, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Strategies {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// New returns the exporter for strategy.
func New(strategy Strategy, opts Options) (Exporter, error) {
	switch strategy {
	case StrategySnapshot:
		if opts.Capturer == nil {
			return nil, ErrNoCapturer
		}
		return &SnapshotExporter{opts: opts}, nil
	case StrategyVector:
		return &VectorExporter{opts: opts}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

func logFailure(log *logrus.Logger, strategy Strategy, r *models.ReportData, err error) {
	log.WithFields(logrus.Fields{
		"strategy":  strategy,
		"report_id": r.ID,
	}).WithError(err).Error("report export failed")
}
