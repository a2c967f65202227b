// Package app wires configuration into the prediction client, exporters and
// the HTTP server shared by the CLI and the standalone server binary.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ulle78/DeepMSI/internal/browser"
	"github.com/ulle78/DeepMSI/internal/config"
	"github.com/ulle78/DeepMSI/internal/export"
	"github.com/ulle78/DeepMSI/internal/predict"
	"github.com/ulle78/DeepMSI/internal/web"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = 5 * time.Minute
)

// NewPredictClient builds the inference client from cfg.
func NewPredictClient(cfg *config.Config, log *logrus.Logger) *predict.Client {
	return predict.NewClient(predict.Config{
		URL:             cfg.Predict.URL,
		Timeout:         cfg.Predict.Timeout,
		RateLimit:       cfg.Predict.RateLimit,
		BreakerFailures: cfg.Predict.BreakerFailures,
		BreakerTimeout:  cfg.Predict.BreakerTimeout,
		Logger:          log,
	})
}

// NewExporter builds the exporter for strategy.
func NewExporter(cfg *config.Config, strategy export.Strategy, log *logrus.Logger) (export.Exporter, error) {
	return export.New(strategy, exportOptions(cfg, log))
}

// NewExporters builds one exporter per strategy.
func NewExporters(cfg *config.Config, log *logrus.Logger) (map[export.Strategy]export.Exporter, error) {
	out := make(map[export.Strategy]export.Exporter, len(export.Strategies))
	for _, s := range export.Strategies {
		e, err := export.New(s, exportOptions(cfg, log))
		if err != nil {
			return nil, err
		}
		out[s] = e
	}
	return out, nil
}

func exportOptions(cfg *config.Config, log *logrus.Logger) export.Options {
	return export.Options{
		Capturer: browser.NewChromium(browser.Options{
			ScaleFactor:   cfg.Export.DeviceScaleFactor,
			ViewportWidth: cfg.Export.ViewportWidth,
		}),
		Logger: log,
	}
}

// NewServer assembles the UI handler and its http.Server.
func NewServer(cfg *config.Config, log *logrus.Logger) (*http.Server, *web.Server, error) {
	exporters, err := NewExporters(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	strategy, err := export.ParseStrategy(cfg.Export.Strategy)
	if err != nil {
		return nil, nil, err
	}

	handler := web.NewServer(web.Config{
		Predictor:       NewPredictClient(cfg, log),
		Exporters:       exporters,
		DefaultStrategy: strategy,
		MaxUploadBytes:  cfg.Upload.MaxBytes,
		Logger:          log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return httpServer, handler, nil
}

// Serve runs the UI server until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	httpServer, handler, err := NewServer(cfg, log)
	if err != nil {
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go handler.Sweep(sweepCtx, sweepInterval)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", httpServer.Addr).Info("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
