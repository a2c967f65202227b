// Package web serves the classifier UI and its JSON API.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ulle78/DeepMSI/internal/export"
	"github.com/ulle78/DeepMSI/internal/predict"
	"github.com/ulle78/DeepMSI/internal/report"
	"github.com/ulle78/DeepMSI/internal/upload"
	"github.com/ulle78/DeepMSI/pkg/models"
)

//go:embed static
var staticFiles embed.FS

// Predictor classifies an uploaded image.
type Predictor interface {
	Predict(ctx context.Context, img models.ImageRef) (*models.PredictionResult, error)
}

// HealthChecker is implemented by predictors that can report inference health.
type HealthChecker interface {
	Health(ctx context.Context) (*predict.HealthStatus, error)
}

// Config holds web server dependencies.
type Config struct {
	Predictor       Predictor
	Exporters       map[export.Strategy]export.Exporter
	DefaultStrategy export.Strategy
	MaxUploadBytes  int64
	SessionTTL      time.Duration
	Logger          *logrus.Logger
	Now             func() time.Time
	IDs             report.IDGenerator
}

// Server is the UI and API handler.
type Server struct {
	predictor       Predictor
	exporters       map[export.Strategy]export.Exporter
	defaultStrategy export.Strategy
	maxBytes        int64
	sessions        *Store
	log             *logrus.Logger
	now             func() time.Time
	ids             report.IDGenerator
	mux             *http.ServeMux
}

// NewServer creates a server with all routes registered.
func NewServer(cfg Config) *Server {
	s := &Server{
		predictor:       cfg.Predictor,
		exporters:       cfg.Exporters,
		defaultStrategy: cfg.DefaultStrategy,
		maxBytes:        cfg.MaxUploadBytes,
		sessions:        NewStore(cfg.SessionTTL),
		log:             cfg.Logger,
		now:             cfg.Now,
		ids:             cfg.IDs,
		mux:             http.NewServeMux(),
	}
	if s.maxBytes <= 0 {
		s.maxBytes = upload.DefaultMaxBytes
	}
	if s.defaultStrategy == "" {
		s.defaultStrategy = export.StrategyVector
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	staticFS, _ := fs.Sub(staticFiles, "static")
	s.mux.Handle("GET /", http.FileServer(http.FS(staticFS)))

	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/predict", s.handlePredict)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)

	s.mux.HandleFunc("POST /api/report/form", s.handleOpenForm)
	s.mux.HandleFunc("DELETE /api/report/form", s.handleCancelForm)
	s.mux.HandleFunc("POST /api/report", s.handleCreateReport)
	s.mux.HandleFunc("GET /api/report", s.handleGetReport)
	s.mux.HandleFunc("DELETE /api/report", s.handleCloseReport)
	s.mux.HandleFunc("GET /api/report/pdf", s.handleExportReport)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	s.log.WithFields(logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"status":   rec.status,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Debug("request handled")
}

// Sweep drops sessions idle for longer than the configured TTL every interval
// until ctx is done.
func (s *Server) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(); n > 0 {
				s.log.WithField("sessions", n).Debug("expired idle sessions")
			}
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent events working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
