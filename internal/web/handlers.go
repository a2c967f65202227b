package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ulle78/DeepMSI/internal/export"
	"github.com/ulle78/DeepMSI/internal/intake"
	"github.com/ulle78/DeepMSI/internal/pipeline"
	"github.com/ulle78/DeepMSI/internal/predict"
	"github.com/ulle78/DeepMSI/internal/render"
	"github.com/ulle78/DeepMSI/internal/upload"
	"github.com/ulle78/DeepMSI/internal/workflow"
	"github.com/ulle78/DeepMSI/pkg/models"
)

// multipartOverhead allows for boundaries and headers around the image part.
const multipartOverhead = 1 << 20

// stateView is the JSON shape of a session's view state.
type stateView struct {
	Image             *string                  `json:"image"`
	Prediction        *models.PredictionResult `json:"prediction"`
	Loading           bool                     `json:"loading"`
	Error             string                   `json:"error,omitempty"`
	Report            *models.ReportData       `json:"report"`
	CanPredict        bool                     `json:"canPredict"`
	CanGenerateReport bool                     `json:"canGenerateReport"`
	CanExport         bool                     `json:"canExport"`
	FormOpen          bool                     `json:"formOpen"`
}

type errorView struct {
	Error  string              `json:"error"`
	Fields []intake.FieldError `json:"fields,omitempty"`
	State  stateView           `json:"state"`
}

func viewOf(st workflow.State) stateView {
	v := stateView{
		Prediction:        st.Prediction,
		Loading:           st.Loading,
		Error:             st.Error,
		Report:            st.Report,
		CanPredict:        st.CanPredict(),
		CanGenerateReport: st.CanGenerateReport(),
		CanExport:         st.CanExport(),
	}
	if st.Image != nil {
		u := st.Image.DataURL()
		v.Image = &u
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}

	if hc, ok := s.predictor.(HealthChecker); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		hs, err := hc.Health(ctx)
		if err != nil {
			resp["inference"] = map[string]string{"status": "unavailable", "error": err.Error()}
		} else {
			resp["inference"] = hs
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	v := viewOf(s.sessions.Get(id))
	v.FormOpen = s.sessions.FormOpen(id)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+multipartOverhead)
	img, err := s.readUpload(r)
	if err != nil {
		s.log.WithField("session", id).WithError(err).Info("upload rejected")
		st, _ := s.sessions.Apply(id, workflow.RejectUpload{Message: upload.Message})
		writeJSON(w, http.StatusBadRequest, errorView{Error: upload.Message, State: viewOf(st)})
		return
	}

	st, err := s.sessions.Apply(id, workflow.Upload{Image: img})
	if err != nil {
		writeJSON(w, http.StatusConflict, errorView{Error: err.Error(), State: viewOf(st)})
		return
	}

	writeJSON(w, http.StatusOK, viewOf(st))
}

func (s *Server) readUpload(r *http.Request) (models.ImageRef, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return models.ImageRef{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return models.ImageRef{}, err
	}
	return upload.Validate(header.Filename, data, s.maxBytes)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)

	st, err := s.sessions.Apply(id, workflow.PredictStart{})
	if err != nil {
		writeJSON(w, http.StatusConflict, errorView{Error: err.Error(), State: viewOf(st)})
		return
	}
	img, req := *st.Image, st.Request

	var emitter *SSEEmitter
	if wantsEventStream(r) {
		emitter = startEventStream(w)
	}
	emitEvent := func(ev pipeline.ProgressEvent) {
		if emitter != nil {
			emitter.Emit(ev)
		}
	}
	emitEvent(pipeline.ProgressEvent{Type: "step", Step: 1, MaxStep: 1, Message: "Running prediction..."})

	start := time.Now()
	res, err := s.predict(r.Context(), img)
	log := s.log.WithFields(logrus.Fields{
		"session": id,
		"latency": time.Since(start).Round(time.Millisecond).String(),
	})

	if err != nil {
		log.WithError(err).Warn("prediction request failed")
		st, _ = s.sessions.Apply(id, workflow.PredictFailure{Request: req, Message: predict.UserMessage})
		if emitter != nil {
			emitEvent(pipeline.ProgressEvent{Type: "error", Message: predict.UserMessage})
			return
		}
		writeJSON(w, http.StatusBadGateway, errorView{Error: predict.UserMessage, State: viewOf(st)})
		return
	}

	st, err = s.sessions.Apply(id, workflow.PredictSuccess{Request: req, Result: *res})
	if err != nil {
		// Superseded by a reset or a newer request.
		log.WithError(err).Info("prediction result discarded")
		if emitter != nil {
			emitEvent(pipeline.ProgressEvent{Type: "error", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusConflict, errorView{Error: err.Error(), State: viewOf(st)})
		return
	}

	if emitter != nil {
		emitEvent(pipeline.ProgressEvent{Type: "done", Prediction: st.Prediction, LatencyMs: int(time.Since(start) / time.Millisecond)})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

func (s *Server) predict(ctx context.Context, img models.ImageRef) (*models.PredictionResult, error) {
	if s.predictor == nil {
		return nil, errors.New("no predictor configured")
	}
	return s.predictor.Predict(ctx, img)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	st, _ := s.sessions.Apply(id, workflow.Reset{})
	writeJSON(w, http.StatusOK, viewOf(st))
}

func (s *Server) handleOpenForm(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)

	st, err := s.sessions.OpenForm(id, func(p models.PatientInfo) workflow.Event {
		return workflow.ComposeReport{Patient: p, Now: s.now(), IDs: s.ids}
	})
	if err != nil {
		writeJSON(w, http.StatusConflict, errorView{Error: err.Error(), State: viewOf(st)})
		return
	}

	v := viewOf(st)
	v.FormOpen = true
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCancelForm(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	writeJSON(w, http.StatusOK, viewOf(s.sessions.CancelForm(id)))
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)

	values, err := patientValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := s.sessions.SubmitForm(id, values)
	if err != nil {
		var verrs intake.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			v := viewOf(st)
			v.FormOpen = true
			writeJSON(w, http.StatusBadRequest, errorView{Error: "invalid patient details", Fields: verrs, State: v})
		case errors.Is(err, intake.ErrClosed), errors.Is(err, workflow.ErrReportUnavailable):
			writeJSON(w, http.StatusConflict, errorView{Error: err.Error(), State: viewOf(st)})
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.log.WithFields(logrus.Fields{
		"session":   id,
		"report_id": st.Report.ID,
	}).Info("report composed")
	writeJSON(w, http.StatusCreated, viewOf(st))
}

// patientValues accepts form-encoded, multipart or JSON patient details.
func patientValues(r *http.Request) (url.Values, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		var body struct {
			Name            string          `json:"name"`
			Age             json.RawMessage `json:"age"`
			Gender          string          `json:"gender"`
			ClinicalHistory string          `json:"clinicalHistory"`
		}
		if err := readJSON(r, &body); err != nil {
			return nil, err
		}
		return url.Values{
			intake.FieldName:            {body.Name},
			intake.FieldAge:             {rawNumber(body.Age)},
			intake.FieldGender:          {body.Gender},
			intake.FieldClinicalHistory: {body.ClinicalHistory},
		}, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	default:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}
}

// rawNumber accepts both 54 and "54".
func rawNumber(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	st := s.sessions.Get(id)
	if st.Report == nil {
		writeError(w, http.StatusNotFound, "no report has been generated")
		return
	}

	html, err := render.HTML(st.Report, s.now())
	if err != nil {
		s.log.WithError(err).Error("report render failed")
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

func (s *Server) handleCloseReport(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	st, _ := s.sessions.Apply(id, workflow.CloseReport{})
	writeJSON(w, http.StatusOK, viewOf(st))
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	st := s.sessions.Get(id)
	if st.Report == nil {
		writeError(w, http.StatusConflict, "no report to export")
		return
	}

	strategy := s.defaultStrategy
	if q := r.URL.Query().Get("strategy"); q != "" {
		parsed, err := export.ParseStrategy(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		strategy = parsed
	}

	exporter, ok := s.exporters[strategy]
	if !ok {
		writeError(w, http.StatusBadRequest, "export strategy not available: "+string(strategy))
		return
	}

	art, err := exporter.Export(r.Context(), st.Report)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session":  id,
			"strategy": strategy,
		}).WithError(err).Error("export request failed")
		writeError(w, http.StatusInternalServerError, "failed to export report: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = art.WriteTo(w)
}
