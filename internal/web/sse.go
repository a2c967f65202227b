package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ulle78/DeepMSI/internal/pipeline"
)

// SSEEmitter implements pipeline.ProgressEmitter by writing Server-Sent Events.
type SSEEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEEmitter creates an SSEEmitter for the given ResponseWriter.
// Returns nil if the writer does not support flushing.
func NewSSEEmitter(w http.ResponseWriter) *SSEEmitter {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	return &SSEEmitter{w: w, flusher: f}
}

// Emit writes a progress event as an SSE data line and flushes.
func (e *SSEEmitter) Emit(ev pipeline.ProgressEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(e.w, "data: %s\n\n", data)
	e.flusher.Flush()
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// startEventStream switches w to SSE. It returns nil when streaming is unsupported.
func startEventStream(w http.ResponseWriter) *SSEEmitter {
	emitter := NewSSEEmitter(w)
	if emitter == nil {
		return nil
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return emitter
}
