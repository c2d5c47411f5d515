package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dgallion1/slidegen/internal/slidestream"
)

// sseSink writes each event as one "data:" frame and flushes it.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// startSSE writes the event-stream headers and returns a sink for the body.
// It fails if w cannot flush.
func startSSE(w http.ResponseWriter, generationID string) (*sseSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	if generationID != "" {
		h.Set("X-Generation-ID", generationID)
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseSink{w: w, flusher: flusher}, nil
}

func (s *sseSink) Send(_ context.Context, ev slidestream.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
