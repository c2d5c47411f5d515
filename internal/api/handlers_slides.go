package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/slidegen/internal/prompt"
	"github.com/dgallion1/slidegen/internal/slidestream"
)

// handleParse replays a recorded completion through the parser and streams
// the resulting events. The body is the raw completion text.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	chunk := 64
	if v := r.URL.Query().Get("chunk"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "chunk must be a positive integer", http.StatusBadRequest)
			return
		}
		chunk = n
	}

	// The body is read in full before responding: HTTP/1.x does not allow
	// reading the request once the response has started.
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("body exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	var pacer slidestream.Pacer = slidestream.NoPacer{}
	if r.URL.Query().Get("pace") == "true" {
		pacer = slidestream.SleepPacer{CharacterDelay: s.cfg.CharacterDelay, SlideDelay: s.cfg.SlideDelay}
	}

	g, ctx, err := s.generations.Begin(r.Context(), r.URL.Query().Get("topic"), "replay")
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.stream(ctx, w, g, slidestream.NewReaderSource(bytes.NewReader(body), chunk), pacer)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(prompt.Schema())
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Normalize Windows separators, then keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
