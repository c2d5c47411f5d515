package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/slidegen/internal/generation"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	g := s.generations.Get(chi.URLParam(r, "generationID"))
	if g == nil {
		jsonError(w, "generation not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g.Snapshot())
}

func (s *Server) handleCancelGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "generationID")
	switch err := s.generations.Cancel(id); {
	case errors.Is(err, generation.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, generation.ErrFinished):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("generation cancel requested", "generation_id", id)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"generation_id": id,
		"status":        "cancelling",
	})
}
