package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.completion == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"provider":           s.cfg.Completion.Provider,
		"model":              s.cfg.Completion.Model,
		"active_generations": s.generations.Active(),
		"stats":              s.completion.Stats().Snapshot(),
	})
}
