package api

import (
	"context"
	stdliberrors "errors"
	"net/http"
	"strings"
)

// handleAIResult generates a one-off assistant reply outside of any room.
func (s *Server) handleAIResult(w http.ResponseWriter, r *http.Request) {
	prompt := strings.TrimSpace(r.URL.Query().Get("prompt"))
	if prompt == "" {
		respondError(w, http.StatusBadRequest, stdliberrors.New("prompt is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AI.Timeout)
	defer cancel()

	resp, err := s.responder.GenerateResponse(ctx, prompt)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	result := resp.Raw
	if result == "" {
		result = resp.Text
	}
	respondJSON(w, http.StatusOK, map[string]string{"result": result})
}
