package api

import (
	stdliberrors "errors"
	"net/http"
)

type noteRequest struct {
	ProjectID string `json:"projectId"`
	Content   string `json:"content"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}

	note, err := s.store.CreateNote(req.ProjectID, req.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"note": note})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"projectId"`
	}
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}

	note, err := s.store.GetNote(req.ProjectID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if note == nil {
		respondError(w, http.StatusNotFound, stdliberrors.New("note not found"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"note": note})
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}

	note, err := s.store.UpdateNote(req.ProjectID, req.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if note == nil {
		respondError(w, http.StatusNotFound, stdliberrors.New("note not found"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"note": note})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"projectId"`
	}
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}

	if err := s.store.DeleteNote(req.ProjectID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Note deleted successfully"})
}
