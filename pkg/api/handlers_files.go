package api

import (
	"encoding/json"
	stdliberrors "errors"
	"net/http"
)

type fileTreeRequest struct {
	ProjectID string          `json:"projectId"`
	FileTree  json.RawMessage `json:"fileTree"`
}

func (s *Server) handleCreateFileTree(w http.ResponseWriter, r *http.Request) {
	var req fileTreeRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}

	artifact, err := s.store.CreateFileTree(req.ProjectID, req.FileTree)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, artifact)
}

func (s *Server) handleGetFileTree(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"projectId"`
	}
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}

	artifact, err := s.store.GetFileTree(req.ProjectID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if artifact == nil {
		respondError(w, http.StatusNotFound, stdliberrors.New("file tree not found"))
		return
	}
	respondJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleUpdateFileTree(w http.ResponseWriter, r *http.Request) {
	var req fileTreeRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}

	artifact, err := s.store.UpdateFileTree(req.ProjectID, req.FileTree)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleDeleteFileTree(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"projectId"`
	}
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}

	if err := s.store.DeleteFileTree(req.ProjectID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Files deleted successfully"})
}
