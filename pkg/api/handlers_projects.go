package api

import (
	stdliberrors "errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Ganeshg1313/askandsay-server/pkg/errors"
	"github.com/Ganeshg1313/askandsay-server/pkg/logging"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	var req struct {
		Name string `json:"name"`
	}
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}

	project, err := s.store.CreateProject(req.Name, identity.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.logger.Info(logging.CategoryAPI, "project_created", "project created", map[string]any{
		"projectId": project.ID,
		"userId":    identity.UserID,
	})
	respondJSON(w, http.StatusCreated, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	projects, err := s.store.ListProjectsForUser(identity.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

type projectUsersRequest struct {
	ProjectID string   `json:"projectId"`
	Users     []string `json:"users"`
}

func (s *Server) handleAddUsers(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	var req projectUsersRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}
	if len(req.Users) == 0 {
		respondError(w, http.StatusBadRequest, stdliberrors.New("users must be a non-empty array"))
		return
	}

	project, err := s.store.AddProjectMembers(req.ProjectID, identity.UserID, req.Users)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (s *Server) handleRemoveUsers(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	var req projectUsersRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}
	if len(req.Users) == 0 {
		respondError(w, http.StatusBadRequest, stdliberrors.New("users must be a non-empty array"))
		return
	}

	project, err := s.store.RemoveProjectMembers(req.ProjectID, identity.UserID, req.Users)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(chi.URLParam(r, "projectId"))
	project, err := s.store.GetProjectByID(projectID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if project == nil {
		respondError(w, http.StatusNotFound, stdliberrors.New("project not found"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	var req struct {
		ProjectID string `json:"projectId"`
	}
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}

	member, err := s.store.IsProjectMember(req.ProjectID, identity.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !member {
		respondServiceError(w, apperrors.New(apperrors.ErrCodeForbidden, "user does not belong to this project"))
		return
	}

	if err := s.store.DeleteProject(req.ProjectID); err != nil {
		respondServiceError(w, err)
		return
	}
	s.logger.Info(logging.CategoryAPI, "project_deleted", "project deleted", map[string]any{
		"projectId": req.ProjectID,
		"userId":    identity.UserID,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Project deleted successfully"})
}
