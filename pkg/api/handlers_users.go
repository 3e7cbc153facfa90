package api

import (
	stdliberrors "errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/Ganeshg1313/askandsay-server/pkg/auth"
	"github.com/Ganeshg1313/askandsay-server/pkg/logging"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func validCredentials(req credentialsRequest) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return stdliberrors.New("email must be a valid email address")
	}
	if len(req.Password) < 6 {
		return stdliberrors.New("password must be at least 6 characters long")
	}
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}
	if err := validCredentials(req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	user, err := s.store.CreateUser(req.Email, hash)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := s.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	s.logger.Info(logging.CategoryAuth, "user_registered", "new user registered", map[string]any{
		"userId": user.ID,
	})
	respondJSON(w, http.StatusCreated, map[string]any{"user": user, "token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondError(w, status, err)
		return
	}

	user, hash, err := s.store.GetUserWithPassword(req.Email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if user == nil || auth.CheckPassword(hash, req.Password) != nil {
		respondError(w, http.StatusUnauthorized, stdliberrors.New("invalid email or password"))
		return
	}

	token, err := s.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	user, err := s.store.GetUserByID(identity.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, stdliberrors.New("user not found"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if err := s.tokens.Revoke(identity.Token); err != nil {
		respondServiceError(w, err)
		return
	}
	s.logger.Info(logging.CategoryAuth, "user_logged_out", "session token revoked", map[string]any{
		"userId": identity.UserID,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	users, err := s.store.ListUsersExcept(identity.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}
