package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
)

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	Provider      string `json:"provider"`
	EmailVerified bool   `json:"emailVerified"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Provider:      u.Provider,
		EmailVerified: u.EmailVerified,
	}
}

func toSessionResponse(sess auth.Session) sessionResponse {
	return sessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      toUserResponse(sess.User),
	}
}

// writeAuthError maps service errors onto distinct status codes:
// conflicts 409, rejected credentials 401, bad input 422.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailInUse),
		errors.Is(err, auth.ErrDifferentCredential):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrEmptyDisplayName),
		errors.Is(err, core.ErrInvalidCPF):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Auth operation failed",
			"url", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "authentication service unavailable")
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
		CPF         string `json:"cpf"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sess, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: sanitizeInput(req.DisplayName),
		CPF:         req.CPF,
	})
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleSocialLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider    string `json:"provider"`
		AccessToken string `json:"accessToken"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Provider == "" || req.AccessToken == "" {
		writeError(w, http.StatusUnprocessableEntity, "provider and accessToken are required")
		return
	}

	sess, err := s.auth.LoginSocial(r.Context(), req.Provider, req.AccessToken)
	if err != nil {
		if errors.Is(err, auth.ErrDifferentCredential) {
			writeAuthError(w, r, err)
			return
		}
		slog.WarnContext(r.Context(), "Social sign-in rejected",
			"provider", req.Provider, "error", err)
		writeError(w, http.StatusUnauthorized, "could not verify provider token")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := s.auth.Logout(r.Context(), token); err != nil {
		writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(currentUser(r)))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := s.auth.UpdateDisplayName(r.Context(), currentUser(r).ID, sanitizeInput(req.DisplayName))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		slog.ErrorContext(r.Context(), "Password reset dispatch failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not dispatch reset email")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleVerifyEmailRequest(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.RequestEmailVerification(r.Context(), currentUser(r).ID); err != nil {
		slog.ErrorContext(r.Context(), "Verification dispatch failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not dispatch verification email")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleVerifyEmailConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.auth.ConfirmEmailVerification(r.Context(), req.Token); err != nil {
		writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
