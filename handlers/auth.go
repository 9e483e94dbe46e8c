package handlers

import (
	"net/http"
	"time"

	"cityreport/auth"
	"cityreport/middleware"
	"cityreport/models"
	"cityreport/session"

	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	gateway  *auth.Gateway
	sessions *session.Manager
	issuer   *auth.TokenIssuer
	log      logrus.FieldLogger
}

func NewAuthHandler(gateway *auth.Gateway, sessions *session.Manager, issuer *auth.TokenIssuer, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		gateway:  gateway,
		sessions: sessions,
		issuer:   issuer,
		log:      log,
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      models.SessionUser `json:"user"`
}

type SessionResponse struct {
	User         models.SessionUser `json:"user"`
	ExpiresAt    time.Time          `json:"expires_at"`
	LastActivity time.Time          `json:"last_activity"`
	Strength     session.Strength   `json:"strength"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type ChangeEmailRequest struct {
	NewEmail string `json:"new_email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login signs an administrator in and returns a bearer token bound to the new session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	sess, err := h.gateway.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}

	h.writeToken(w, sess)
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, sess *models.Session) {
	token, err := h.issuer.Issue(sess)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		User:      sess.User,
	})
}

// Logout ends the current session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.gateway.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

// Session describes the caller's session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		User:         sess.User,
		ExpiresAt:    sess.ExpiresAt,
		LastActivity: sess.LastActivity,
		Strength:     h.sessions.Strength(),
	})
}

// ChangePassword replaces the caller's password. The session ends on success.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	if err := h.gateway.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed, please sign in again",
	})
}

// ChangeEmail moves the caller to a new address and returns a fresh token
func (h *AuthHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req ChangeEmailRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	if err := h.gateway.ChangeEmail(r.Context(), req.NewEmail, req.Password); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	sess := h.sessions.Peek()
	if sess == nil {
		writeError(w, "Session expired", http.StatusUnauthorized)
		return
	}
	h.writeToken(w, sess)
}
