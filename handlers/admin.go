package handlers

import (
	"net/http"

	"cityreport/auth"
	"cityreport/middleware"
	"cityreport/models"
	"cityreport/repository"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// EventSource lists recorded security events. Implemented by audit.LocalSink.
type EventSource interface {
	Events() []models.SecurityEvent
}

type AdminHandler struct {
	accounts *repository.AccountRepository
	gateway  *auth.Gateway
	hasher   *auth.Hasher
	events   EventSource
	log      logrus.FieldLogger
}

func NewAdminHandler(accounts *repository.AccountRepository, gateway *auth.Gateway, hasher *auth.Hasher, events EventSource, log logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		gateway:  gateway,
		hasher:   hasher,
		events:   events,
		log:      log,
	}
}

// --- Account Management ---

type CreateAccountRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin super-admin"`
	Password string          `json:"password" validate:"required"`
}

type UpdateAccountRequest struct {
	FullName *string          `json:"full_name,omitempty"`
	Role     *models.UserRole `json:"role,omitempty" validate:"omitempty,oneof=admin super-admin"`
	IsActive *bool            `json:"is_active,omitempty"`
}

type ResetPasswordRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ListAccounts returns all administrator accounts
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := h.accounts.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount creates an administrator with an initial password
func (h *AdminHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	passwordHash, err := h.hasher.Hash(req.Password)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}

	acc, err := h.accounts.Create(repository.AccountInput{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
	}, passwordHash)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, acc)
}

// UpdateAccount changes an account's name, role or active flag
func (h *AdminHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	id := chi.URLParam(r, "id")
	if sess, ok := middleware.SessionFromContext(r.Context()); ok && sess.User.ID == id {
		if (req.IsActive != nil && !*req.IsActive) || (req.Role != nil && *req.Role != sess.User.Role) {
			writeError(w, "You cannot demote or deactivate your own account", http.StatusBadRequest)
			return
		}
	}

	acc := h.accounts.Update(id, func(a *models.AdminAccount) {
		if req.FullName != nil {
			a.FullName = *req.FullName
		}
		if req.Role != nil {
			a.Role = *req.Role
		}
		if req.IsActive != nil {
			a.IsActive = *req.IsActive
		}
	})
	if acc == nil {
		writeError(w, "Account not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// ResetPassword sets another administrator's password
func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	if err := h.gateway.ResetPassword(r.Context(), req.UserID, req.NewPassword); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully",
	})
}

// SecurityEvents returns the locally recorded audit trail, newest last
func (h *AdminHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	events := []models.SecurityEvent{}
	if h.events != nil {
		events = h.events.Events()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
