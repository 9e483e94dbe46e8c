package handlers

import (
	"net/http"

	"cityreport/middleware"
	"cityreport/models"
	"cityreport/repository"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type AlertHandler struct {
	alerts *repository.AlertRepository
	log    logrus.FieldLogger
}

func NewAlertHandler(alerts *repository.AlertRepository, log logrus.FieldLogger) *AlertHandler {
	return &AlertHandler{alerts: alerts, log: log}
}

// ListActive returns the alerts currently shown to citizens
func (h *AlertHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.alerts.GetActive())
}

// List returns every alert, expired and inactive included
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.alerts.GetAll())
}

// Create publishes an alert signed by the caller unless an author is given
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.AlertInput
	if err := decode(w, r, &in); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	if in.Author == "" {
		if sess, ok := middleware.SessionFromContext(r.Context()); ok {
			in.Author = sess.User.FullName
		}
	}

	writeJSON(w, http.StatusCreated, h.alerts.Create(in))
}

func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	alert := h.alerts.GetByID(chi.URLParam(r, "id"))
	if alert == nil {
		writeError(w, "Alert not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.AlertPatch
	if err := decode(w, r, &patch); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	alert := h.alerts.Update(chi.URLParam(r, "id"), patch)
	if alert == nil {
		writeError(w, "Alert not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.alerts.Delete(chi.URLParam(r, "id")) {
		writeError(w, "Alert not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
