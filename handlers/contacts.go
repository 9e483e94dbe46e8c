package handlers

import (
	"net/http"

	"cityreport/models"
	"cityreport/repository"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type ContactHandler struct {
	contacts *repository.ContactRepository
	log      logrus.FieldLogger
}

func NewContactHandler(contacts *repository.ContactRepository, log logrus.FieldLogger) *ContactHandler {
	return &ContactHandler{contacts: contacts, log: log}
}

// ListActive returns the public emergency directory
func (h *ContactHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.contacts.GetActive())
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.contacts.GetAll())
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.ContactInput
	if err := decode(w, r, &in); err != nil {
		writeAppError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.contacts.Create(in))
}

func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	contact := h.contacts.GetByID(chi.URLParam(r, "id"))
	if contact == nil {
		writeError(w, "Contact not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.ContactPatch
	if err := decode(w, r, &patch); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	contact := h.contacts.Update(chi.URLParam(r, "id"), patch)
	if contact == nil {
		writeError(w, "Contact not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.contacts.Delete(chi.URLParam(r, "id")) {
		writeError(w, "Contact not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
