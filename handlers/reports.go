package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cityreport/apperrors"
	"cityreport/middleware"
	"cityreport/models"
	"cityreport/repository"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type ReportHandler struct {
	reports *repository.ReportRepository
	now     func() time.Time
	log     logrus.FieldLogger
}

func NewReportHandler(reports *repository.ReportRepository, log logrus.FieldLogger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		now:     time.Now,
		log:     log,
	}
}

// ReportListResponse wraps a filtered report list
type ReportListResponse struct {
	Reports []models.Report `json:"reports"`
	Count   int             `json:"count"`
}

// Create accepts a citizen report. The remote push happens in the background.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.ReportInput
	if err := decode(w, r, &in); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	report := h.reports.Create(in)
	writeJSON(w, http.StatusCreated, report)
}

// List returns reports, optionally filtered by ?status= and ?since= (RFC3339, on updated_at)
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.filtered(r)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, ReportListResponse{
		Reports: reports,
		Count:   len(reports),
	})
}

func (h *ReportHandler) filtered(r *http.Request) ([]models.Report, error) {
	query := r.URL.Query()

	status := models.ReportStatus(query.Get("status"))
	if status != "" && !status.Valid() {
		return nil, apperrors.NewValidationError("status", "unknown status")
	}

	var since time.Time
	if sinceParam := query.Get("since"); sinceParam != "" {
		t, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			return nil, apperrors.NewValidationError("since", "use RFC3339")
		}
		since = t
	}

	result := []models.Report{}
	for _, report := range h.reports.GetAll() {
		if status != "" && report.Status != status {
			continue
		}
		if !since.IsZero() && !report.UpdatedAt.After(since) {
			continue
		}
		result = append(result, report)
	}
	return result, nil
}

// Get returns one report
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report := h.reports.GetByID(chi.URLParam(r, "id"))
	if report == nil {
		writeError(w, "Report not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Update merges the provided fields into the report
func (h *ReportHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.ReportPatch
	if err := decode(w, r, &patch); err != nil {
		writeAppError(w, h.log, err)
		return
	}

	report := h.reports.Update(chi.URLParam(r, "id"), patch)
	if report == nil {
		writeError(w, "Report not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Delete removes the report
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.reports.Delete(chi.URLParam(r, "id")) {
		writeError(w, "Report not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats counts reports per status
func (h *ReportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reports.CountByStatus())
}

// Export streams the filtered reports as CSV
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	reports, err := h.filtered(r)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}

	timestamp := h.now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("cityreport_reports_%s.csv", timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"ID",
		"Category",
		"Description",
		"Location",
		"Latitude",
		"Longitude",
		"Status",
		"Priority",
		"Citizen Name",
		"Citizen Email",
		"Photos",
		"Created At",
		"Updated At",
	}
	if err := writer.Write(header); err != nil {
		h.log.WithError(err).Error("failed to write CSV header")
		return
	}

	for _, report := range reports {
		row := []string{
			report.ID,
			report.Category,
			report.Description,
			report.LocationText,
			formatCoord(report.Latitude),
			formatCoord(report.Longitude),
			string(report.Status),
			string(report.Priority),
			report.CitizenName,
			report.CitizenEmail,
			strconv.Itoa(report.PhotosCount),
			report.CreatedAt.Format(time.RFC3339),
			report.UpdatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			h.log.WithError(err).Error("failed to write CSV row")
			return
		}
	}

	entry := h.log.WithField("count", len(reports))
	if sess, ok := middleware.SessionFromContext(r.Context()); ok {
		entry = entry.WithField("user_id", sess.User.ID)
	}
	entry.Info("reports exported")
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}
