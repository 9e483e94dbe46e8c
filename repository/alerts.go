package repository

import (
	"time"

	"cityreport/idgen"
	"cityreport/models"
	"cityreport/store"

	"github.com/sirupsen/logrus"
)

// AlertRepository manages public alerts.
type AlertRepository struct {
	col *Collection[models.Alert]
	now func() time.Time
	log logrus.FieldLogger
}

// NewAlertRepository creates an AlertRepository.
func NewAlertRepository(s *store.LocalStore, opts ...Option) *AlertRepository {
	o := newOptions(opts)
	return &AlertRepository{
		col: NewCollection[models.Alert](s, store.KeyAlerts),
		now: o.now,
		log: o.log.WithField("repository", "alerts"),
	}
}

func validAlertType(t models.AlertType) bool {
	switch t {
	case models.AlertInfo, models.AlertWarning, models.AlertEmergency:
		return true
	}
	return false
}

// Create stores a new, active alert.
func (r *AlertRepository) Create(in models.AlertInput) models.Alert {
	now := r.now().UTC()

	alert := models.Alert{
		Title:     in.Title,
		Message:   in.Message,
		Type:      in.Type,
		IsActive:  true,
		ExpiresAt: utcPtr(in.ExpiresAt),
		Author:    in.Author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !validAlertType(alert.Type) {
		alert.Type = models.AlertInfo
	}
	if alert.Author == "" {
		alert.Author = models.DefaultAlertAuthor
	}

	for {
		alert.ID = idgen.NewFromTime(now)
		if r.col.Insert(alert) {
			break
		}
	}

	r.log.WithFields(logrus.Fields{"alert_id": alert.ID, "type": alert.Type}).Info("alert created")
	return alert
}

// GetAll returns every alert, active or not.
func (r *AlertRepository) GetAll() []models.Alert {
	return r.col.All()
}

// GetActive returns the alerts shown to citizens right now.
func (r *AlertRepository) GetActive() []models.Alert {
	now := r.now()
	active := []models.Alert{}
	for _, a := range r.col.All() {
		if a.ActiveAt(now) {
			active = append(active, a)
		}
	}
	return active
}

// GetByID returns the alert or nil.
func (r *AlertRepository) GetByID(id string) *models.Alert {
	alert, ok := r.col.Get(id)
	if !ok {
		return nil
	}
	return &alert
}

// Update merges the non-nil fields of patch.
func (r *AlertRepository) Update(id string, patch models.AlertPatch) *models.Alert {
	updated, ok := r.col.Modify(id, func(a *models.Alert) {
		if patch.Title != nil {
			a.Title = *patch.Title
		}
		if patch.Message != nil {
			a.Message = *patch.Message
		}
		if patch.Type != nil && validAlertType(*patch.Type) {
			a.Type = *patch.Type
		}
		if patch.IsActive != nil {
			a.IsActive = *patch.IsActive
		}
		if patch.ExpiresAt != nil {
			a.ExpiresAt = utcPtr(patch.ExpiresAt)
		}
		if patch.Author != nil {
			a.Author = *patch.Author
		}
		a.UpdatedAt = touch(a.UpdatedAt, r.now())
	})
	if !ok {
		return nil
	}
	return &updated
}

// SeedIfEmpty stores records when no alert exists yet.
func (r *AlertRepository) SeedIfEmpty(records []models.Alert) bool {
	return r.col.SeedIfEmpty(records)
}

// Delete removes the alert and reports whether it existed.
func (r *AlertRepository) Delete(id string) bool {
	return r.col.Remove(id)
}
