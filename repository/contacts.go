package repository

import (
	"time"

	"cityreport/idgen"
	"cityreport/models"
	"cityreport/store"

	"github.com/sirupsen/logrus"
)

// ContactRepository manages the emergency phone directory.
type ContactRepository struct {
	col *Collection[models.Contact]
	now func() time.Time
	log logrus.FieldLogger
}

// NewContactRepository creates a ContactRepository.
func NewContactRepository(s *store.LocalStore, opts ...Option) *ContactRepository {
	o := newOptions(opts)
	return &ContactRepository{
		col: NewCollection[models.Contact](s, store.KeyContacts),
		now: o.now,
		log: o.log.WithField("repository", "contacts"),
	}
}

func validContactCategory(c models.ContactCategory) bool {
	switch c {
	case models.ContactPolice, models.ContactFire, models.ContactMedical, models.ContactMunicipal, models.ContactOther:
		return true
	}
	return false
}

// Create stores a new, active contact.
func (r *ContactRepository) Create(in models.ContactInput) models.Contact {
	now := r.now().UTC()

	contact := models.Contact{
		Name:      in.Name,
		Phone:     in.Phone,
		Email:     in.Email,
		Category:  in.Category,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !validContactCategory(contact.Category) {
		contact.Category = models.ContactOther
	}

	for {
		contact.ID = idgen.NewFromTime(now)
		if r.col.Insert(contact) {
			break
		}
	}

	r.log.WithField("contact_id", contact.ID).Info("contact created")
	return contact
}

// GetAll returns every contact.
func (r *ContactRepository) GetAll() []models.Contact {
	return r.col.All()
}

// GetActive returns the contacts listed publicly.
func (r *ContactRepository) GetActive() []models.Contact {
	active := []models.Contact{}
	for _, c := range r.col.All() {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active
}

// GetByID returns the contact or nil.
func (r *ContactRepository) GetByID(id string) *models.Contact {
	contact, ok := r.col.Get(id)
	if !ok {
		return nil
	}
	return &contact
}

// Update merges the non-nil fields of patch.
func (r *ContactRepository) Update(id string, patch models.ContactPatch) *models.Contact {
	updated, ok := r.col.Modify(id, func(c *models.Contact) {
		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.Phone != nil {
			c.Phone = *patch.Phone
		}
		if patch.Email != nil {
			c.Email = *patch.Email
		}
		if patch.Category != nil && validContactCategory(*patch.Category) {
			c.Category = *patch.Category
		}
		if patch.IsActive != nil {
			c.IsActive = *patch.IsActive
		}
		c.UpdatedAt = touch(c.UpdatedAt, r.now())
	})
	if !ok {
		return nil
	}
	return &updated
}

// SeedIfEmpty stores records when no contact exists yet.
func (r *ContactRepository) SeedIfEmpty(records []models.Contact) bool {
	return r.col.SeedIfEmpty(records)
}

// Delete removes the contact and reports whether it existed.
func (r *ContactRepository) Delete(id string) bool {
	return r.col.Remove(id)
}
