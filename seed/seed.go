// Package seed fills an empty installation with sample data and the default
// administrator accounts.
package seed

import (
	"fmt"
	"time"

	"cityreport/models"
	"cityreport/repository"

	"github.com/sirupsen/logrus"
)

// PasswordHasher is satisfied by auth.Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// DefaultAdmin describes a built-in administrator.
type DefaultAdmin struct {
	ID       string
	Email    string
	Password string
	Role     models.UserRole
	FullName string
}

// DefaultAdmins are created on first start. Their passwords must be changed.
var DefaultAdmins = []DefaultAdmin{
	{ID: "admin-1", Email: "admin@ville.fr", Password: "admin123", Role: models.RoleAdmin, FullName: "Administrateur Principal"},
	{ID: "admin-2", Email: "super.admin@ville.fr", Password: "superadmin123", Role: models.RoleSuperAdmin, FullName: "Super Administrateur"},
}

// Seeder writes sample data through the repositories.
type Seeder struct {
	Reports  *repository.ReportRepository
	Alerts   *repository.AlertRepository
	Contacts *repository.ContactRepository
	Accounts *repository.AccountRepository
	Hasher   PasswordHasher
	Now      func() time.Time
	Log      logrus.FieldLogger
}

// Run seeds every empty slot. Existing data is never touched.
func (s *Seeder) Run() error {
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	now := s.Now().UTC()

	if s.Accounts != nil {
		if err := s.seedAccounts(now); err != nil {
			return err
		}
	}
	if s.Reports != nil && s.Reports.SeedIfEmpty(sampleReports(now)) {
		s.Log.Info("sample reports seeded")
	}
	if s.Alerts != nil && s.Alerts.SeedIfEmpty(sampleAlerts(now)) {
		s.Log.Info("sample alerts seeded")
	}
	if s.Contacts != nil && s.Contacts.SeedIfEmpty(sampleContacts(now)) {
		s.Log.Info("sample contacts seeded")
	}
	return nil
}

func (s *Seeder) seedAccounts(now time.Time) error {
	if len(s.Accounts.List()) > 0 {
		return nil
	}

	for _, admin := range DefaultAdmins {
		hash, err := s.Hasher.Hash(admin.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", admin.Email, err)
		}

		acc := models.AdminAccount{
			ID:        admin.ID,
			Email:     admin.Email,
			Role:      admin.Role,
			FullName:  admin.FullName,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if s.Accounts.Insert(acc, hash) {
			s.Log.WithFields(logrus.Fields{"email": admin.Email, "role": admin.Role}).Warn("default admin account created, change its password")
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func sampleReports(now time.Time) []models.Report {
	ago := func(d time.Duration) time.Time { return now.Add(-d) }

	return []models.Report{
		{
			ID:               "sample-1",
			Category:         "routes",
			Description:      "Nid-de-poule important sur l'Avenue de la République, dangereux pour les véhicules",
			LocationText:     "Avenue de la République, près du carrefour",
			Latitude:         ptr(43.6047),
			Longitude:        ptr(1.4442),
			LocationAccuracy: ptr(8.0),
			Status:           models.StatusNew,
			Priority:         models.PriorityHigh,
			CitizenName:      "Marie Dubois",
			CitizenEmail:     "marie.dubois@email.fr",
			PhotosCount:      2,
			CreatedAt:        ago(2 * time.Hour),
			UpdatedAt:        ago(2 * time.Hour),
		},
		{
			ID:               "sample-2",
			Category:         "eclairage",
			Description:      "Lampadaire défaillant depuis plusieurs jours, zone très sombre le soir",
			LocationText:     "Rue des Écoles, devant le numéro 45",
			Latitude:         ptr(43.6055),
			Longitude:        ptr(1.4435),
			LocationAccuracy: ptr(15.0),
			Status:           models.StatusInProgress,
			Priority:         models.PriorityMedium,
			CitizenName:      "Jean Martin",
			PhotosCount:      1,
			CreatedAt:        ago(24 * time.Hour),
			UpdatedAt:        ago(12 * time.Hour),
		},
		{
			ID:               "sample-3",
			Category:         "proprete",
			Description:      "Dépôt sauvage d'ordures sur le trottoir, situation qui perdure",
			LocationText:     "Place du Marché, côté nord",
			Latitude:         ptr(43.6038),
			Longitude:        ptr(1.4458),
			LocationAccuracy: ptr(12.0),
			Status:           models.StatusNew,
			Priority:         models.PriorityLow,
			PhotosCount:      3,
			CreatedAt:        ago(6 * time.Hour),
			UpdatedAt:        ago(6 * time.Hour),
		},
	}
}

func sampleAlerts(now time.Time) []models.Alert {
	return []models.Alert{
		{
			ID:        "alert-1",
			Title:     "Travaux Avenue Jean Jaurès",
			Message:   "Des travaux de réfection de la chaussée auront lieu du 15 au 20 décembre. Circulation alternée mise en place.",
			Type:      models.AlertWarning,
			IsActive:  true,
			Author:    "Service Voirie",
			CreatedAt: now.Add(-48 * time.Hour),
			UpdatedAt: now.Add(-48 * time.Hour),
		},
		{
			ID:        "alert-2",
			Title:     "Coupure d'eau programmée",
			Message:   "Interruption de l'alimentation en eau potable secteur Centre-Ville de 14h à 17h demain pour maintenance.",
			Type:      models.AlertInfo,
			IsActive:  true,
			ExpiresAt: ptr(now.Add(24 * time.Hour)),
			Author:    "Service Technique",
			CreatedAt: now.Add(-24 * time.Hour),
			UpdatedAt: now.Add(-24 * time.Hour),
		},
	}
}

func sampleContacts(now time.Time) []models.Contact {
	contact := func(id, name, phone, email string, category models.ContactCategory) models.Contact {
		return models.Contact{
			ID:        id,
			Name:      name,
			Phone:     phone,
			Email:     email,
			Category:  category,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	return []models.Contact{
		contact("contact-1", "Police Municipale", "05 61 22 29 92", "police.municipale@ville-toulouse.fr", models.ContactPolice),
		contact("contact-2", "Service Technique Municipal", "05 61 22 31 31", "services.techniques@ville-toulouse.fr", models.ContactMunicipal),
		contact("contact-3", "Urgences Médicales", "15", "", models.ContactMedical),
		contact("contact-4", "Sapeurs-Pompiers", "18", "", models.ContactFire),
	}
}
