package repository

import (
	"strings"
	"sync"
	"time"

	"cityreport/apperrors"
	"cityreport/idgen"
	"cityreport/models"
	"cityreport/store"

	"github.com/sirupsen/logrus"
)

// AccountInput describes a new administrator.
type AccountInput struct {
	Email    string
	FullName string
	Role     models.UserRole
}

// AccountRepository manages administrator accounts and their password hashes.
// Hashes are kept in a separate slot keyed by lower-cased email.
type AccountRepository struct {
	col    *Collection[models.AdminAccount]
	store  *store.LocalStore
	credMu sync.Mutex
	now    func() time.Time
	log    logrus.FieldLogger
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(s *store.LocalStore, opts ...Option) *AccountRepository {
	o := newOptions(opts)
	return &AccountRepository{
		col:   NewCollection[models.AdminAccount](s, store.KeyAdminAccounts),
		store: s,
		now:   o.now,
		log:   o.log.WithField("repository", "accounts"),
	}
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// List returns every account.
func (r *AccountRepository) List() []models.AdminAccount {
	return r.col.All()
}

// GetByID returns the account or nil.
func (r *AccountRepository) GetByID(id string) *models.AdminAccount {
	acc, ok := r.col.Get(id)
	if !ok {
		return nil
	}
	return &acc
}

// GetByEmail looks an account up case-insensitively.
func (r *AccountRepository) GetByEmail(email string) *models.AdminAccount {
	email = NormalizeEmail(email)
	acc, ok := r.col.Find(func(a models.AdminAccount) bool { return a.Email == email })
	if !ok {
		return nil
	}
	return &acc
}

// Create stores a new active account together with its password hash.
// It fails with a ValidationError if the email is already taken.
func (r *AccountRepository) Create(in AccountInput, passwordHash string) (models.AdminAccount, error) {
	email := NormalizeEmail(in.Email)
	if r.GetByEmail(email) != nil {
		return models.AdminAccount{}, apperrors.NewValidationError("email", "email already in use")
	}

	now := r.now().UTC()
	acc := models.AdminAccount{
		Email:     email,
		Role:      in.Role,
		FullName:  in.FullName,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if acc.Role != models.RoleSuperAdmin {
		acc.Role = models.RoleAdmin
	}

	for {
		acc.ID = idgen.NewFromTime(now)
		if r.col.Insert(acc) {
			break
		}
	}
	r.SetPasswordHash(email, passwordHash)

	r.log.WithFields(logrus.Fields{"account_id": acc.ID, "role": acc.Role}).Info("account created")
	return acc, nil
}

// Insert stores acc as-is, keeping its id. Used by seeding.
func (r *AccountRepository) Insert(acc models.AdminAccount, passwordHash string) bool {
	acc.Email = NormalizeEmail(acc.Email)
	if r.GetByEmail(acc.Email) != nil || !r.col.Insert(acc) {
		return false
	}
	r.SetPasswordHash(acc.Email, passwordHash)
	return true
}

// Update applies fn to the account and stamps updated_at.
func (r *AccountRepository) Update(id string, fn func(*models.AdminAccount)) *models.AdminAccount {
	updated, ok := r.col.Modify(id, func(a *models.AdminAccount) {
		fn(a)
		a.Email = NormalizeEmail(a.Email)
		a.UpdatedAt = touch(a.UpdatedAt, r.now())
	})
	if !ok {
		return nil
	}
	return &updated
}

func (r *AccountRepository) credentials() map[string]string {
	return store.Get(r.store, store.KeyAdminCredentials, map[string]string{})
}

// PasswordHash returns the stored hash for email.
func (r *AccountRepository) PasswordHash(email string) (string, bool) {
	r.credMu.Lock()
	defer r.credMu.Unlock()

	hash, ok := r.credentials()[NormalizeEmail(email)]
	return hash, ok
}

// SetPasswordHash stores hash for email.
func (r *AccountRepository) SetPasswordHash(email, hash string) {
	r.credMu.Lock()
	defer r.credMu.Unlock()

	creds := r.credentials()
	creds[NormalizeEmail(email)] = hash
	r.store.Set(store.KeyAdminCredentials, creds)
}

// RenameCredential moves the hash stored under oldEmail to newEmail.
func (r *AccountRepository) RenameCredential(oldEmail, newEmail string) {
	r.credMu.Lock()
	defer r.credMu.Unlock()

	oldEmail, newEmail = NormalizeEmail(oldEmail), NormalizeEmail(newEmail)
	creds := r.credentials()
	hash, ok := creds[oldEmail]
	if !ok {
		return
	}
	delete(creds, oldEmail)
	creds[newEmail] = hash
	r.store.Set(store.KeyAdminCredentials, creds)
}
