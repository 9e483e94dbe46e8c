package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"cityreport/apperrors"
	"cityreport/audit"
	"cityreport/metrics"
	"cityreport/models"
	"cityreport/remote"
	"cityreport/repository"
	"cityreport/session"

	"github.com/sirupsen/logrus"
)

// Lockout defaults
const (
	DefaultMaxLoginAttempts = 3
	DefaultLockoutDuration  = 30 * time.Minute
)

// Sign-in failure messages
const (
	msgInvalidCredentials = "invalid email or password"
	msgAccountLocked      = "account temporarily locked, try again later"
	msgSessionExpired     = "session expired"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email has the shape local@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Mirror replays successful credential changes on the remote service.
// Implemented by remote.Client.
type Mirror interface {
	Auth(ctx context.Context, req remote.AuthRequest) (*remote.AuthResponse, error)
}

// Gateway is the single entry point for administrator authentication.
type Gateway struct {
	accounts *repository.AccountRepository
	sessions *session.Manager
	hasher   *Hasher
	audit    audit.Emitter
	mirror   Mirror

	maxAttempts   int
	lockout       time.Duration
	mirrorTimeout time.Duration
	now           func() time.Time
	metrics       *metrics.Metrics
	log           logrus.FieldLogger

	wg sync.WaitGroup
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithAuditor routes authentication events to e.
func WithAuditor(e audit.Emitter) GatewayOption {
	return func(g *Gateway) { g.audit = e }
}

// WithMirror enables the detached remote replay of credential changes.
func WithMirror(m Mirror) GatewayOption {
	return func(g *Gateway) { g.mirror = m }
}

// WithLockout overrides the lockout policy. Non-positive values are ignored.
func WithLockout(maxAttempts int, duration time.Duration) GatewayOption {
	return func(g *Gateway) {
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
		if duration > 0 {
			g.lockout = duration
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}

// WithMetrics counts sign-in outcomes.
func WithMetrics(m *metrics.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the gateway logger.
func WithLogger(log logrus.FieldLogger) GatewayOption {
	return func(g *Gateway) { g.log = log }
}

// NewGateway creates a Gateway.
func NewGateway(accounts *repository.AccountRepository, sessions *session.Manager, hasher *Hasher, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		accounts:      accounts,
		sessions:      sessions,
		hasher:        hasher,
		maxAttempts:   DefaultMaxLoginAttempts,
		lockout:       DefaultLockoutDuration,
		mirrorTimeout: 10 * time.Second,
		now:           time.Now,
		log:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.WithField("component", "auth")
	return g
}

// SignIn verifies credentials and opens a session. The signed-in user is Session.User.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		g.metrics.Login("invalid_input")
		return nil, apperrors.NewAuthError(apperrors.ErrInvalidInput, "email and password are required")
	}
	if !ValidEmail(email) {
		g.metrics.Login("invalid_input")
		return nil, apperrors.NewAuthError(apperrors.ErrInvalidInput, "invalid email format")
	}

	acc := g.accounts.GetByEmail(email)
	if acc == nil || !acc.IsActive {
		g.metrics.Login("failed")
		g.emit(models.EventLoginFailed, email, "unknown or inactive account")
		return nil, apperrors.NewAuthError(apperrors.ErrInvalidCredentials, msgInvalidCredentials)
	}

	now := g.now().UTC()
	if acc.LockedAt(now) {
		g.metrics.Login("locked")
		g.emit(models.EventLoginFailed, email, "account locked")
		return nil, apperrors.NewAuthError(apperrors.ErrAccountLocked, msgAccountLocked)
	}

	if !g.verify(acc.Email, password, MinSignInPasswordLength) {
		return nil, g.recordFailure(acc, now)
	}

	g.accounts.Update(acc.ID, func(a *models.AdminAccount) {
		a.FailedAttempts = 0
		a.LockedUntil = nil
		a.LastLoginAt = &now
	})

	sess, err := g.sessions.Create(models.SessionUser{
		ID:       acc.ID,
		Email:    acc.Email,
		Role:     acc.Role,
		FullName: acc.FullName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	g.metrics.Login("success")
	g.emit(models.EventLoginSuccess, email, "")
	g.log.WithField("user_id", acc.ID).Info("sign-in succeeded")
	return sess, nil
}

// verify checks password against the stored hash. Passwords shorter than
// minLen never match.
func (g *Gateway) verify(email, password string, minLen int) bool {
	if utf8.RuneCountInString(password) < minLen {
		return false
	}
	hash, ok := g.accounts.PasswordHash(email)
	if !ok {
		return false
	}
	if err := g.hasher.Compare(hash, password); err != nil {
		if !errors.Is(err, apperrors.ErrInvalidCredentials) {
			g.log.WithError(err).WithField("email", email).Error("stored password hash unusable")
		}
		return false
	}
	return true
}

// recordFailure counts a wrong password and locks the account at the threshold.
func (g *Gateway) recordFailure(acc *models.AdminAccount, now time.Time) error {
	locked := false
	g.accounts.Update(acc.ID, func(a *models.AdminAccount) {
		a.FailedAttempts++
		if a.FailedAttempts >= g.maxAttempts {
			until := now.Add(g.lockout)
			a.LockedUntil = &until
			locked = true
		}
	})

	if locked {
		g.metrics.Login("locked")
		g.emit(models.EventAccountLocked, acc.Email, fmt.Sprintf("locked for %s", g.lockout))
		g.log.WithField("user_id", acc.ID).Warn("account locked after repeated failures")
		return apperrors.NewAuthError(apperrors.ErrAccountLocked,
			fmt.Sprintf("too many failed attempts, account locked for %d minutes", int(g.lockout.Minutes())))
	}

	g.metrics.Login("failed")
	g.emit(models.EventLoginFailed, acc.Email, "wrong password")
	return apperrors.NewAuthError(apperrors.ErrInvalidCredentials, msgInvalidCredentials)
}

// SignOut ends the current session.
func (g *Gateway) SignOut() {
	g.sessions.Destroy()
}

// CurrentUser returns the signed-in user or nil.
func (g *Gateway) CurrentUser() *models.SessionUser {
	sess := g.sessions.Current()
	if sess == nil {
		return nil
	}
	return &sess.User
}

// HasRole reports whether the signed-in user has exactly role.
func (g *Gateway) HasRole(role models.UserRole) bool {
	user := g.CurrentUser()
	return user != nil && user.Role == role
}

func (g *Gateway) requireSession() (*models.Session, error) {
	sess := g.sessions.Current()
	if sess == nil {
		return nil, apperrors.NewAuthError(apperrors.ErrSessionExpired, msgSessionExpired)
	}
	return sess, nil
}

// ChangePassword replaces the signed-in user's password and ends the session.
func (g *Gateway) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	sess, err := g.requireSession()
	if err != nil {
		return err
	}
	subject := sess.User.Email
	fail := func(err error) error {
		g.emit(models.EventPasswordChangeFailed, subject, err.Error())
		return err
	}

	acc := g.accounts.GetByID(sess.User.ID)
	if acc == nil {
		return fail(fmt.Errorf("account %s: %w", sess.User.ID, apperrors.ErrNotFound))
	}
	if !g.verify(acc.Email, currentPassword, 1) {
		return fail(apperrors.NewAuthError(apperrors.ErrInvalidCredentials, "current password is incorrect"))
	}
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return fail(err)
	}

	hash, err := g.hasher.Hash(newPassword)
	if err != nil {
		return fail(err)
	}
	g.accounts.SetPasswordHash(acc.Email, hash)
	g.accounts.Update(acc.ID, resetLockout)

	g.sessions.Destroy()
	g.emit(models.EventPasswordChanged, subject, "")
	g.log.WithField("user_id", acc.ID).Info("password changed")

	g.replay(remote.AuthRequest{
		Action:          remote.ActionChangePassword,
		UserID:          acc.ID,
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	})
	return nil
}

// ChangeEmail moves the signed-in user to a new email address.
func (g *Gateway) ChangeEmail(ctx context.Context, newEmail, password string) error {
	sess, err := g.requireSession()
	if err != nil {
		return err
	}
	subject := sess.User.Email
	fail := func(err error) error {
		g.emit(models.EventEmailChangeFailed, subject, err.Error())
		return err
	}

	newEmail = repository.NormalizeEmail(newEmail)
	if !ValidEmail(newEmail) {
		return fail(apperrors.NewValidationError("email", "invalid email format"))
	}
	if other := g.accounts.GetByEmail(newEmail); other != nil && other.ID != sess.User.ID {
		return fail(apperrors.NewValidationError("email", "email already in use"))
	}

	acc := g.accounts.GetByID(sess.User.ID)
	if acc == nil {
		return fail(fmt.Errorf("account %s: %w", sess.User.ID, apperrors.ErrNotFound))
	}
	if !g.verify(acc.Email, password, 1) {
		return fail(apperrors.NewAuthError(apperrors.ErrInvalidCredentials, "password is incorrect"))
	}

	oldEmail := acc.Email
	g.accounts.Update(acc.ID, func(a *models.AdminAccount) { a.Email = newEmail })
	g.accounts.RenameCredential(oldEmail, newEmail)
	g.sessions.Update(func(s *models.Session) { s.User.Email = newEmail })

	g.emit(models.EventEmailChanged, newEmail, oldEmail+" -> "+newEmail)
	g.log.WithField("user_id", acc.ID).Info("email changed")

	g.replay(remote.AuthRequest{
		Action:   remote.ActionChangeEmail,
		UserID:   acc.ID,
		NewEmail: newEmail,
		Password: password,
	})
	return nil
}

// ResetPassword sets another account's password. Only a super-admin may call it.
func (g *Gateway) ResetPassword(ctx context.Context, targetUserID, newPassword string) error {
	sess, err := g.requireSession()
	if err != nil {
		return err
	}
	admin := sess.User
	fail := func(err error) error {
		g.emit(models.EventPasswordResetFailed, admin.Email,
			fmt.Sprintf("admin %s failed to reset password for user %s: %v", admin.Email, targetUserID, err))
		return err
	}

	if admin.Role != models.RoleSuperAdmin {
		return fail(apperrors.NewAuthError(apperrors.ErrForbidden, "super-admin role required"))
	}
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return fail(err)
	}

	target := g.accounts.GetByID(targetUserID)
	if target == nil {
		return fail(fmt.Errorf("account %s: %w", targetUserID, apperrors.ErrNotFound))
	}

	hash, err := g.hasher.Hash(newPassword)
	if err != nil {
		return fail(err)
	}
	g.accounts.SetPasswordHash(target.Email, hash)
	g.accounts.Update(target.ID, resetLockout)

	g.emit(models.EventPasswordReset, admin.Email,
		fmt.Sprintf("admin %s reset password for user %s", admin.Email, targetUserID))
	g.log.WithFields(logrus.Fields{"admin_id": admin.ID, "target_id": targetUserID}).Info("password reset by admin")

	g.replay(remote.AuthRequest{
		Action:       remote.ActionResetUserPassword,
		TargetUserID: targetUserID,
		AdminID:      admin.ID,
		NewPassword:  newPassword,
	})
	return nil
}

func resetLockout(a *models.AdminAccount) {
	a.FailedAttempts = 0
	a.LockedUntil = nil
}

// replay sends req to the mirror on a detached goroutine; the outcome is only logged.
func (g *Gateway) replay(req remote.AuthRequest) {
	if g.mirror == nil {
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.mirrorTimeout)
		defer cancel()

		entry := g.log.WithField("action", req.Action)
		if _, err := g.mirror.Auth(ctx, req); err != nil {
			entry.WithError(err).Warn("remote auth mirror failed")
			return
		}
		entry.Debug("remote auth mirror succeeded")
	}()
}

// Wait blocks until detached mirror calls have finished.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

func (g *Gateway) emit(kind models.EventKind, subject, detail string) {
	if g.audit != nil {
		g.audit.Emit(kind, subject, strings.TrimSpace(detail))
	}
}
