package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cityreport/apperrors"
	"cityreport/models"
	"cityreport/remote"
	"cityreport/repository"
	"cityreport/seed"
	"cityreport/session"
	"cityreport/store"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu    sync.Mutex
	kinds []models.EventKind
}

func (r *recorder) Emit(kind models.EventKind, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *recorder) Kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.EventKind(nil), r.kinds...)
}

type fakeMirror struct {
	mu   sync.Mutex
	reqs []remote.AuthRequest
	err  error
}

func (m *fakeMirror) Auth(_ context.Context, req remote.AuthRequest) (*remote.AuthResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return &remote.AuthResponse{Success: true}, nil
}

func (m *fakeMirror) Requests() []remote.AuthRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]remote.AuthRequest(nil), m.reqs...)
}

type fixture struct {
	gw       *Gateway
	accounts *repository.AccountRepository
	sessions *session.Manager
	clock    *clock
	events   *recorder
	mirror   *fakeMirror
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()

	c := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	events := &recorder{}
	mirror := &fakeMirror{}
	s := store.New(store.NewMemoryBackend(), log)
	hasher := NewHasher(bcrypt.MinCost)

	accounts := repository.NewAccountRepository(s, repository.WithClock(c.Now), repository.WithLogger(log))
	require.NoError(t, (&seed.Seeder{Accounts: accounts, Hasher: hasher, Now: c.Now, Log: log}).Run())

	sessions := session.NewManager(s,
		session.WithClock(c.Now),
		session.WithAuditor(events),
		session.WithLogger(log),
	)
	gw := NewGateway(accounts, sessions, hasher,
		WithClock(c.Now),
		WithAuditor(events),
		WithMirror(mirror),
		WithLogger(log),
	)

	return &fixture{gw: gw, accounts: accounts, sessions: sessions, clock: c, events: events, mirror: mirror}
}

func (f *fixture) signIn(t *testing.T, email, password string) *models.Session {
	t.Helper()
	sess, err := f.gw.SignIn(context.Background(), email, password)
	require.NoError(t, err)
	require.NotNil(t, sess)
	return sess
}

func TestSignIn_DefaultAdmin(t *testing.T) {
	f := newFixture(t)

	sess := f.signIn(t, "  Admin@Ville.fr ", "admin123")

	assert.Equal(t, "admin-1", sess.User.ID)
	assert.Equal(t, "admin@ville.fr", sess.User.Email)
	assert.Equal(t, models.RoleAdmin, sess.User.Role)
	assert.Len(t, sess.Token, 64)

	acc := f.accounts.GetByID("admin-1")
	require.NotNil(t, acc)
	require.NotNil(t, acc.LastLoginAt)
	assert.True(t, acc.LastLoginAt.Equal(f.clock.Now()))

	user := f.gw.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "admin-1", user.ID)
	assert.True(t, f.gw.HasRole(models.RoleAdmin))
	assert.False(t, f.gw.HasRole(models.RoleSuperAdmin))

	assert.Contains(t, f.events.Kinds(), models.EventSessionCreated)
	assert.Contains(t, f.events.Kinds(), models.EventLoginSuccess)
}

func TestSignIn_InvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name, email, password string
	}{
		{"empty email", "", "admin123"},
		{"empty password", "admin@ville.fr", ""},
		{"malformed email", "not-an-email", "admin123"},
		{"missing tld", "admin@ville", "admin123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gw.SignIn(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.True(t, apperrors.IsAuth(err))
		})
	}

	assert.Nil(t, f.gw.CurrentUser())
}

func TestSignIn_UnknownAndInactiveAccounts(t *testing.T) {
	f := newFixture(t)

	_, err := f.gw.SignIn(context.Background(), "nobody@ville.fr", "whatever123")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	f.accounts.Update("admin-1", func(a *models.AdminAccount) { a.IsActive = false })
	_, err = f.gw.SignIn(context.Background(), "admin@ville.fr", "admin123")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, msgInvalidCredentials, err.Error())
}

func TestSignIn_LockoutAfterThreeFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.gw.SignIn(ctx, "admin@ville.fr", "wrong")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	}
	assert.Equal(t, 2, f.accounts.GetByID("admin-1").FailedAttempts)

	_, err := f.gw.SignIn(ctx, "admin@ville.fr", "wrong")
	require.ErrorIs(t, err, apperrors.ErrAccountLocked)
	assert.Contains(t, err.Error(), "locked")
	assert.Contains(t, err.Error(), "30 minutes")
	assert.Contains(t, f.events.Kinds(), models.EventAccountLocked)

	acc := f.accounts.GetByID("admin-1")
	require.NotNil(t, acc.LockedUntil)
	assert.True(t, acc.LockedUntil.Equal(f.clock.Now().Add(30*time.Minute)))

	// The right password is refused while locked and the counter does not move.
	_, err = f.gw.SignIn(ctx, "admin@ville.fr", "admin123")
	assert.ErrorIs(t, err, apperrors.ErrAccountLocked)
	assert.Equal(t, 3, f.accounts.GetByID("admin-1").FailedAttempts)
	assert.Nil(t, f.gw.CurrentUser())

	f.clock.Advance(29 * time.Minute)
	_, err = f.gw.SignIn(ctx, "admin@ville.fr", "admin123")
	assert.ErrorIs(t, err, apperrors.ErrAccountLocked)

	f.clock.Advance(time.Minute)
	f.signIn(t, "admin@ville.fr", "admin123")

	acc = f.accounts.GetByID("admin-1")
	assert.Zero(t, acc.FailedAttempts)
	assert.Nil(t, acc.LockedUntil)
}

func TestSignIn_ShortPasswordCountsAsFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.gw.SignIn(context.Background(), "admin@ville.fr", "admin")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, 1, f.accounts.GetByID("admin-1").FailedAttempts)
}

func TestSignIn_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.gw.SignIn(ctx, "admin@ville.fr", "admin123")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "admin@ville.fr", "admin123")

	f.gw.SignOut()

	assert.Nil(t, f.gw.CurrentUser())
	assert.Contains(t, f.events.Kinds(), models.EventLogout)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.gw.ChangePassword(ctx, "admin123", "N3w&Secure!pass"), apperrors.ErrSessionExpired)

	f.signIn(t, "admin@ville.fr", "admin123")

	err := f.gw.ChangePassword(ctx, "not-it", "N3w&Secure!pass")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Contains(t, f.events.Kinds(), models.EventPasswordChangeFailed)

	err = f.gw.ChangePassword(ctx, "admin123", "weak")
	assert.True(t, apperrors.IsValidation(err))

	err = f.gw.ChangePassword(ctx, "admin123", "N3w&Secure!"+strings.Repeat("x", 73))
	assert.True(t, apperrors.IsValidation(err), "over-long password is a validation error, not a hashing failure")
	require.NotNil(t, f.gw.CurrentUser(), "failed change keeps the session")

	require.NoError(t, f.gw.ChangePassword(ctx, "admin123", "N3w&Secure!pass"))
	assert.Nil(t, f.gw.CurrentUser(), "password change ends the session")
	assert.Contains(t, f.events.Kinds(), models.EventPasswordChanged)

	_, err = f.gw.SignIn(ctx, "admin@ville.fr", "admin123")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	f.signIn(t, "admin@ville.fr", "N3w&Secure!pass")

	f.gw.Wait()
	reqs := f.mirror.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, remote.ActionChangePassword, reqs[0].Action)
	assert.Equal(t, "admin-1", reqs[0].UserID)
	assert.Equal(t, "N3w&Secure!pass", reqs[0].NewPassword)
}

func TestChangePassword_MirrorFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.mirror.err = errors.New("remote down")
	f.signIn(t, "admin@ville.fr", "admin123")

	require.NoError(t, f.gw.ChangePassword(context.Background(), "admin123", "N3w&Secure!pass"))
	f.gw.Wait()
	assert.Len(t, f.mirror.Requests(), 1)
}

func TestChangeEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signIn(t, "admin@ville.fr", "admin123")

	err := f.gw.ChangeEmail(ctx, "broken", "admin123")
	assert.True(t, apperrors.IsValidation(err))

	err = f.gw.ChangeEmail(ctx, "super.admin@ville.fr", "admin123")
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "already in use")

	err = f.gw.ChangeEmail(ctx, "maire@ville.fr", "wrong-password")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Contains(t, f.events.Kinds(), models.EventEmailChangeFailed)

	require.NoError(t, f.gw.ChangeEmail(ctx, "Maire@Ville.fr", "admin123"))
	assert.Contains(t, f.events.Kinds(), models.EventEmailChanged)

	user := f.gw.CurrentUser()
	require.NotNil(t, user, "email change keeps the session")
	assert.Equal(t, "maire@ville.fr", user.Email)
	assert.Nil(t, f.accounts.GetByEmail("admin@ville.fr"))
	assert.Equal(t, "admin-1", f.accounts.GetByEmail("maire@ville.fr").ID)

	f.gw.SignOut()
	_, err = f.gw.SignIn(ctx, "admin@ville.fr", "admin123")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	f.signIn(t, "maire@ville.fr", "admin123")

	f.gw.Wait()
	reqs := f.mirror.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, remote.ActionChangeEmail, reqs[0].Action)
	assert.Equal(t, "maire@ville.fr", reqs[0].NewEmail)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.signIn(t, "admin@ville.fr", "admin123")
	err := f.gw.ResetPassword(ctx, "admin-2", "R3set&Secure!pw")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Contains(t, f.events.Kinds(), models.EventPasswordResetFailed)
	f.gw.SignOut()

	// Lock the target before the reset to check the lock is cleared.
	for i := 0; i < 3; i++ {
		_, _ = f.gw.SignIn(ctx, "admin@ville.fr", "wrong")
	}
	require.True(t, f.accounts.GetByID("admin-1").LockedAt(f.clock.Now()))

	f.signIn(t, "super.admin@ville.fr", "superadmin123")

	assert.ErrorIs(t, f.gw.ResetPassword(ctx, "missing", "R3set&Secure!pw"), apperrors.ErrNotFound)
	assert.True(t, apperrors.IsValidation(f.gw.ResetPassword(ctx, "admin-1", "short")))

	require.NoError(t, f.gw.ResetPassword(ctx, "admin-1", "R3set&Secure!pw"))
	assert.Contains(t, f.events.Kinds(), models.EventPasswordReset)
	assert.NotNil(t, f.gw.CurrentUser(), "reset keeps the caller signed in")

	acc := f.accounts.GetByID("admin-1")
	assert.Zero(t, acc.FailedAttempts)
	assert.Nil(t, acc.LockedUntil)

	f.gw.SignOut()
	f.signIn(t, "admin@ville.fr", "R3set&Secure!pw")

	f.gw.Wait()
	reqs := f.mirror.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, remote.ActionResetUserPassword, reqs[0].Action)
	assert.Equal(t, "admin-1", reqs[0].TargetUserID)
	assert.Equal(t, "admin-2", reqs[0].AdminID)
}

func TestSessionExpiryEndsSignIn(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "admin@ville.fr", "admin123")

	f.clock.Advance(2 * time.Hour)

	assert.Nil(t, f.gw.CurrentUser())
	assert.Contains(t, f.events.Kinds(), models.EventSessionExpired)
	assert.ErrorIs(t, f.gw.ChangePassword(context.Background(), "admin123", "N3w&Secure!pass"), apperrors.ErrSessionExpired)
}
