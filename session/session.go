// Package session issues, renews and expires the administrator session.
//
// A session dies at an absolute deadline fixed at creation or after a period
// of inactivity, whichever comes first. Every successful validation slides
// the inactivity window; nothing ever moves the absolute deadline.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"cityreport/audit"
	"cityreport/metrics"
	"cityreport/models"
	"cityreport/store"

	"github.com/sirupsen/logrus"
)

// Default lifetimes
const (
	DefaultAbsoluteTTL   = 8 * time.Hour
	DefaultInactivityTTL = 2 * time.Hour
)

// TokenBytes is the amount of randomness in a session token.
const TokenBytes = 32

// Manager owns the current_session slot.
type Manager struct {
	mu            sync.Mutex
	store         *store.LocalStore
	audit         audit.Emitter
	absoluteTTL   time.Duration
	inactivityTTL time.Duration
	now           func() time.Time
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithAuditor routes session events to e.
func WithAuditor(e audit.Emitter) Option {
	return func(m *Manager) { m.audit = e }
}

// WithTTL overrides the default lifetimes. Non-positive values are ignored.
func WithTTL(absolute, inactivity time.Duration) Option {
	return func(m *Manager) {
		if absolute > 0 {
			m.absoluteTTL = absolute
		}
		if inactivity > 0 {
			m.inactivityTTL = inactivity
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics counts expired sessions.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger sets the manager logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a Manager over s.
func NewManager(s *store.LocalStore, opts ...Option) *Manager {
	m := &Manager{
		store:         s,
		absoluteTTL:   DefaultAbsoluteTTL,
		inactivityTTL: DefaultInactivityTTL,
		now:           time.Now,
		log:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("component", "session")
	return m
}

func newToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create starts a new session for user, replacing any existing one.
func (m *Manager) Create(user models.SessionUser) (*models.Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	sess := &models.Session{
		User:         user,
		Token:        token,
		ExpiresAt:    now.Add(m.absoluteTTL),
		LastActivity: now,
	}
	m.store.Set(store.KeyCurrentSession, sess)

	m.emit(models.EventSessionCreated, user.Email, "")
	m.log.WithField("user_id", user.ID).Info("session created")
	return sess, nil
}

// Current returns the live session, sliding its inactivity window, or nil
// if there is none. An expired session is destroyed on the way.
func (m *Manager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.validLocked()
	if sess == nil {
		return nil
	}
	sess.LastActivity = m.now().UTC()
	m.store.Set(store.KeyCurrentSession, sess)
	return sess
}

// Authenticate returns the live session only if token matches it.
func (m *Manager) Authenticate(token string) *models.Session {
	if token == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.validLocked()
	if sess == nil || subtle.ConstantTimeCompare([]byte(sess.Token), []byte(token)) != 1 {
		return nil
	}
	sess.LastActivity = m.now().UTC()
	m.store.Set(store.KeyCurrentSession, sess)
	return sess
}

// AuthenticateDigest is Authenticate for callers holding only TokenDigest(token),
// such as a bearer JWT.
func (m *Manager) AuthenticateDigest(digest string) *models.Session {
	if digest == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.validLocked()
	if sess == nil || subtle.ConstantTimeCompare([]byte(TokenDigest(sess.Token)), []byte(digest)) != 1 {
		return nil
	}
	sess.LastActivity = m.now().UTC()
	m.store.Set(store.KeyCurrentSession, sess)
	return sess
}

// TokenDigest is the hex SHA-256 of a session token.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Update applies fn to the live session and persists it. It returns nil
// when there is no live session.
func (m *Manager) Update(fn func(*models.Session)) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.validLocked()
	if sess == nil {
		return nil
	}
	fn(sess)
	m.store.Set(store.KeyCurrentSession, sess)
	return sess
}

// Destroy ends the current session.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.loadLocked()
	if sess == nil {
		return
	}
	m.store.Remove(store.KeyCurrentSession)

	m.emit(models.EventLogout, sess.User.Email, "")
	m.log.WithField("user_id", sess.User.ID).Info("session destroyed")
}

// Reap destroys the session if it has expired, without counting as activity.
// It reports whether a session was reaped.
func (m *Manager) Reap() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadLocked() == nil {
		return false
	}
	return m.validLocked() == nil
}

// Peek returns the live session without sliding it.
func (m *Manager) Peek() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked()
}

// Strength grades the current session without sliding it.
func (m *Manager) Strength() Strength {
	return StrengthAt(m.Peek(), m.now())
}

func (m *Manager) loadLocked() *models.Session {
	return store.Get[*models.Session](m.store, store.KeyCurrentSession, nil)
}

// validLocked loads the session and expires it if needed.
func (m *Manager) validLocked() *models.Session {
	sess := m.loadLocked()
	if sess == nil || sess.Token == "" {
		return nil
	}

	now := m.now()
	reason := ""
	switch {
	case !now.Before(sess.ExpiresAt):
		reason = "absolute"
	case now.Sub(sess.LastActivity) >= m.inactivityTTL:
		reason = "inactivity"
	}
	if reason == "" {
		return sess
	}

	m.store.Remove(store.KeyCurrentSession)
	m.metrics.SessionExpired()
	m.emit(models.EventSessionExpired, sess.User.Email, reason)
	m.log.WithFields(logrus.Fields{"user_id": sess.User.ID, "reason": reason}).Info("session expired")
	return nil
}

func (m *Manager) emit(kind models.EventKind, subject, detail string) {
	if m.audit != nil {
		m.audit.Emit(kind, subject, detail)
	}
}
