// Package store is the local key/value persistence every repository builds on.
//
// The store is fail-soft: reads return a caller-supplied default on any
// problem and writes log their failures instead of returning them. A broken
// disk degrades the application to in-memory behaviour rather than crashing it.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Storage slots
const (
	KeyReports          = "reports"
	KeyAlerts           = "alerts"
	KeyContacts         = "contacts"
	KeyAdminAccounts    = "admin_accounts"
	KeyAdminCredentials = "admin_credentials"
	KeyCurrentSession   = "current_session"
	KeySecurityEvents   = "security_events"
	KeySyncOutbox       = "sync_outbox"
)

// Backend errors
var (
	ErrNotFound  = errors.New("key not found")
	ErrPersist   = errors.New("failed to persist")
	ErrCorrupted = errors.New("stored value corrupted")
)

// Backend holds raw JSON documents by key.
type Backend interface {
	// Read returns ErrNotFound when the key is absent.
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	// Delete of an absent key is not an error.
	Delete(key string) error
}

// LocalStore wraps a Backend with JSON encoding and fail-soft semantics.
type LocalStore struct {
	backend Backend
	log     logrus.FieldLogger
}

// New creates a LocalStore over backend.
func New(backend Backend, log logrus.FieldLogger) *LocalStore {
	return &LocalStore{
		backend: backend,
		log:     log.WithField("component", "store"),
	}
}

// Get decodes the value at key into a T. It returns def when the key is
// missing, the backend fails or the stored value does not decode.
func Get[T any](s *LocalStore, key string, def T) T {
	data, err := s.backend.Read(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.WithError(err).WithField("key", key).Warn("read failed, using default")
		}
		return def
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		s.log.WithError(fmt.Errorf("%w: %v", ErrCorrupted, err)).WithField("key", key).Warn("stored value is not valid JSON, using default")
		return def
	}
	return out
}

// Set encodes value as JSON and writes it under key. Failures are logged.
func (s *LocalStore) Set(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("failed to encode value")
		return
	}
	if err := s.backend.Write(key, data); err != nil {
		s.log.WithError(err).WithField("key", key).Error("failed to write value")
	}
}

// Remove deletes key. Removing a missing key is a no-op.
func (s *LocalStore) Remove(key string) {
	if err := s.backend.Delete(key); err != nil {
		s.log.WithError(err).WithField("key", key).Error("failed to remove value")
	}
}
