// Package idgen generates entity identifiers: a millisecond time prefix
// followed by random bits (ULID).
package idgen

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// New generates a new lower-case ULID.
func New() string {
	return NewFromTime(time.Now())
}

// NewFromTime generates a new ULID with a specific timestamp.
func NewFromTime(t time.Time) string {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return strings.ToLower(id.String())
}

// IsValid checks if a string is a valid ULID.
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(strings.ToUpper(s))
	return err == nil
}

// Time extracts the timestamp from an ID.
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(strings.ToUpper(s))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}
