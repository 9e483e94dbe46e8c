package session

import (
	"time"

	"cityreport/models"
)

// Strength is a coarse grade of how fresh a session is.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// StrengthAt grades sess at time now from its idle time and remaining lifetime.
func StrengthAt(sess *models.Session, now time.Time) Strength {
	if sess == nil {
		return StrengthWeak
	}

	idle := now.Sub(sess.LastActivity)
	left := sess.ExpiresAt.Sub(now)

	switch {
	case idle < 30*time.Minute && left > 6*time.Hour:
		return StrengthStrong
	case idle < time.Hour && left > 2*time.Hour:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}
