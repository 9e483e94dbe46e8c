// models.go
// Defines the core data structures persisted in the local store and mirrored to the remote service.

package models

import (
	"time"
)

// ReportStatus is the processing state of a citizen report.
type ReportStatus string

const (
	StatusNew        ReportStatus = "new"
	StatusInProgress ReportStatus = "in_progress"
	StatusResolved   ReportStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// ReportPriority orders reports for the municipal staff.
type ReportPriority string

const (
	PriorityLow    ReportPriority = "low"
	PriorityMedium ReportPriority = "medium"
	PriorityHigh   ReportPriority = "high"
)

// Valid reports whether p is a known priority.
func (p ReportPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Report is a citizen-submitted issue.
type Report struct {
	ID          string `firestore:"id" json:"id"`
	Category    string `firestore:"category" json:"category"`
	Description string `firestore:"description" json:"description"`

	// === Location ===
	LocationText      string     `firestore:"location_text" json:"location_text"`
	Latitude          *float64   `firestore:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude         *float64   `firestore:"longitude,omitempty" json:"longitude,omitempty"`
	LocationAccuracy  *float64   `firestore:"location_accuracy,omitempty" json:"location_accuracy,omitempty"` // meters
	LocationTimestamp *time.Time `firestore:"location_timestamp,omitempty" json:"location_timestamp,omitempty"`

	Status   ReportStatus   `firestore:"status" json:"status"`
	Priority ReportPriority `firestore:"priority" json:"priority"`

	CitizenName  string `firestore:"citizen_name,omitempty" json:"citizen_name,omitempty"`
	CitizenEmail string `firestore:"citizen_email,omitempty" json:"citizen_email,omitempty"`
	PhotosCount  int    `firestore:"photos_count" json:"photos_count"`

	CreatedAt time.Time `firestore:"created_at" json:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at" json:"updated_at"`
}

// RecordID returns the report identifier.
func (r Report) RecordID() string { return r.ID }

// ReportInput carries the caller-supplied fields of a new report.
// Zero values for Status and Priority select the defaults.
type ReportInput struct {
	Category          string         `json:"category" validate:"required"`
	Description       string         `json:"description" validate:"required"`
	LocationText      string         `json:"location_text"`
	Latitude          *float64       `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude         *float64       `json:"longitude,omitempty" validate:"omitempty,longitude"`
	LocationAccuracy  *float64       `json:"location_accuracy,omitempty" validate:"omitempty,gte=0"`
	LocationTimestamp *time.Time     `json:"location_timestamp,omitempty"`
	Status            ReportStatus   `json:"status,omitempty" validate:"omitempty,oneof=new in_progress resolved"`
	Priority          ReportPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	CitizenName       string         `json:"citizen_name,omitempty"`
	CitizenEmail      string         `json:"citizen_email,omitempty" validate:"omitempty,email"`
	PhotosCount       int            `json:"photos_count" validate:"gte=0"`
}

// ReportPatch lists the fields an update may change; nil means unchanged.
type ReportPatch struct {
	Category          *string         `json:"category,omitempty"`
	Description       *string         `json:"description,omitempty"`
	LocationText      *string         `json:"location_text,omitempty"`
	Latitude          *float64        `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude         *float64        `json:"longitude,omitempty" validate:"omitempty,longitude"`
	LocationAccuracy  *float64        `json:"location_accuracy,omitempty" validate:"omitempty,gte=0"`
	LocationTimestamp *time.Time      `json:"location_timestamp,omitempty"`
	Status            *ReportStatus   `json:"status,omitempty" validate:"omitempty,oneof=new in_progress resolved"`
	Priority          *ReportPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	CitizenName       *string         `json:"citizen_name,omitempty"`
	CitizenEmail      *string         `json:"citizen_email,omitempty" validate:"omitempty,email"`
	PhotosCount       *int            `json:"photos_count,omitempty" validate:"omitempty,gte=0"`
}

// AlertType is the severity of a public alert.
type AlertType string

const (
	AlertInfo      AlertType = "info"
	AlertWarning   AlertType = "warning"
	AlertEmergency AlertType = "emergency"
)

// DefaultAlertAuthor signs alerts created without an explicit author.
const DefaultAlertAuthor = "Administration"

// Alert is a public announcement published by the administration.
type Alert struct {
	ID        string     `firestore:"id" json:"id"`
	Title     string     `firestore:"title" json:"title"`
	Message   string     `firestore:"message" json:"message"`
	Type      AlertType  `firestore:"type" json:"type"`
	IsActive  bool       `firestore:"is_active" json:"is_active"`
	ExpiresAt *time.Time `firestore:"expires_at,omitempty" json:"expires_at,omitempty"`
	Author    string     `firestore:"author" json:"author"`
	CreatedAt time.Time  `firestore:"created_at" json:"created_at"`
	UpdatedAt time.Time  `firestore:"updated_at" json:"updated_at"`
}

// RecordID returns the alert identifier.
func (a Alert) RecordID() string { return a.ID }

// ActiveAt reports whether the alert is shown at time now.
func (a Alert) ActiveAt(now time.Time) bool {
	return a.IsActive && (a.ExpiresAt == nil || now.Before(*a.ExpiresAt))
}

// AlertInput carries the caller-supplied fields of a new alert.
type AlertInput struct {
	Title     string     `json:"title" validate:"required"`
	Message   string     `json:"message" validate:"required"`
	Type      AlertType  `json:"type,omitempty" validate:"omitempty,oneof=info warning emergency"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Author    string     `json:"author,omitempty"`
}

// AlertPatch lists the fields an update may change; nil means unchanged.
type AlertPatch struct {
	Title     *string    `json:"title,omitempty"`
	Message   *string    `json:"message,omitempty"`
	Type      *AlertType `json:"type,omitempty" validate:"omitempty,oneof=info warning emergency"`
	IsActive  *bool      `json:"is_active,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Author    *string    `json:"author,omitempty"`
}

// ContactCategory groups emergency contacts.
type ContactCategory string

const (
	ContactPolice    ContactCategory = "police"
	ContactFire      ContactCategory = "fire"
	ContactMedical   ContactCategory = "medical"
	ContactMunicipal ContactCategory = "municipal"
	ContactOther     ContactCategory = "other"
)

// Contact is a public phone directory entry.
type Contact struct {
	ID        string          `firestore:"id" json:"id"`
	Name      string          `firestore:"name" json:"name"`
	Phone     string          `firestore:"phone" json:"phone"`
	Email     string          `firestore:"email,omitempty" json:"email,omitempty"`
	Category  ContactCategory `firestore:"category" json:"category"`
	IsActive  bool            `firestore:"is_active" json:"is_active"`
	CreatedAt time.Time       `firestore:"created_at" json:"created_at"`
	UpdatedAt time.Time       `firestore:"updated_at" json:"updated_at"`
}

// RecordID returns the contact identifier.
func (c Contact) RecordID() string { return c.ID }

// ContactInput carries the caller-supplied fields of a new contact.
type ContactInput struct {
	Name     string          `json:"name" validate:"required"`
	Phone    string          `json:"phone" validate:"required"`
	Email    string          `json:"email,omitempty" validate:"omitempty,email"`
	Category ContactCategory `json:"category,omitempty" validate:"omitempty,oneof=police fire medical municipal other"`
}

// ContactPatch lists the fields an update may change; nil means unchanged.
type ContactPatch struct {
	Name     *string          `json:"name,omitempty"`
	Phone    *string          `json:"phone,omitempty"`
	Email    *string          `json:"email,omitempty" validate:"omitempty,email"`
	Category *ContactCategory `json:"category,omitempty" validate:"omitempty,oneof=police fire medical municipal other"`
	IsActive *bool            `json:"is_active,omitempty"`
}

// UserRole defines the access level of an administrator.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "super-admin"
)

// AdminAccount is an administrator allowed to sign in.
// The password hash lives in a separate slot keyed by email.
type AdminAccount struct {
	ID             string     `firestore:"id" json:"id"`
	Email          string     `firestore:"email" json:"email"`
	Role           UserRole   `firestore:"role" json:"role"`
	FullName       string     `firestore:"full_name" json:"full_name"`
	IsActive       bool       `firestore:"is_active" json:"is_active"`
	FailedAttempts int        `firestore:"failed_attempts" json:"failed_attempts"`
	LockedUntil    *time.Time `firestore:"locked_until,omitempty" json:"locked_until,omitempty"`
	LastLoginAt    *time.Time `firestore:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `firestore:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `firestore:"updated_at" json:"updated_at"`
}

// RecordID returns the account identifier.
func (a AdminAccount) RecordID() string { return a.ID }

// LockedAt reports whether sign-in is refused at time now.
func (a AdminAccount) LockedAt(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// SessionUser is the snapshot of the account stored in a session.
type SessionUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
}

// Session is the single live administrator session of this installation.
type Session struct {
	User         SessionUser `json:"user"`
	Token        string      `json:"token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	LastActivity time.Time   `json:"last_activity"`
}

// EventKind names a security-relevant occurrence.
type EventKind string

const (
	EventLoginSuccess         EventKind = "LOGIN_SUCCESS"
	EventLoginFailed          EventKind = "LOGIN_FAILED"
	EventAccountLocked        EventKind = "ACCOUNT_LOCKED"
	EventSessionCreated       EventKind = "SESSION_CREATED"
	EventSessionExpired       EventKind = "SESSION_EXPIRED"
	EventLogout               EventKind = "LOGOUT"
	EventPasswordChanged      EventKind = "PASSWORD_CHANGED"
	EventPasswordChangeFailed EventKind = "PASSWORD_CHANGE_FAILED"
	EventEmailChanged         EventKind = "EMAIL_CHANGED"
	EventEmailChangeFailed    EventKind = "EMAIL_CHANGE_FAILED"
	EventPasswordReset        EventKind = "PASSWORD_RESET_BY_ADMIN"
	EventPasswordResetFailed  EventKind = "PASSWORD_RESET_FAILED"
)

// SecurityEvent is an append-only audit record.
type SecurityEvent struct {
	ID        string    `firestore:"id" json:"id"`
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
	Kind      EventKind `firestore:"kind" json:"kind"`
	Subject   string    `firestore:"subject" json:"subject"`
	Detail    string    `firestore:"detail,omitempty" json:"detail,omitempty"`
}
