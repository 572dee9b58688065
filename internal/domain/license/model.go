package license

import (
	"time"

	"github.com/google/uuid"
)

// License is a professional registration held by a user, such as a
// provincial medical license.
type License struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	Number       string     `db:"number" json:"number"`
	Jurisdiction *string    `db:"jurisdiction" json:"jurisdiction,omitempty"`
	Specialty    *string    `db:"specialty" json:"specialty,omitempty"`
	IssuedAt     *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	LegacyID     *string    `db:"legacy_id" json:"legacy_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// IsActive reports whether the license is in force at now. A license with no
// issue date counts as issued; one with no expiry never expires.
func (l *License) IsActive(now time.Time) bool {
	if l.DeletedAt != nil {
		return false
	}
	if l.IssuedAt != nil && now.Before(*l.IssuedAt) {
		return false
	}
	return l.ExpiresAt == nil || now.Before(*l.ExpiresAt)
}
