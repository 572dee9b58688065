package patient

import (
	"time"

	"github.com/google/uuid"
)

var validGenders = map[string]bool{"male": true, "female": true, "other": true, "unknown": true}

type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	DocumentType   *string    `db:"document_type" json:"document_type,omitempty"`
	DocumentNumber *string    `db:"document_number" json:"document_number,omitempty"`
	DocumentIndex  *string    `db:"document_index" json:"-"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender         *string    `db:"gender" json:"gender,omitempty"`
	Nationality    *string    `db:"nationality" json:"nationality,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	City           *string    `db:"city" json:"city,omitempty"`
	Province       *string    `db:"province" json:"province,omitempty"`
	Insurer        *string    `db:"insurer" json:"insurer,omitempty"`
	InsurerNumber  *string    `db:"insurer_number" json:"insurer_number,omitempty"`
	InsurerPlan    *string    `db:"insurer_plan" json:"insurer_plan,omitempty"`
	SearchName     string     `db:"search_name" json:"-"`
	Synthesized    bool       `db:"synthesized" json:"synthesized"`
	LegacyID       *string    `db:"legacy_id" json:"legacy_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}
