package study

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Panels are the laboratory panels a study can order.
var Panels = []string{
	"hemogram",
	"biochemistry",
	"lipid_profile",
	"hepatic",
	"renal",
	"thyroid",
	"coagulation",
	"urinalysis",
	"serology",
	"glycemic",
}

// ValidPanel reports whether p is one of Panels.
func ValidPanel(p string) bool {
	for _, known := range Panels {
		if p == known {
			return true
		}
	}
	return false
}

type Study struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicID       *uuid.UUID `db:"medic_id" json:"medic_id,omitempty"`
	Date          time.Time  `db:"date" json:"date"`
	Types         []string   `db:"types" json:"types"`
	NoOrderNumber bool       `db:"no_order_number" json:"no_order_number"`
	LegacyID      *string    `db:"legacy_id" json:"legacy_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`

	Results []*Result `db:"-" json:"results,omitempty"`
}

// HasType reports whether the study ordered panel t.
func (s *Study) HasType(t string) bool {
	for _, x := range s.Types {
		if x == t {
			return true
		}
	}
	return false
}

// Result holds the values reported for one panel of a study.
type Result struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	StudyID   uuid.UUID       `db:"study_id" json:"study_id"`
	Type      string          `db:"type" json:"type"`
	Data      json.RawMessage `db:"data" json:"data"`
	LegacyID  *string         `db:"legacy_id" json:"legacy_id,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}
