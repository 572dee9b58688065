package appointment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StatusBooked    = "booked"
	StatusArrived   = "arrived"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
	StatusNoShow    = "noshow"
)

// transitions lists the statuses reachable from each status. Fulfilled,
// cancelled and noshow are final.
var transitions = map[string][]string{
	StatusBooked:    {StatusArrived, StatusCancelled, StatusNoShow},
	StatusArrived:   {StatusFulfilled, StatusCancelled},
	StatusFulfilled: nil,
	StatusCancelled: nil,
	StatusNoShow:    nil,
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// IsActive reports whether an appointment in status s still holds its slot.
func IsActive(s string) bool {
	return s == StatusBooked || s == StatusArrived
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	PatientID uuid.UUID       `db:"patient_id" json:"patient_id"`
	MedicID   uuid.UUID       `db:"medic_id" json:"medic_id"`
	StartAt   time.Time       `db:"start_at" json:"start_at"`
	Status    string          `db:"status" json:"status"`
	Extra     json.RawMessage `db:"extra" json:"extra,omitempty"`
	LegacyID  *string         `db:"legacy_id" json:"legacy_id,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

type StatusInput struct {
	Status string `json:"status" validate:"required"`
}
