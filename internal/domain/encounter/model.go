package encounter

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Forms holds the clinical forms filled during an encounter, keyed by form
// name. The backend treats each form as an opaque JSON document.
type Forms map[string]json.RawMessage

type Encounter struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicID   uuid.UUID  `db:"medic_id" json:"medic_id"`
	Date      time.Time  `db:"date" json:"date"`
	Insurance *string    `db:"insurance" json:"insurance,omitempty"`
	Data      Forms      `db:"data" json:"data"`
	LegacyID  *string    `db:"legacy_id" json:"legacy_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// FormNames returns the names of the forms present in the encounter.
func (e *Encounter) FormNames() []string {
	names := make([]string, 0, len(e.Data))
	for name := range e.Data {
		names = append(names, name)
	}
	return names
}
