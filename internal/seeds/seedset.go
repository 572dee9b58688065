package seeds

import (
	"time"

	"github.com/google/uuid"

	"github.com/medapp/medapp/internal/domain/appointment"
	"github.com/medapp/medapp/internal/domain/encounter"
	"github.com/medapp/medapp/internal/domain/license"
	"github.com/medapp/medapp/internal/domain/patient"
	"github.com/medapp/medapp/internal/domain/study"
	"github.com/medapp/medapp/internal/domain/user"
)

// Namespace seeds the deterministic ids of generated records, so that
// running the pipeline twice over the same dump yields the same ids.
var Namespace = uuid.MustParse("3f0c9a4e-6b1d-5c2e-8f7a-0d4b6e1c9a25")

func seedID(entity, legacyID string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(entity+":"+legacyID))
}

// UserSeed carries the password hash, which user.User never serializes.
type UserSeed struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Roles        []string   `json:"roles"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        *string    `json:"email,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	Specialty    *string    `json:"specialty,omitempty"`
	LegacyID     *string    `json:"legacy_id,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func (s *UserSeed) User() *user.User {
	return &user.User{
		ID:           s.ID,
		Username:     s.Username,
		PasswordHash: s.PasswordHash,
		Roles:        s.Roles,
		FirstName:    s.FirstName,
		LastName:     s.LastName,
		Email:        s.Email,
		Phone:        s.Phone,
		Specialty:    s.Specialty,
		LegacyID:     s.LegacyID,
		DeletedAt:    s.DeletedAt,
	}
}

// SeedSet is the relational seed produced from a legacy dump.
type SeedSet struct {
	Users        []*UserSeed
	Licenses     []*license.License
	Patients     []*patient.Patient
	Encounters   []*encounter.Encounter
	Appointments []*appointment.Appointment
	Studies      []*study.Study
	Results      []*study.Result
}

func (s *SeedSet) Counts() map[string]int {
	return map[string]int{
		EntityUser:        len(s.Users),
		EntityLicense:     len(s.Licenses),
		EntityPatient:     len(s.Patients),
		EntityEncounter:   len(s.Encounters),
		EntityAppointment: len(s.Appointments),
		EntityStudy:       len(s.Studies),
		EntityResult:      len(s.Results),
	}
}
