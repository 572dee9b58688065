package seeds

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	EntityUser        = "user"
	EntityLicense     = "license"
	EntityPatient     = "patient"
	EntityEncounter   = "encounter"
	EntityAppointment = "appointment"
	EntityStudy       = "study"
	EntityResult      = "result"
)

// collectionEntity maps a legacy collection to the entity it seeds.
var collectionEntity = map[string]string{
	CollUsers:        EntityUser,
	CollLicenses:     EntityLicense,
	CollPatients:     EntityPatient,
	CollEncounters:   EntityEncounter,
	CollAppointments: EntityAppointment,
	CollStudies:      EntityStudy,
	CollResults:      EntityResult,
}

// Reasons recorded in the report.
const (
	ReasonMalformedDocument = "malformed_document"
	ReasonMissingID         = "missing_id"
	ReasonDuplicateID       = "duplicate_id"
	ReasonMissingUsername   = "missing_username"
	ReasonUserAliased       = "user_aliased"
	ReasonDefaultRole       = "default_role"
	ReasonPasswordReset     = "password_reset_required"
	ReasonUnresolvedUser    = "unresolved_user"
	ReasonMissingNumber     = "missing_number"
	ReasonInvalidExpiry     = "invalid_expiry"
	ReasonPatientMerged     = "patient_merged"
	ReasonRescuedByRef      = "rescued_by_reference_document"
	ReasonRescuedBySnapshot = "rescued_by_snapshot_document"
	ReasonSynthesized       = "patient_synthesized"
	ReasonUnresolvedPatient = "unresolved_patient"
	ReasonMissingPatient    = "missing_patient"
	ReasonUnresolvedMedic   = "unresolved_medic"
	ReasonMedicDropped      = "medic_dropped"
	ReasonMissingDate       = "missing_date"
	ReasonDuplicateAppt     = "duplicate_appointment"
	ReasonSlotTaken         = "slot_taken"
	ReasonUnknownStatus     = "unknown_status"
	ReasonUnknownStudyType  = "unknown_study_type"
	ReasonStudyTypeAdded    = "study_type_added"
	ReasonUnresolvedStudy   = "unresolved_study"
	ReasonNoStudyTypes      = "no_study_types"
)

// Issue is one record the pipeline skipped or altered.
type Issue struct {
	Entity   string `json:"entity"`
	LegacyID string `json:"legacy_id,omitempty"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// Report summarizes a Build run. It is written next to the seed files.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Missing     []string       `json:"missing_collections,omitempty"`
	Read        map[string]int `json:"read"`
	Written     map[string]int `json:"written"`
	Reasons     map[string]int `json:"reasons"`
	Skipped     []Issue        `json:"skipped"`
	Changes     []Issue        `json:"changes"`

	log zerolog.Logger
}

func newReport(log zerolog.Logger, now time.Time) *Report {
	return &Report{
		GeneratedAt: now,
		Read:        map[string]int{},
		Written:     map[string]int{},
		Reasons:     map[string]int{},
		Skipped:     []Issue{},
		Changes:     []Issue{},
		log:         log,
	}
}

// skip records a legacy record that produced no seed.
func (r *Report) skip(entity, legacyID, reason, detail string) {
	r.Reasons[reason]++
	r.Skipped = append(r.Skipped, Issue{Entity: entity, LegacyID: legacyID, Reason: reason, Detail: detail})
	r.log.Warn().Str("entity", entity).Str("legacy_id", legacyID).Str("reason", reason).Str("detail", detail).
		Msg("record skipped")
}

// change records a legacy record that was kept but altered, merged or
// synthesized.
func (r *Report) change(entity, legacyID, reason, detail string) {
	r.Reasons[reason]++
	r.Changes = append(r.Changes, Issue{Entity: entity, LegacyID: legacyID, Reason: reason, Detail: detail})
	r.log.Info().Str("entity", entity).Str("legacy_id", legacyID).Str("reason", reason).Str("detail", detail).
		Msg("record changed")
}

// Skips returns how many records were skipped for reason.
func (r *Report) Skips(reason string) int {
	n := 0
	for _, is := range r.Skipped {
		if is.Reason == reason {
			n++
		}
	}
	return n
}
