package seeds

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medapp/medapp/internal/domain/appointment"
	"github.com/medapp/medapp/internal/domain/patient"
	"github.com/medapp/medapp/internal/platform/auth"
)

const legacyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func decode[T any](t *testing.T, s string) []T {
	t.Helper()
	docs, bad, err := decodeDocs[T](strings.NewReader(s))
	require.NoError(t, err)
	require.Empty(t, bad)
	return docs
}

func fixtureDump(t *testing.T) *Dump {
	return &Dump{
		Users: decode[LegacyUser](t, `
{"_id":{"$oid":"u1"},"username":"jperez","password":"`+legacyHash+`","roles":["Médico"],"firstName":"JUAN","lastName":"PÉREZ","createdAt":{"$date":"2018-01-10T00:00:00Z"}}
{"_id":{"$oid":"u2"},"username":" JPerez","roles":["admin"],"createdAt":{"$date":"2019-01-10T00:00:00Z"}}
{"_id":{"$oid":"u3"},"username":"mgomez","roles":"nurse","createdAt":{"$date":"2018-06-01T00:00:00Z"}}
{"_id":{"$oid":"u4"},"username":""}
`),
		Licenses: decode[LegacyLicense](t, `
{"_id":"l1","user":{"$oid":"u2"},"number":"MP-1234","issuedAt":{"$date":"2015-01-01T00:00:00Z"},"expiresAt":{"$date":"2014-01-01T00:00:00Z"}}
{"_id":"l2","user":{"$oid":"ghost"},"number":"MP-9"}
{"_id":"l3","user":{"$oid":"u1"},"number":""}
`),
		Patients: decode[LegacyPatient](t, `
{"_id":"p1","firstName":"ANA","lastName":"GARCIA","documentValue":"20.123.456","createdAt":{"$date":"2017-01-01T00:00:00Z"}}
{"_id":"p2","firstName":"Ana María","lastName":"García","documentValue":20123456,"phone":"555-1234","email":"Ana@Mail.com","birthDate":{"$date":"1980-05-02T00:00:00Z"},"createdAt":{"$date":"2016-01-01T00:00:00Z"},"deletedAt":{"$date":"2020-01-01T00:00:00Z"}}
{"_id":"p3","firstName":"luis","lastName":"díaz","birthDate":"1975-01-01","createdAt":{"$date":"2018-01-01T00:00:00Z"}}
{"_id":"p4","firstName":"Luis","lastName":"Diaz","birthDate":"1975-01-01","city":"Rosario","gender":"M","createdAt":{"$date":"2017-01-01T00:00:00Z"}}
{"_id":"p5","firstName":"Solo","lastName":"Uno"}
`),
		Encounters: decode[LegacyEncounter](t, `
{"_id":"e1","patient":"p3","medic":"u1","date":"2021-01-01T10:00:00Z","data":{"anamnesis":{"reason":"control"}}}
{"_id":"e2","patient":"20123456","medic":"u2","date":"2021-01-02T10:00:00Z"}
{"_id":"e3","patient":"ghost1","medic":"u1","date":"2021-01-03T10:00:00Z","patientInfo":{"documentValue":"20.123.456"}}
{"_id":"e4","patient":"ghost2","medic":"u1","date":"2021-01-04T10:00:00Z","patientInfo":{"firstName":"pedro","lastName":"lopez","documentValue":"30999888"}}
{"_id":"e5","patient":"ghost2","medic":"u1","date":"2021-01-05T10:00:00Z"}
{"_id":"e6","patient":"p1","medic":"nobody","date":"2021-01-06T10:00:00Z"}
{"_id":"e7","patient":"p1","medic":"u1"}
`),
		Appointments: decode[LegacyAppointment](t, `
{"_id":"a1","patient":"p1","medic":"u1","startDate":"2024-03-04T09:30:00Z","status":"confirmed","createdAt":{"$date":"2024-01-01T00:00:00Z"}}
{"_id":"a2","patient":"p2","medic":"u1","startDate":"2024-03-04T09:30:00Z","createdAt":{"$date":"2024-01-02T00:00:00Z"}}
{"_id":"a3","patient":"p5","medic":"u1","startDate":"2024-03-04T09:30:00Z","status":"booked","createdAt":{"$date":"2024-01-03T00:00:00Z"}}
{"_id":"a4","patient":"p5","medic":"u1","startDate":"2024-03-04T09:30:00Z","status":"canceled","createdAt":{"$date":"2024-01-04T00:00:00Z"}}
{"_id":"a5","patient":"ghost3","medic":"u1","startDate":"2024-03-05T09:30:00Z","createdAt":{"$date":"2024-01-05T00:00:00Z"}}
`),
		Studies: decode[LegacyStudy](t, `
{"_id":"s1","patient":"p1","medic":"u1","date":"2022-02-02","types":["Hemogram","tarot"]}
{"_id":"s2","patient":"p4","medic":"gone","date":"2022-02-03","types":"thyroid"}
`),
		Results: decode[LegacyResult](t, `
{"_id":"r1","study":"s1","type":"hemogram","data":{"hb":13.2}}
{"_id":"r2","study":"s1","type":"renal"}
{"_id":"r3","study":"nostudy","type":"hemogram"}
{"_id":"r4","study":"s2","type":"tarot"}
`),
	}
}

func buildFixture(t *testing.T, opts Options) (*SeedSet, *Report) {
	t.Helper()
	return Build(fixtureDump(t), opts)
}

func patientByLegacyID(set *SeedSet, id string) *patient.Patient {
	for _, p := range set.Patients {
		if p.LegacyID != nil && *p.LegacyID == id {
			return p
		}
	}
	return nil
}

func TestBuild_Users(t *testing.T) {
	set, rep := buildFixture(t, DefaultOptions())

	require.Len(t, set.Users, 2)
	jp := set.Users[0]
	assert.Equal(t, "jperez", jp.Username)
	assert.Equal(t, "u1", *jp.LegacyID, "earliest account keeps the username")
	assert.Equal(t, []string{auth.RoleMedic}, jp.Roles)
	assert.Equal(t, legacyHash, jp.PasswordHash)
	assert.Equal(t, "Juan", jp.FirstName)
	assert.Equal(t, "Pérez", jp.LastName)

	mg := set.Users[1]
	assert.Equal(t, []string{auth.RoleReceptionist}, mg.Roles)
	assert.Equal(t, unusablePassword, mg.PasswordHash)

	assert.Equal(t, 1, rep.Reasons[ReasonUserAliased])
	assert.Equal(t, 1, rep.Skips(ReasonMissingUsername))
}

func TestBuild_Licenses(t *testing.T) {
	set, rep := buildFixture(t, DefaultOptions())

	require.Len(t, set.Licenses, 1)
	l := set.Licenses[0]
	assert.Equal(t, set.Users[0].ID, l.UserID, "license of an aliased user goes to the canonical user")
	assert.Nil(t, l.ExpiresAt)
	assert.Equal(t, 1, rep.Reasons[ReasonInvalidExpiry])
	assert.Equal(t, 1, rep.Skips(ReasonUnresolvedUser))
	assert.Equal(t, 1, rep.Skips(ReasonMissingNumber))
}

func TestBuild_LicenseExpiringOnIssueDay(t *testing.T) {
	d := &Dump{
		Users: decode[LegacyUser](t, `{"_id":"u1","username":"jperez","roles":["medic"]}`),
		Licenses: decode[LegacyLicense](t, `
{"_id":"l1","user":"u1","number":"MP-1","issuedAt":"2020-01-01T08:00:00Z","expiresAt":"2020-01-01T20:00:00Z"}
{"_id":"l2","user":"u1","number":"MP-2","issuedAt":"2020-01-01T08:00:00Z","expiresAt":"2020-01-02T01:00:00Z"}
`),
	}
	set, rep := Build(d, DefaultOptions())

	require.Len(t, set.Licenses, 2)
	assert.Nil(t, set.Licenses[0].ExpiresAt, "same calendar day is not a valid window")
	assert.NotNil(t, set.Licenses[1].ExpiresAt)
	assert.Equal(t, 1, rep.Reasons[ReasonInvalidExpiry])
}

func TestBuild_PatientIdentityResolution(t *testing.T) {
	set, rep := buildFixture(t, DefaultOptions())

	ana := patientByLegacyID(set, "p1")
	require.NotNil(t, ana, "live record wins over a more complete deleted one")
	assert.Nil(t, patientByLegacyID(set, "p2"))
	assert.Nil(t, ana.DeletedAt)
	assert.Equal(t, "Ana", ana.FirstName)
	assert.Equal(t, "Garcia", ana.LastName)
	require.NotNil(t, ana.Phone)
	assert.Equal(t, "555-1234", *ana.Phone, "empty fields are filled from merged records")
	require.NotNil(t, ana.BirthDate)
	assert.Equal(t, "1980-05-02", ana.BirthDate.Format("2006-01-02"))
	assert.Equal(t, "ana@mail.com", *ana.Email)

	luis := patientByLegacyID(set, "p4")
	require.NotNil(t, luis, "name and birth date match, most complete wins")
	assert.Nil(t, patientByLegacyID(set, "p3"))
	assert.Equal(t, "male", *luis.Gender)

	assert.NotNil(t, patientByLegacyID(set, "p5"))
	assert.Equal(t, 2, rep.Reasons[ReasonPatientMerged])
}

func TestBuild_ReferenceRescueAndSynthesis(t *testing.T) {
	set, rep := buildFixture(t, DefaultOptions())

	ana := patientByLegacyID(set, "p1")
	luis := patientByLegacyID(set, "p4")
	byLegacy := map[string]uuid.UUID{}
	for _, e := range set.Encounters {
		byLegacy[*e.LegacyID] = e.PatientID
	}

	require.Len(t, set.Encounters, 5)
	assert.Equal(t, luis.ID, byLegacy["e1"], "alias of a merged patient")
	assert.Equal(t, ana.ID, byLegacy["e2"], "reference holding a document number")
	assert.Equal(t, ana.ID, byLegacy["e3"], "snapshot document")
	assert.Equal(t, byLegacy["e4"], byLegacy["e5"], "synthesized patient is reused")

	pedro := patientByLegacyID(set, "ghost2")
	require.NotNil(t, pedro)
	assert.True(t, pedro.Synthesized)
	assert.Equal(t, "Pedro", pedro.FirstName)
	assert.Equal(t, "30999888", *pedro.DocumentNumber)

	placeholder := patientByLegacyID(set, "ghost3")
	require.NotNil(t, placeholder)
	assert.Equal(t, placeholderFirstName, placeholder.FirstName)

	assert.Len(t, set.Patients, 5)
	assert.Equal(t, 1, rep.Reasons[ReasonRescuedByRef])
	assert.Equal(t, 1, rep.Reasons[ReasonRescuedBySnapshot])
	assert.Equal(t, 2, rep.Reasons[ReasonSynthesized])
	assert.Equal(t, 1, rep.Skips(ReasonUnresolvedMedic))
	assert.Equal(t, 1, rep.Skips(ReasonMissingDate))
}

func TestBuild_WithoutSynthesis(t *testing.T) {
	opts := DefaultOptions()
	opts.Synthesize = false
	set, rep := buildFixture(t, opts)

	assert.Len(t, set.Patients, 3)
	assert.Len(t, set.Encounters, 3)
	assert.Len(t, set.Appointments, 2)
	assert.Equal(t, 3, rep.Skips(ReasonUnresolvedPatient))
	for _, p := range set.Patients {
		assert.False(t, p.Synthesized)
	}
}

func TestBuild_Appointments(t *testing.T) {
	set, rep := buildFixture(t, DefaultOptions())

	require.Len(t, set.Appointments, 3)
	status := map[string]string{}
	for _, a := range set.Appointments {
		status[*a.LegacyID] = a.Status
	}
	assert.Equal(t, appointment.StatusBooked, status["a1"])
	assert.Equal(t, appointment.StatusCancelled, status["a4"])
	assert.Equal(t, appointment.StatusBooked, status["a5"])
	assert.Equal(t, 1, rep.Skips(ReasonDuplicateAppt), "merged patients collapse duplicate bookings")
	assert.Equal(t, 1, rep.Skips(ReasonSlotTaken))
}

func TestBuild_StudiesAndResults(t *testing.T) {
	set, rep := buildFixture(t, DefaultOptions())

	require.Len(t, set.Studies, 2)
	s1, s2 := set.Studies[0], set.Studies[1]
	assert.Equal(t, []string{"hemogram", "renal"}, s1.Types)
	assert.NotNil(t, s1.MedicID)
	assert.Nil(t, s2.MedicID, "unresolved medic is dropped from studies")
	assert.Equal(t, []string{"thyroid"}, s2.Types)

	require.Len(t, set.Results, 2)
	assert.Equal(t, s1.ID, set.Results[0].StudyID)
	assert.JSONEq(t, `{"hb":13.2}`, string(set.Results[0].Data))
	assert.JSONEq(t, `{}`, string(set.Results[1].Data))

	assert.Equal(t, 1, rep.Skips(ReasonUnresolvedStudy))
	assert.Equal(t, 1, rep.Skips(ReasonUnknownStudyType))
	assert.Equal(t, 1, rep.Reasons[ReasonStudyTypeAdded])
	assert.Equal(t, 1, rep.Reasons[ReasonMedicDropped])
}

func TestBuild_StudiesWithoutPanels(t *testing.T) {
	d := &Dump{
		Patients: decode[LegacyPatient](t, `{"_id":"p1","firstName":"Ana","lastName":"Garcia"}`),
		Studies: decode[LegacyStudy](t, `
{"_id":"s1","patient":"p1","date":"2022-02-02","types":["xray"]}
{"_id":"s2","patient":"p1","date":"2022-02-03"}
{"_id":"s3","patient":"p1","date":"2022-02-04"}
`),
		Results: decode[LegacyResult](t, `
{"_id":"r1","study":"s1","type":"xray"}
{"_id":"r2","study":"s2","type":"hemogram"}
`),
	}
	set, rep := Build(d, DefaultOptions())

	require.Len(t, set.Studies, 1)
	kept := set.Studies[0]
	assert.Equal(t, "s2", *kept.LegacyID)
	assert.Equal(t, []string{"hemogram"}, kept.Types)
	require.Len(t, set.Results, 1)
	assert.Equal(t, kept.ID, set.Results[0].StudyID)

	assert.Equal(t, 2, rep.Skips(ReasonNoStudyTypes))
	assert.Equal(t, 1, rep.Skips(ReasonUnknownStudyType))
	assert.Equal(t, 1, rep.Written[EntityStudy])
}

func TestBuild_MalformedDocuments(t *testing.T) {
	d := &Dump{
		Patients: decode[LegacyPatient](t, `{"_id":"p1","firstName":"Ana","lastName":"Garcia"}`),
		Malformed: []Malformed{
			{Collection: CollPatients, LegacyID: "p2", Err: `document 2: unrecognized date "31-12-1980"`},
		},
	}
	set, rep := Build(d, DefaultOptions())

	assert.Len(t, set.Patients, 1)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, Issue{
		Entity:   EntityPatient,
		LegacyID: "p2",
		Reason:   ReasonMalformedDocument,
		Detail:   `document 2: unrecognized date "31-12-1980"`,
	}, rep.Skipped[0])
	assert.Equal(t, 2, rep.Read[CollPatients])
}

func TestBuild_DeterministicIDs(t *testing.T) {
	a, _ := buildFixture(t, DefaultOptions())
	b, _ := buildFixture(t, DefaultOptions())

	require.Equal(t, len(a.Patients), len(b.Patients))
	for i := range a.Patients {
		assert.Equal(t, a.Patients[i].ID, b.Patients[i].ID)
	}
	assert.Equal(t, seedID(EntityUser, "u1"), a.Users[0].ID)
	assert.Equal(t, a.Encounters[0].ID, b.Encounters[0].ID)
}

func TestBuild_DuplicateAndMissingIDs(t *testing.T) {
	d := &Dump{Patients: decode[LegacyPatient](t, `
{"_id":"p1","firstName":"A","lastName":"B"}
{"_id":"p1","firstName":"A","lastName":"B"}
{"firstName":"C","lastName":"D"}
`)}
	set, rep := Build(d, DefaultOptions())
	assert.Len(t, set.Patients, 1)
	assert.Equal(t, 1, rep.Skips(ReasonDuplicateID))
	assert.Equal(t, 1, rep.Skips(ReasonMissingID))
	assert.Equal(t, 3, rep.Read[CollPatients])
	assert.Equal(t, 1, rep.Written[EntityPatient])
}

func TestBuild_EmptyDump(t *testing.T) {
	set, rep := Build(&Dump{}, DefaultOptions())
	for entity, n := range set.Counts() {
		assert.Zero(t, n, entity)
	}
	assert.Empty(t, rep.Skipped)
}

func TestLooksLikeDocument(t *testing.T) {
	assert.True(t, looksLikeDocument("20.123.456"))
	assert.False(t, looksLikeDocument("5f1a2b3c4d5e6f7a8b9c0d1e"))
	assert.False(t, looksLikeDocument("123"))
}
