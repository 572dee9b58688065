package seeds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medapp/medapp/internal/domain/appointment"
	"github.com/medapp/medapp/internal/domain/encounter"
	"github.com/medapp/medapp/internal/domain/license"
	"github.com/medapp/medapp/internal/domain/patient"
	"github.com/medapp/medapp/internal/domain/study"
	"github.com/medapp/medapp/internal/domain/user"
	"github.com/medapp/medapp/internal/platform/auth"
	"github.com/medapp/medapp/internal/platform/search"
)

type Options struct {
	// Synthesize creates placeholder patients for references that cannot be
	// resolved. When false those records are skipped.
	Synthesize bool
	Logger     zerolog.Logger
	Now        func() time.Time
}

func DefaultOptions() Options {
	return Options{Synthesize: true, Logger: zerolog.Nop(), Now: time.Now}
}

// unusablePassword never matches a bcrypt comparison.
const unusablePassword = "!"

type builder struct {
	opts Options
	set  *SeedSet
	rep  *Report

	seen       map[string]bool
	users      map[string]*UserSeed
	patients   map[string]*patient.Patient
	byDocument map[string]*patient.Patient
	studies    map[string]*study.Study
}

// Build converts a legacy dump into a seed set. Records that cannot be
// converted are skipped and listed in the report; nothing is fatal.
func Build(d *Dump, opts Options) (*SeedSet, *Report) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b := &builder{
		opts:       opts,
		set:        &SeedSet{},
		rep:        newReport(opts.Logger, opts.Now().UTC()),
		seen:       map[string]bool{},
		users:      map[string]*UserSeed{},
		patients:   map[string]*patient.Patient{},
		byDocument: map[string]*patient.Patient{},
		studies:    map[string]*study.Study{},
	}
	b.rep.Read = d.Counts()
	b.rep.Missing = d.Missing
	for _, m := range d.Malformed {
		b.rep.skip(collectionEntity[m.Collection], m.LegacyID, ReasonMalformedDocument, m.Err)
	}

	b.buildUsers(d.Users)
	b.buildLicenses(d.Licenses)
	b.buildPatients(d.Patients)
	b.buildEncounters(d.Encounters)
	b.buildAppointments(d.Appointments)
	b.buildStudies(d.Studies)
	b.buildResults(d.Results)
	b.dropUntypedStudies()

	b.rep.Written = b.set.Counts()
	return b.set, b.rep
}

// accept reports whether a record should be processed, skipping records
// without an id and repeated ids.
func (b *builder) accept(entity string, id OID) bool {
	if id == "" {
		b.rep.skip(entity, "", ReasonMissingID, "")
		return false
	}
	key := entity + ":" + string(id)
	if b.seen[key] {
		b.rep.skip(entity, string(id), ReasonDuplicateID, "")
		return false
	}
	b.seen[key] = true
	return true
}

var roleAliases = map[string]string{
	"administrator": auth.RoleAdmin,
	"doctor":        auth.RoleMedic,
	"medico":        auth.RoleMedic,
	"physician":     auth.RoleMedic,
	"recepcionista": auth.RoleReceptionist,
	"secretary":     auth.RoleReceptionist,
	"secretaria":    auth.RoleReceptionist,
}

func mapRoles(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range in {
		r = search.Normalize(r)
		if alias, ok := roleAliases[r]; ok {
			r = alias
		}
		if auth.ValidRole(r) && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func (b *builder) passwordHash(id string, legacy string) string {
	switch {
	case auth.IsBcryptHash(legacy):
		return legacy
	case len(legacy) >= auth.MinPasswordLength:
		hash, err := auth.HashPassword(legacy)
		if err == nil {
			return hash
		}
	}
	b.rep.change(EntityUser, id, ReasonPasswordReset, "")
	return unusablePassword
}

// buildUsers dedupes users by username. The earliest created account keeps
// the name and later accounts become aliases of it.
func (b *builder) buildUsers(in []LegacyUser) {
	sorted := make([]*LegacyUser, 0, len(in))
	for i := range in {
		sorted = append(sorted, &in[i])
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return earlier(sorted[i].CreatedAt, sorted[i].ID, sorted[j].CreatedAt, sorted[j].ID)
	})

	byName := map[string]*UserSeed{}
	for _, lu := range sorted {
		if !b.accept(EntityUser, lu.ID) {
			continue
		}
		id := string(lu.ID)
		name := user.NormalizeUsername(lu.Username.String())
		if name == "" {
			b.rep.skip(EntityUser, id, ReasonMissingUsername, "")
			continue
		}
		if canonical, ok := byName[name]; ok {
			b.users[id] = canonical
			b.rep.change(EntityUser, id, ReasonUserAliased, "same username as "+*canonical.LegacyID)
			continue
		}

		roles := mapRoles(lu.Roles)
		if len(roles) == 0 {
			roles = []string{auth.RoleReceptionist}
			b.rep.change(EntityUser, id, ReasonDefaultRole, strings.Join(lu.Roles, ","))
		}
		legacyID := id
		u := &UserSeed{
			ID:           seedID(EntityUser, id),
			Username:     name,
			PasswordHash: b.passwordHash(id, lu.Password),
			Roles:        roles,
			FirstName:    search.TitleName(lu.FirstName.String()),
			LastName:     search.TitleName(lu.LastName.String()),
			Email:        lowerPtr(lu.Email),
			Phone:        lu.Phone.Ptr(),
			Specialty:    lu.Specialty.Ptr(),
			LegacyID:     &legacyID,
			DeletedAt:    lu.DeletedAt.Ptr(),
		}
		byName[name] = u
		b.users[id] = u
		b.set.Users = append(b.set.Users, u)
	}
}

func (b *builder) buildLicenses(in []LegacyLicense) {
	for i := range in {
		ll := &in[i]
		if !b.accept(EntityLicense, ll.ID) {
			continue
		}
		id := string(ll.ID)
		holder := b.users[string(ll.User)]
		if holder == nil {
			b.rep.skip(EntityLicense, id, ReasonUnresolvedUser, string(ll.User))
			continue
		}
		if ll.Number == "" {
			b.rep.skip(EntityLicense, id, ReasonMissingNumber, "")
			continue
		}
		l := &license.License{
			ID:           seedID(EntityLicense, id),
			UserID:       holder.ID,
			Number:       ll.Number.String(),
			Jurisdiction: ll.Jurisdiction.Ptr(),
			Specialty:    ll.Specialty.Ptr(),
			IssuedAt:     ll.IssuedAt.Ptr(),
			ExpiresAt:    ll.ExpiresAt.Ptr(),
			LegacyID:     &id,
			CreatedAt:    ll.CreatedAt.Time,
			DeletedAt:    ll.DeletedAt.Ptr(),
		}
		if l.IssuedAt != nil && l.ExpiresAt != nil && !day(*l.ExpiresAt).After(day(*l.IssuedAt)) {
			l.ExpiresAt = nil
			b.rep.change(EntityLicense, id, ReasonInvalidExpiry, ll.ExpiresAt.Format(time.RFC3339))
		}
		b.set.Licenses = append(b.set.Licenses, l)
	}
}

// day truncates t to its UTC calendar day, matching the DATE columns
// licenses are stored in.
func day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// buildPatients collapses legacy patients sharing an identity key into one
// canonical patient and aliases every member id to it.
func (b *builder) buildPatients(in []LegacyPatient) {
	var (
		order  []string
		groups = map[string][]*LegacyPatient{}
	)
	for i := range in {
		lp := &in[i]
		if !b.accept(EntityPatient, lp.ID) {
			continue
		}
		key := identityKey(lp)
		if key == "" {
			key = "id:" + string(lp.ID)
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], lp)
	}

	for _, key := range order {
		group := groups[key]
		rankPatients(group)
		canonical := mergePatients(group)
		p := patientFrom(&canonical)
		p.ID = seedID(EntityPatient, string(canonical.ID))
		b.set.Patients = append(b.set.Patients, p)

		for _, member := range group {
			b.patients[string(member.ID)] = p
			if member.ID != canonical.ID {
				b.rep.change(EntityPatient, string(member.ID), ReasonPatientMerged, "merged into "+string(canonical.ID))
			}
		}
		if doc := search.NormalizeDocument(canonical.DocumentValue.String()); doc != "" {
			b.byDocument[doc] = p
		}
	}
}

// resolvePatient maps a patient reference to a seed patient: by legacy id or
// alias, then by treating the reference as a document number, then by the
// referencing record's snapshot document, then by synthesizing a patient.
// A nil return means the record was skipped and reported.
func (b *builder) resolvePatient(entity, id string, ref OID, snap *PatientSnapshot) *patient.Patient {
	r := string(ref)
	if p := b.patients[r]; r != "" && p != nil {
		return p
	}
	if looksLikeDocument(r) {
		if p := b.byDocument[search.NormalizeDocument(r)]; p != nil {
			b.patients[r] = p
			b.rep.change(entity, id, ReasonRescuedByRef, r)
			return p
		}
	}
	var snapDoc string
	if snap != nil {
		snapDoc = search.NormalizeDocument(snap.DocumentValue.String())
	}
	if snapDoc != "" {
		if p := b.byDocument[snapDoc]; p != nil {
			if r != "" {
				b.patients[r] = p
			}
			b.rep.change(entity, id, ReasonRescuedBySnapshot, snapDoc)
			return p
		}
	}

	if !b.opts.Synthesize {
		b.rep.skip(entity, id, ReasonUnresolvedPatient, r)
		return nil
	}
	key := r
	if key == "" && snapDoc != "" {
		key = "doc:" + snapDoc
	}
	if key == "" {
		b.rep.skip(entity, id, ReasonMissingPatient, "")
		return nil
	}

	p := synthesizePatient(key, snap)
	b.set.Patients = append(b.set.Patients, p)
	if r != "" {
		b.patients[r] = p
	}
	if snapDoc != "" {
		b.byDocument[snapDoc] = p
	}
	b.rep.change(entity, id, ReasonSynthesized, key)
	return p
}

func firstDate(dates ...Date) time.Time {
	for _, d := range dates {
		if !d.IsZero() {
			return d.Time
		}
	}
	return time.Time{}
}

func (b *builder) buildEncounters(in []LegacyEncounter) {
	for i := range in {
		le := &in[i]
		if !b.accept(EntityEncounter, le.ID) {
			continue
		}
		id := string(le.ID)
		medic := b.users[string(le.Medic)]
		if medic == nil {
			b.rep.skip(EntityEncounter, id, ReasonUnresolvedMedic, string(le.Medic))
			continue
		}
		date := firstDate(le.Date, le.CreatedAt)
		if date.IsZero() {
			b.rep.skip(EntityEncounter, id, ReasonMissingDate, "")
			continue
		}
		p := b.resolvePatient(EntityEncounter, id, le.Patient, le.PatientInfo)
		if p == nil {
			continue
		}
		data := encounter.Forms(le.Data)
		if data == nil {
			data = encounter.Forms{}
		}
		b.set.Encounters = append(b.set.Encounters, &encounter.Encounter{
			ID:        seedID(EntityEncounter, id),
			PatientID: p.ID,
			MedicID:   medic.ID,
			Date:      date,
			Insurance: le.Insurance.Ptr(),
			Data:      data,
			LegacyID:  &id,
			CreatedAt: le.CreatedAt.Time,
			DeletedAt: le.DeletedAt.Ptr(),
		})
	}
}

var statusAliases = map[string]string{
	"":          appointment.StatusBooked,
	"pending":   appointment.StatusBooked,
	"confirmed": appointment.StatusBooked,
	"present":   appointment.StatusArrived,
	"attended":  appointment.StatusFulfilled,
	"completed": appointment.StatusFulfilled,
	"done":      appointment.StatusFulfilled,
	"finished":  appointment.StatusFulfilled,
	"canceled":  appointment.StatusCancelled,
	"no-show":   appointment.StatusNoShow,
	"no_show":   appointment.StatusNoShow,
	"absent":    appointment.StatusNoShow,
}

func (b *builder) appointmentStatus(id string, t Text) string {
	s := strings.ToLower(t.String())
	if appointment.ValidStatus(s) {
		return s
	}
	if mapped, ok := statusAliases[s]; ok {
		return mapped
	}
	b.rep.change(EntityAppointment, id, ReasonUnknownStatus, s)
	return appointment.StatusBooked
}

func rawOrNil(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, null) {
		return nil
	}
	return raw
}

// buildAppointments drops appointments that collapse onto the same medic,
// start and patient once patients are merged, and bookings for a slot an
// active appointment already holds. Live records are considered first.
func (b *builder) buildAppointments(in []LegacyAppointment) {
	sorted := make([]*LegacyAppointment, 0, len(in))
	for i := range in {
		sorted = append(sorted, &in[i])
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, c := sorted[i], sorted[j]
		if a.DeletedAt.IsZero() != c.DeletedAt.IsZero() {
			return a.DeletedAt.IsZero()
		}
		return earlier(a.CreatedAt, a.ID, c.CreatedAt, c.ID)
	})

	type slot struct {
		medic uuid.UUID
		start int64
	}
	booked := map[slot]bool{}
	seen := map[string]string{}

	for _, la := range sorted {
		if !b.accept(EntityAppointment, la.ID) {
			continue
		}
		id := string(la.ID)
		medic := b.users[string(la.Medic)]
		if medic == nil {
			b.rep.skip(EntityAppointment, id, ReasonUnresolvedMedic, string(la.Medic))
			continue
		}
		if la.StartDate.IsZero() {
			b.rep.skip(EntityAppointment, id, ReasonMissingDate, "")
			continue
		}
		p := b.resolvePatient(EntityAppointment, id, la.Patient, la.PatientInfo)
		if p == nil {
			continue
		}

		start := la.StartDate.UTC()
		dupKey := fmt.Sprintf("%s|%d|%s", medic.ID, start.UnixNano(), p.ID)
		if kept, ok := seen[dupKey]; ok {
			b.rep.skip(EntityAppointment, id, ReasonDuplicateAppt, "duplicate of "+kept)
			continue
		}
		status := b.appointmentStatus(id, la.Status)
		s := slot{medic: medic.ID, start: start.UnixNano()}
		live := la.DeletedAt.IsZero() && appointment.IsActive(status)
		if live && booked[s] {
			b.rep.skip(EntityAppointment, id, ReasonSlotTaken, start.Format(time.RFC3339))
			continue
		}
		if live {
			booked[s] = true
		}
		seen[dupKey] = id

		b.set.Appointments = append(b.set.Appointments, &appointment.Appointment{
			ID:        seedID(EntityAppointment, id),
			PatientID: p.ID,
			MedicID:   medic.ID,
			StartAt:   start,
			Status:    status,
			Extra:     rawOrNil(la.Extra),
			LegacyID:  &id,
			CreatedAt: la.CreatedAt.Time,
			DeletedAt: la.DeletedAt.Ptr(),
		})
	}
}

func (b *builder) studyTypes(id string, in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if seen[t] {
			continue
		}
		seen[t] = true
		if !study.ValidPanel(t) {
			b.rep.change(EntityStudy, id, ReasonUnknownStudyType, t)
			continue
		}
		out = append(out, t)
	}
	return out
}

func (b *builder) buildStudies(in []LegacyStudy) {
	for i := range in {
		ls := &in[i]
		if !b.accept(EntityStudy, ls.ID) {
			continue
		}
		id := string(ls.ID)
		date := firstDate(ls.Date, ls.CreatedAt)
		if date.IsZero() {
			b.rep.skip(EntityStudy, id, ReasonMissingDate, "")
			continue
		}
		var medicID *uuid.UUID
		if ls.Medic != "" {
			if m := b.users[string(ls.Medic)]; m != nil {
				mid := m.ID
				medicID = &mid
			} else {
				b.rep.change(EntityStudy, id, ReasonMedicDropped, string(ls.Medic))
			}
		}
		p := b.resolvePatient(EntityStudy, id, ls.Patient, ls.PatientInfo)
		if p == nil {
			continue
		}
		s := &study.Study{
			ID:            seedID(EntityStudy, id),
			PatientID:     p.ID,
			MedicID:       medicID,
			Date:          date,
			Types:         b.studyTypes(id, ls.Types),
			NoOrderNumber: ls.NoOrderNumber,
			LegacyID:      &id,
			CreatedAt:     ls.CreatedAt.Time,
			DeletedAt:     ls.DeletedAt.Ptr(),
		}
		b.studies[id] = s
		b.set.Studies = append(b.set.Studies, s)
	}
}

// buildResults attaches results to their studies. A result of a panel the
// study did not list adds the panel to the study.
func (b *builder) buildResults(in []LegacyResult) {
	for i := range in {
		lr := &in[i]
		if !b.accept(EntityResult, lr.ID) {
			continue
		}
		id := string(lr.ID)
		s := b.studies[string(lr.Study)]
		if s == nil {
			b.rep.skip(EntityResult, id, ReasonUnresolvedStudy, string(lr.Study))
			continue
		}
		typ := strings.ToLower(lr.Type.String())
		if !study.ValidPanel(typ) {
			b.rep.skip(EntityResult, id, ReasonUnknownStudyType, typ)
			continue
		}
		if !s.HasType(typ) {
			s.Types = append(s.Types, typ)
			b.rep.change(EntityStudy, *s.LegacyID, ReasonStudyTypeAdded, typ)
		}
		data := rawOrNil(lr.Data)
		if data == nil {
			data = json.RawMessage(`{}`)
		}
		deletedAt := lr.DeletedAt.Ptr()
		if deletedAt == nil {
			deletedAt = s.DeletedAt
		}
		b.set.Results = append(b.set.Results, &study.Result{
			ID:        seedID(EntityResult, id),
			StudyID:   s.ID,
			Type:      typ,
			Data:      data,
			LegacyID:  &id,
			CreatedAt: lr.CreatedAt.Time,
			DeletedAt: deletedAt,
		})
	}
}

// dropUntypedStudies removes studies left with no panel. Their results were
// already skipped, since a result of a known panel adds it to the study.
func (b *builder) dropUntypedStudies() {
	studies := b.set.Studies[:0]
	for _, s := range b.set.Studies {
		if len(s.Types) == 0 {
			delete(b.studies, *s.LegacyID)
			b.rep.skip(EntityStudy, *s.LegacyID, ReasonNoStudyTypes, "")
			continue
		}
		studies = append(studies, s)
	}
	b.set.Studies = studies
}
