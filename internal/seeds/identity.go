package seeds

import (
	"sort"
	"strings"
	"unicode"

	"github.com/medapp/medapp/internal/domain/patient"
	"github.com/medapp/medapp/internal/platform/search"
)

// identityKey groups legacy patients that are the same person: the document
// digits when present, else the normalized full name plus birth date. Records
// with neither get no key and stand alone.
func identityKey(lp *LegacyPatient) string {
	if doc := search.NormalizeDocument(lp.DocumentValue.String()); doc != "" {
		return "doc:" + doc
	}
	if lp.FirstName == "" || lp.LastName == "" || lp.BirthDate.IsZero() {
		return ""
	}
	return "name:" + search.SearchName(lp.FirstName.String(), lp.LastName.String()) + "|" +
		lp.BirthDate.Format("2006-01-02")
}

// completeness counts the populated optional fields of a legacy patient.
func completeness(lp *LegacyPatient) int {
	n := 0
	for _, t := range []Text{
		lp.FirstName, lp.LastName, lp.DocumentType, lp.DocumentValue, lp.Gender, lp.Nationality, lp.Phone,
		lp.Email, lp.Address, lp.City, lp.Province, lp.Medicare, lp.MedicareNumber, lp.MedicarePlan,
	} {
		if t != "" {
			n++
		}
	}
	if !lp.BirthDate.IsZero() {
		n++
	}
	return n
}

// earlier orders records by creation date, undated last, then by legacy id.
func earlier(a Date, aID OID, b Date, bID OID) bool {
	switch {
	case a.IsZero() != b.IsZero():
		return !a.IsZero()
	case !a.Equal(b.Time):
		return a.Before(b.Time)
	}
	return aID < bID
}

// rankPatients sorts a group best first: live before deleted, then most
// complete, then earliest created, then lowest legacy id.
func rankPatients(group []*LegacyPatient) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if (a.DeletedAt.IsZero()) != (b.DeletedAt.IsZero()) {
			return a.DeletedAt.IsZero()
		}
		if ca, cb := completeness(a), completeness(b); ca != cb {
			return ca > cb
		}
		return earlier(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
}

func fillText(dst *Text, src Text) {
	if *dst == "" {
		*dst = src
	}
}

// mergePatients returns the canonical record of a ranked group with its empty
// fields filled from the other members in rank order.
func mergePatients(group []*LegacyPatient) LegacyPatient {
	c := *group[0]
	for _, o := range group[1:] {
		fillText(&c.FirstName, o.FirstName)
		fillText(&c.LastName, o.LastName)
		fillText(&c.DocumentType, o.DocumentType)
		fillText(&c.DocumentValue, o.DocumentValue)
		fillText(&c.Gender, o.Gender)
		fillText(&c.Nationality, o.Nationality)
		fillText(&c.Phone, o.Phone)
		fillText(&c.Email, o.Email)
		fillText(&c.Address, o.Address)
		fillText(&c.City, o.City)
		fillText(&c.Province, o.Province)
		fillText(&c.Medicare, o.Medicare)
		fillText(&c.MedicareNumber, o.MedicareNumber)
		fillText(&c.MedicarePlan, o.MedicarePlan)
		if c.BirthDate.IsZero() {
			c.BirthDate = o.BirthDate
		}
		if c.CreatedAt.IsZero() || (!o.CreatedAt.IsZero() && o.CreatedAt.Before(c.CreatedAt.Time)) {
			c.CreatedAt = o.CreatedAt
		}
	}
	return c
}

var genders = map[string]string{
	"m": "male", "male": "male", "masculino": "male", "hombre": "male",
	"f": "female", "female": "female", "femenino": "female", "mujer": "female",
	"o": "other", "other": "other", "otro": "other",
	"unknown": "unknown", "desconocido": "unknown",
}

func normalizeGender(t Text) *string {
	if t == "" {
		return nil
	}
	g, ok := genders[search.Normalize(t.String())]
	if !ok {
		g = "unknown"
	}
	return &g
}

func patientFrom(lp *LegacyPatient) *patient.Patient {
	legacyID := string(lp.ID)
	return &patient.Patient{
		FirstName:      search.TitleName(lp.FirstName.String()),
		LastName:       search.TitleName(lp.LastName.String()),
		DocumentType:   upperPtr(lp.DocumentType),
		DocumentNumber: lp.DocumentValue.Ptr(),
		BirthDate:      lp.BirthDate.Ptr(),
		Gender:         normalizeGender(lp.Gender),
		Nationality:    lp.Nationality.Ptr(),
		Phone:          lp.Phone.Ptr(),
		Email:          lowerPtr(lp.Email),
		Address:        lp.Address.Ptr(),
		City:           lp.City.Ptr(),
		Province:       lp.Province.Ptr(),
		Insurer:        lp.Medicare.Ptr(),
		InsurerNumber:  lp.MedicareNumber.Ptr(),
		InsurerPlan:    lp.MedicarePlan.Ptr(),
		LegacyID:       &legacyID,
		CreatedAt:      lp.CreatedAt.Time,
		DeletedAt:      lp.DeletedAt.Ptr(),
	}
}

const (
	placeholderFirstName = "Unknown"
	placeholderLastName  = "Patient"
)

// synthesizePatient builds a patient for a reference nothing else resolved,
// from the referencing record's snapshot when it has one.
func synthesizePatient(key string, snap *PatientSnapshot) *patient.Patient {
	p := &patient.Patient{
		ID:          seedID(EntityPatient, "synth:"+key),
		FirstName:   placeholderFirstName,
		LastName:    placeholderLastName,
		Synthesized: true,
		LegacyID:    &key,
	}
	if snap.empty() {
		return p
	}
	if snap.FirstName != "" {
		p.FirstName = search.TitleName(snap.FirstName.String())
	}
	if snap.LastName != "" {
		p.LastName = search.TitleName(snap.LastName.String())
	}
	p.DocumentType = upperPtr(snap.DocumentType)
	p.DocumentNumber = snap.DocumentValue.Ptr()
	p.BirthDate = snap.BirthDate.Ptr()
	p.Gender = normalizeGender(snap.Gender)
	p.Phone = snap.Phone.Ptr()
	p.Insurer = snap.Medicare.Ptr()
	return p
}

// looksLikeDocument is true for references made of digits and separators,
// which the legacy system sometimes stored instead of a patient id.
func looksLikeDocument(ref string) bool {
	digits := 0
	for _, r := range ref {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			return false
		}
	}
	return digits >= 5
}

func upperPtr(t Text) *string {
	if t == "" {
		return nil
	}
	s := strings.ToUpper(t.String())
	return &s
}

func lowerPtr(t Text) *string {
	if t == "" {
		return nil
	}
	s := strings.ToLower(t.String())
	return &s
}
