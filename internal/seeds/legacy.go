package seeds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Collection names of the legacy dump. Each is read from <name>.json.
const (
	CollUsers        = "users"
	CollLicenses     = "licenses"
	CollPatients     = "patients"
	CollEncounters   = "encounters"
	CollAppointments = "appointments"
	CollStudies      = "studies"
	CollResults      = "results"
)

// Collections lists the legacy collections in dependency order.
var Collections = []string{
	CollUsers, CollLicenses, CollPatients, CollEncounters, CollAppointments, CollStudies, CollResults,
}

type LegacyUser struct {
	ID        OID        `json:"_id"`
	Username  Text       `json:"username"`
	Password  string     `json:"password"`
	Roles     StringList `json:"roles"`
	FirstName Text       `json:"firstName"`
	LastName  Text       `json:"lastName"`
	Email     Text       `json:"email"`
	Phone     Text       `json:"phone"`
	Specialty Text       `json:"specialty"`
	CreatedAt Date       `json:"createdAt"`
	DeletedAt Date       `json:"deletedAt"`
}

type LegacyLicense struct {
	ID           OID  `json:"_id"`
	User         OID  `json:"user"`
	Number       Text `json:"number"`
	Jurisdiction Text `json:"jurisdiction"`
	Specialty    Text `json:"specialty"`
	IssuedAt     Date `json:"issuedAt"`
	ExpiresAt    Date `json:"expiresAt"`
	CreatedAt    Date `json:"createdAt"`
	DeletedAt    Date `json:"deletedAt"`
}

type LegacyPatient struct {
	ID             OID  `json:"_id"`
	FirstName      Text `json:"firstName"`
	LastName       Text `json:"lastName"`
	DocumentType   Text `json:"documentType"`
	DocumentValue  Text `json:"documentValue"`
	BirthDate      Date `json:"birthDate"`
	Gender         Text `json:"gender"`
	Nationality    Text `json:"nationality"`
	Phone          Text `json:"phone"`
	Email          Text `json:"email"`
	Address        Text `json:"address"`
	City           Text `json:"city"`
	Province       Text `json:"province"`
	Medicare       Text `json:"medicare"`
	MedicareNumber Text `json:"medicareNumber"`
	MedicarePlan   Text `json:"medicarePlan"`
	CreatedAt      Date `json:"createdAt"`
	DeletedAt      Date `json:"deletedAt"`
}

// PatientSnapshot is the copy of patient data the legacy system stored on
// records referencing a patient.
type PatientSnapshot struct {
	FirstName     Text `json:"firstName"`
	LastName      Text `json:"lastName"`
	DocumentType  Text `json:"documentType"`
	DocumentValue Text `json:"documentValue"`
	BirthDate     Date `json:"birthDate"`
	Gender        Text `json:"gender"`
	Phone         Text `json:"phone"`
	Medicare      Text `json:"medicare"`
}

func (s *PatientSnapshot) empty() bool {
	return s == nil || (s.FirstName == "" && s.LastName == "" && s.DocumentValue == "")
}

type LegacyEncounter struct {
	ID          OID                        `json:"_id"`
	Patient     OID                        `json:"patient"`
	PatientInfo *PatientSnapshot           `json:"patientInfo"`
	Medic       OID                        `json:"medic"`
	Date        Date                       `json:"date"`
	Insurance   Text                       `json:"insurance"`
	Data        map[string]json.RawMessage `json:"data"`
	CreatedAt   Date                       `json:"createdAt"`
	DeletedAt   Date                       `json:"deletedAt"`
}

type LegacyAppointment struct {
	ID          OID              `json:"_id"`
	Patient     OID              `json:"patient"`
	PatientInfo *PatientSnapshot `json:"patientInfo"`
	Medic       OID              `json:"medic"`
	StartDate   Date             `json:"startDate"`
	Status      Text             `json:"status"`
	Extra       json.RawMessage  `json:"extra"`
	CreatedAt   Date             `json:"createdAt"`
	DeletedAt   Date             `json:"deletedAt"`
}

type LegacyStudy struct {
	ID            OID              `json:"_id"`
	Patient       OID              `json:"patient"`
	PatientInfo   *PatientSnapshot `json:"patientInfo"`
	Medic         OID              `json:"medic"`
	Date          Date             `json:"date"`
	Types         StringList       `json:"types"`
	NoOrderNumber bool             `json:"noOrderNumber"`
	CreatedAt     Date             `json:"createdAt"`
	DeletedAt     Date             `json:"deletedAt"`
}

type LegacyResult struct {
	ID        OID             `json:"_id"`
	Study     OID             `json:"study"`
	Type      Text            `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt Date            `json:"createdAt"`
	DeletedAt Date            `json:"deletedAt"`
}

// Dump is the decoded legacy export.
type Dump struct {
	Users        []LegacyUser
	Licenses     []LegacyLicense
	Patients     []LegacyPatient
	Encounters   []LegacyEncounter
	Appointments []LegacyAppointment
	Studies      []LegacyStudy
	Results      []LegacyResult

	// Missing lists collections whose file was not present.
	Missing []string
	// Malformed lists documents that were valid JSON but did not decode.
	Malformed []Malformed
}

// Malformed is a document dropped while loading the dump.
type Malformed struct {
	Collection string
	LegacyID   string
	Err        string
}

// Counts returns the number of documents read per collection, including
// malformed ones.
func (d *Dump) Counts() map[string]int {
	counts := map[string]int{
		CollUsers:        len(d.Users),
		CollLicenses:     len(d.Licenses),
		CollPatients:     len(d.Patients),
		CollEncounters:   len(d.Encounters),
		CollAppointments: len(d.Appointments),
		CollStudies:      len(d.Studies),
		CollResults:      len(d.Results),
	}
	for _, m := range d.Malformed {
		counts[m.Collection]++
	}
	return counts
}

// LoadDump reads every collection file in dir concurrently. A missing file
// yields an empty collection and is recorded in Dump.Missing. A document
// that does not decode is recorded in Dump.Malformed; only a file that is
// not valid JSON fails the load.
func LoadDump(ctx context.Context, dir string) (*Dump, error) {
	d := &Dump{}
	missing := make([]bool, len(Collections))
	malformed := make([][]Malformed, len(Collections))

	g, _ := errgroup.WithContext(ctx)
	load := func(i int, dst func(io.Reader) ([]Malformed, error)) {
		name := Collections[i]
		g.Go(func() error {
			f, err := os.Open(filepath.Join(dir, name+".json"))
			if errors.Is(err, fs.ErrNotExist) {
				missing[i] = true
				return nil
			}
			if err != nil {
				return err
			}
			defer f.Close()
			bad, err := dst(f)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			for j := range bad {
				bad[j].Collection = name
			}
			malformed[i] = bad
			return nil
		})
	}
	load(0, into(&d.Users))
	load(1, into(&d.Licenses))
	load(2, into(&d.Patients))
	load(3, into(&d.Encounters))
	load(4, into(&d.Appointments))
	load(5, into(&d.Studies))
	load(6, into(&d.Results))

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dump: %w", err)
	}
	for i, m := range missing {
		if m {
			d.Missing = append(d.Missing, Collections[i])
		}
		d.Malformed = append(d.Malformed, malformed[i]...)
	}
	return d, nil
}

func into[T any](dst *[]T) func(io.Reader) ([]Malformed, error) {
	return func(r io.Reader) ([]Malformed, error) {
		docs, bad, err := decodeDocs[T](r)
		*dst = docs
		return bad, err
	}
}

// decodeDocs accepts a JSON array or a stream of documents, one per line.
// Each document is decoded on its own so one bad field drops only its
// document.
func decodeDocs[T any](r io.Reader) ([]T, []Malformed, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var raws []json.RawMessage
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&raws); err != nil {
			return nil, nil, err
		}
	} else {
		dec := json.NewDecoder(br)
		for n := 1; ; n++ {
			var raw json.RawMessage
			err := dec.Decode(&raw)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, nil, fmt.Errorf("document %d: %w", n, err)
			}
			raws = append(raws, raw)
		}
	}

	var (
		docs []T
		bad  []Malformed
	)
	for n, raw := range raws {
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			bad = append(bad, Malformed{
				LegacyID: legacyID(raw),
				Err:      fmt.Sprintf("document %d: %v", n+1, err),
			})
			continue
		}
		docs = append(docs, doc)
	}
	return docs, bad, nil
}

// legacyID recovers the _id of a document that failed to decode.
func legacyID(raw json.RawMessage) string {
	var doc struct {
		ID OID `json:"_id"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return string(doc.ID)
}

// peekNonSpace skips leading whitespace and a UTF-8 byte order mark.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}
