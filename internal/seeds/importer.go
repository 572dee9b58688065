package seeds

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medapp/medapp/internal/domain/appointment"
	"github.com/medapp/medapp/internal/domain/encounter"
	"github.com/medapp/medapp/internal/domain/license"
	"github.com/medapp/medapp/internal/domain/patient"
	"github.com/medapp/medapp/internal/domain/study"
	"github.com/medapp/medapp/internal/domain/user"
	"github.com/medapp/medapp/internal/platform/db"
)

// Repos are the domain repositories the importer writes through, so that
// encryption, blind indexes and search names match rows created online.
type Repos struct {
	Users        user.Repository
	Licenses     license.Repository
	Patients     patient.Repository
	Encounters   encounter.Repository
	Appointments appointment.Repository
	Studies      study.Repository
}

// EntityStats counts what happened to one entity's seeds.
type EntityStats struct {
	Inserted int `json:"inserted"`
	Existing int `json:"existing"`
	Deleted  int `json:"deleted"`
}

type ImportResult struct {
	Tenant   string                  `json:"tenant"`
	DryRun   bool                    `json:"dry_run"`
	Entities map[string]*EntityStats `json:"entities"`
	Duration time.Duration           `json:"duration"`
}

// TxRunner runs fn in a transaction scoped to the tenant schema.
type TxRunner func(ctx context.Context, tenant string, fn func(ctx context.Context) error) error

type Importer struct {
	repos  Repos
	runTx  TxRunner
	logger zerolog.Logger
}

func NewImporter(pool *pgxpool.Pool, repos Repos, logger zerolog.Logger) *Importer {
	return &Importer{
		repos: repos,
		runTx: func(ctx context.Context, tenant string, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, pool, tenant, fn)
		},
		logger: logger,
	}
}

var errDryRun = errors.New("dry run")

// Import loads the seed files from dir and inserts them into the tenant in a
// single transaction. Records whose id already exists are left untouched, so
// rerunning an import is harmless. A dry run reports the same counts and
// rolls back.
func (im *Importer) Import(ctx context.Context, dir, tenant string, dryRun bool) (*ImportResult, error) {
	start := time.Now()
	set, err := ReadSeedSet(ctx, dir)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Tenant: tenant, DryRun: dryRun, Entities: map[string]*EntityStats{}}
	err = im.runTx(ctx, tenant, func(ctx context.Context) error {
		if err := im.apply(ctx, set, res); err != nil {
			return err
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, fmt.Errorf("import seeds: %w", err)
	}
	res.Duration = time.Since(start)

	ev := im.logger.Info().Str("tenant", tenant).Bool("dry_run", dryRun).Dur("duration", res.Duration)
	for entity, st := range res.Entities {
		ev = ev.Int(entity+"_inserted", st.Inserted).Int(entity+"_existing", st.Existing)
	}
	ev.Msg("seed import finished")
	return res, nil
}

// step imports one entity. Deleted records go first and are soft-deleted
// right after insertion, so they never hold a unique slot a live record needs.
type step[T any] struct {
	entity  string
	items   []T
	id      func(T) uuid.UUID
	deleted func(T) bool
	exists  func(context.Context, uuid.UUID) (bool, error)
	create  func(context.Context, T) error
	remove  func(context.Context, uuid.UUID) error
}

func (s step[T]) run(ctx context.Context, res *ImportResult) error {
	st := &EntityStats{}
	res.Entities[s.entity] = st

	ordered := append([]T(nil), s.items...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return s.deleted(ordered[i]) && !s.deleted(ordered[j])
	})

	for _, item := range ordered {
		id := s.id(item)
		ok, err := s.exists(ctx, id)
		if err != nil {
			return fmt.Errorf("%s %s: %w", s.entity, id, err)
		}
		if ok {
			st.Existing++
			continue
		}
		if err := s.create(ctx, item); err != nil {
			return fmt.Errorf("%s %s: %w", s.entity, id, err)
		}
		st.Inserted++
		if s.deleted(item) {
			if err := s.remove(ctx, id); err != nil {
				return fmt.Errorf("%s %s: delete: %w", s.entity, id, err)
			}
			st.Deleted++
		}
	}
	return nil
}

func (im *Importer) apply(ctx context.Context, set *SeedSet, res *ImportResult) error {
	r := im.repos
	steps := []func() error{
		func() error {
			return step[*UserSeed]{
				entity:  EntityUser,
				items:   set.Users,
				id:      func(u *UserSeed) uuid.UUID { return u.ID },
				deleted: func(u *UserSeed) bool { return u.DeletedAt != nil },
				exists:  r.Users.Exists,
				create:  func(ctx context.Context, u *UserSeed) error { return r.Users.Create(ctx, u.User()) },
				remove:  r.Users.Delete,
			}.run(ctx, res)
		},
		func() error {
			return step[*license.License]{
				entity:  EntityLicense,
				items:   set.Licenses,
				id:      func(l *license.License) uuid.UUID { return l.ID },
				deleted: func(l *license.License) bool { return l.DeletedAt != nil },
				exists:  r.Licenses.Exists,
				create:  r.Licenses.Create,
				remove:  r.Licenses.Delete,
			}.run(ctx, res)
		},
		func() error {
			return step[*patient.Patient]{
				entity:  EntityPatient,
				items:   set.Patients,
				id:      func(p *patient.Patient) uuid.UUID { return p.ID },
				deleted: func(p *patient.Patient) bool { return p.DeletedAt != nil },
				exists:  r.Patients.Exists,
				create:  r.Patients.Create,
				remove:  r.Patients.Delete,
			}.run(ctx, res)
		},
		func() error {
			return step[*encounter.Encounter]{
				entity:  EntityEncounter,
				items:   set.Encounters,
				id:      func(e *encounter.Encounter) uuid.UUID { return e.ID },
				deleted: func(e *encounter.Encounter) bool { return e.DeletedAt != nil },
				exists:  r.Encounters.Exists,
				create:  r.Encounters.Create,
				remove:  r.Encounters.Delete,
			}.run(ctx, res)
		},
		func() error {
			return step[*appointment.Appointment]{
				entity:  EntityAppointment,
				items:   set.Appointments,
				id:      func(a *appointment.Appointment) uuid.UUID { return a.ID },
				deleted: func(a *appointment.Appointment) bool { return a.DeletedAt != nil },
				exists:  r.Appointments.Exists,
				create:  r.Appointments.Create,
				remove:  r.Appointments.Delete,
			}.run(ctx, res)
		},
		func() error {
			return step[*study.Study]{
				entity:  EntityStudy,
				items:   set.Studies,
				id:      func(s *study.Study) uuid.UUID { return s.ID },
				deleted: func(s *study.Study) bool { return s.DeletedAt != nil },
				exists:  r.Studies.StudyExists,
				create:  r.Studies.CreateStudy,
				remove:  r.Studies.DeleteStudy,
			}.run(ctx, res)
		},
		func() error {
			return step[*study.Result]{
				entity:  EntityResult,
				items:   set.Results,
				id:      func(x *study.Result) uuid.UUID { return x.ID },
				deleted: func(x *study.Result) bool { return x.DeletedAt != nil },
				exists:  r.Studies.ResultExists,
				create:  r.Studies.CreateResult,
				remove:  r.Studies.DeleteResult,
			}.run(ctx, res)
		},
	}
	for _, run := range steps {
		if err := run(); err != nil {
			return err
		}
	}
	return nil
}
