package encounter

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/db"
	"github.com/medapp/medapp/internal/platform/search"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const encounterCols = `id, patient_id, medic_id, date, insurance, data, legacy_id, created_at, updated_at, deleted_at`

func (r *repoPG) Create(ctx context.Context, e *Encounter) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Data == nil {
		e.Data = Forms{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounter (id, patient_id, medic_id, date, insurance, data, legacy_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		e.ID, e.PatientID, e.MedicID, e.Date, e.Insurance, e.Data, e.LegacyID,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	e, err := scanEncounter(r.conn(ctx).QueryRow(ctx,
		`SELECT `+encounterCols+` FROM encounter WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return e, nil
}

func (r *repoPG) Update(ctx context.Context, e *Encounter) error {
	if e.Data == nil {
		e.Data = Forms{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE encounter SET patient_id=$2, date=$3, insurance=$4, data=$5, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`,
		e.ID, e.PatientID, e.Date, e.Insurance, e.Data,
	).Scan(&e.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE encounter SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM encounter WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	return r.Search(ctx, map[string]string{"patient": patientID.String()}, limit, offset)
}

// Search supports patient, medic and date (with gt/lt/ge/le prefixes).
func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Encounter, int, error) {
	q := search.NewQuery("encounter", encounterCols).OrderBy("date DESC")
	for param, col := range map[string]string{"patient": "patient_id", "medic": "medic_id"} {
		if v := params[param]; v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, 0, apperr.Invalid("%s must be a uuid", param)
			}
			q.Eq(col, id)
		}
	}
	if v := params["date"]; v != "" {
		if err := q.Date("date", v); err != nil {
			return nil, 0, apperr.Invalid("date: %v", err)
		}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Encounter
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func scanEncounter(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(&e.ID, &e.PatientID, &e.MedicID, &e.Date, &e.Insurance, &e.Data, &e.LegacyID,
		&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
