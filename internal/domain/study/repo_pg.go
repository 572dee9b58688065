package study

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

const (
	studyCols  = `id, patient_id, medic_id, date, types, no_order_number, legacy_id, created_at, updated_at, deleted_at`
	resultCols = `id, study_id, type, data, legacy_id, created_at, updated_at, deleted_at`
)

func (r *repoPG) CreateStudy(ctx context.Context, s *Study) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO study (id, patient_id, medic_id, date, types, no_order_number, legacy_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		s.ID, s.PatientID, s.MedicID, s.Date, s.Types, s.NoOrderNumber, s.LegacyID,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) GetStudy(ctx context.Context, id uuid.UUID) (*Study, error) {
	s, err := scanStudy(r.conn(ctx).QueryRow(ctx,
		`SELECT `+studyCols+` FROM study WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return s, nil
}

func (r *repoPG) UpdateStudy(ctx context.Context, s *Study) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE study SET patient_id=$2, medic_id=$3, date=$4, types=$5, no_order_number=$6, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`,
		s.ID, s.PatientID, s.MedicID, s.Date, s.Types, s.NoOrderNumber,
	).Scan(&s.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) DeleteStudy(ctx context.Context, id uuid.UUID) error {
	var deleted int
	err := r.conn(ctx).QueryRow(ctx, `
		WITH s AS (
			UPDATE study SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL RETURNING id
		), res AS (
			UPDATE study_result SET deleted_at = NOW()
			WHERE study_id IN (SELECT id FROM s) AND deleted_at IS NULL
		)
		SELECT count(*) FROM s`, id).Scan(&deleted)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SearchStudies supports patient, medic, date (with gt/lt/ge/le prefixes)
// and type.
func (r *repoPG) SearchStudies(ctx context.Context, params map[string]string, limit, offset int) ([]*Study, int, error) {
	q := search.NewQuery("study", studyCols).OrderBy("date DESC")
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
	if v := params["type"]; v != "" {
		q.AnyOf("types", v)
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

	var out []*Study
	for rows.Next() {
		s, err := scanStudy(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repoPG) StudyExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM study WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) CreateResult(ctx context.Context, res *Result) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO study_result (id, study_id, type, data, legacy_id)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		res.ID, res.StudyID, res.Type, jsonText(res.Data), res.LegacyID,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) GetResult(ctx context.Context, id uuid.UUID) (*Result, error) {
	res, err := scanResult(r.conn(ctx).QueryRow(ctx,
		`SELECT `+resultCols+` FROM study_result WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return res, nil
}

func (r *repoPG) ListResults(ctx context.Context, studyID uuid.UUID) ([]*Result, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+resultCols+` FROM study_result WHERE study_id = $1 AND deleted_at IS NULL ORDER BY type, created_at`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *repoPG) UpdateResult(ctx context.Context, res *Result) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE study_result SET type=$2, data=$3, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`,
		res.ID, res.Type, jsonText(res.Data),
	).Scan(&res.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) DeleteResult(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE study_result SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) ResultExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM study_result WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// jsonText sends result data as JSON text; an empty document becomes {}.
func jsonText(raw []byte) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func scanStudy(row pgx.Row) (*Study, error) {
	var s Study
	err := row.Scan(&s.ID, &s.PatientID, &s.MedicID, &s.Date, &s.Types, &s.NoOrderNumber, &s.LegacyID,
		&s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanResult(row pgx.Row) (*Result, error) {
	var res Result
	var data []byte
	err := row.Scan(&res.ID, &res.StudyID, &res.Type, &data, &res.LegacyID, &res.CreatedAt, &res.UpdatedAt, &res.DeletedAt)
	if err != nil {
		return nil, err
	}
	res.Data = data
	return &res, nil
}
