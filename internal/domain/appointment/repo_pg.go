package appointment

import (
	"context"
	"strings"
	"time"

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

const appointmentCols = `id, patient_id, medic_id, start_at, status, extra, legacy_id, created_at, updated_at, deleted_at`

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, medic_id, start_at, status, extra, legacy_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.MedicID, a.StartAt, a.Status, nullJSON(a.Extra), a.LegacyID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return a, nil
}

func (r *repoPG) FindActive(ctx context.Context, medicID uuid.UUID, start time.Time) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `
		SELECT `+appointmentCols+` FROM appointment
		WHERE medic_id = $1 AND start_at = $2 AND status IN ('booked', 'arrived') AND deleted_at IS NULL
		LIMIT 1`, medicID, start))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET patient_id=$2, medic_id=$3, start_at=$4, extra=$5, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING status, updated_at`,
		a.ID, a.PatientID, a.MedicID, a.StartAt, nullJSON(a.Extra),
	).Scan(&a.Status, &a.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, status)
	if err != nil {
		return apperr.FromPG(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE appointment SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
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
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM appointment WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Search supports medic, patient, date (with gt/lt/ge/le prefixes) and
// status (comma separated).
func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	q := search.NewQuery("appointment", appointmentCols).OrderBy("start_at")
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
		if err := q.Date("start_at", v); err != nil {
			return nil, 0, apperr.Invalid("date: %v", err)
		}
	}
	if v := params["status"]; v != "" {
		q.In("status", strings.Split(v, ","))
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

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// nullJSON stores an absent extra document as SQL NULL.
func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var extra []byte
	err := row.Scan(&a.ID, &a.PatientID, &a.MedicID, &a.StartAt, &a.Status, &extra, &a.LegacyID,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if err != nil {
		return nil, err
	}
	a.Extra = extra
	return &a, nil
}
