package license

import (
	"context"
	"fmt"
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

const licenseCols = `id, user_id, number, jurisdiction, specialty, issued_at, expires_at, legacy_id,
	created_at, updated_at, deleted_at`

func (r *repoPG) Create(ctx context.Context, l *License) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO license (id, user_id, number, jurisdiction, specialty, issued_at, expires_at, legacy_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		l.ID, l.UserID, l.Number, l.Jurisdiction, l.Specialty, l.IssuedAt, l.ExpiresAt, l.LegacyID,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*License, error) {
	l, err := scanLicense(r.conn(ctx).QueryRow(ctx,
		`SELECT `+licenseCols+` FROM license WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return l, nil
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*License, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+licenseCols+` FROM license WHERE user_id = $1 AND deleted_at IS NULL ORDER BY issued_at DESC NULLS LAST`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) List(ctx context.Context, userID *uuid.UUID, activeAt *time.Time, limit, offset int) ([]*License, int, error) {
	q := search.NewQuery("license", licenseCols).OrderBy("number")
	if userID != nil {
		q.Eq("user_id", *userID)
	}
	if activeAt != nil {
		i := q.Next()
		q.Add(fmt.Sprintf("(issued_at IS NULL OR issued_at <= $%d) AND (expires_at IS NULL OR expires_at > $%d)", i, i), *activeAt)
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
	licenses, err := collect(rows)
	return licenses, total, err
}

func (r *repoPG) Update(ctx context.Context, l *License) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE license SET number=$2, jurisdiction=$3, specialty=$4, issued_at=$5, expires_at=$6, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`,
		l.ID, l.Number, l.Jurisdiction, l.Specialty, l.IssuedAt, l.ExpiresAt,
	).Scan(&l.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE license SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
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
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM license WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func collect(rows pgx.Rows) ([]*License, error) {
	var out []*License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLicense(row pgx.Row) (*License, error) {
	var l License
	err := row.Scan(&l.ID, &l.UserID, &l.Number, &l.Jurisdiction, &l.Specialty, &l.IssuedAt, &l.ExpiresAt,
		&l.LegacyID, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
