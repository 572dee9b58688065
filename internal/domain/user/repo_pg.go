package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/db"
	"github.com/medapp/medapp/internal/platform/phi"
	"github.com/medapp/medapp/internal/platform/search"
)

type repoPG struct {
	pool      *pgxpool.Pool
	encryptor phi.FieldEncryptor
}

// NewRepo returns the Postgres repository. enc may be nil to store phone
// numbers and TOTP secrets in clear text.
func NewRepo(pool *pgxpool.Pool, enc phi.FieldEncryptor) Repository {
	return &repoPG{pool: pool, encryptor: enc}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, username, password_hash, roles, first_name, last_name, email, phone, specialty,
	totp_secret, totp_enabled, search_name, legacy_id, created_at, updated_at, deleted_at`

func (r *repoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Username = NormalizeUsername(u.Username)
	u.SearchName = search.SearchName(u.FirstName, u.LastName)

	phone, secret, err := r.encryptSecrets(u)
	if err != nil {
		return fmt.Errorf("user create: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO app_user (id, username, password_hash, roles, first_name, last_name, email, phone, specialty,
			totp_secret, totp_enabled, search_name, legacy_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.PasswordHash, u.Roles, u.FirstName, u.LastName, u.Email, phone, u.Specialty,
		secret, u.TOTPEnabled, u.SearchName, u.LegacyID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userCols+` FROM app_user WHERE username = $1 AND deleted_at IS NULL`,
		NormalizeUsername(username))
}

func (r *repoPG) getOne(ctx context.Context, sql string, arg interface{}) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	if err := r.decryptSecrets(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	u.SearchName = search.SearchName(u.FirstName, u.LastName)
	phone, err := phi.EncryptPtr(r.encryptor, u.Phone)
	if err != nil {
		return fmt.Errorf("user update: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE app_user SET roles=$2, first_name=$3, last_name=$4, email=$5, phone=$6, specialty=$7,
			search_name=$8, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`,
		u.ID, u.Roles, u.FirstName, u.LastName, u.Email, phone, u.Specialty, u.SearchName,
	).Scan(&u.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.execOne(ctx, `UPDATE app_user SET password_hash=$2, updated_at=NOW() WHERE id = $1 AND deleted_at IS NULL`, id, hash)
}

func (r *repoPG) UpdateTOTP(ctx context.Context, id uuid.UUID, secret *string, enabled bool) error {
	enc, err := phi.EncryptPtr(r.encryptor, secret)
	if err != nil {
		return fmt.Errorf("user totp: %w", err)
	}
	return r.execOne(ctx, `UPDATE app_user SET totp_secret=$2, totp_enabled=$3, updated_at=NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id, enc, enabled)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `UPDATE app_user SET deleted_at=NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *repoPG) execOne(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperr.FromPG(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM app_user WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return r.Search(ctx, nil, limit, offset)
}

// Search supports q (fuzzy name or username), username, role and specialty.
func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*User, int, error) {
	q := search.NewQuery("app_user", userCols).OrderBy("last_name, first_name")
	if term := params["q"]; term != "" {
		i := q.Next()
		q.Add(fmt.Sprintf("(username LIKE $%d OR search_name LIKE $%d OR similarity(search_name, $%d) >= $%d)", i, i, i+1, i+2),
			"%"+search.Normalize(term)+"%", search.Normalize(term), search.DefaultThreshold)
	}
	if v := params["username"]; v != "" {
		q.Eq("username", NormalizeUsername(v))
	}
	if v := params["role"]; v != "" {
		q.AnyOf("roles", v)
	}
	if v := params["specialty"]; v != "" {
		q.Prefix("specialty", v)
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

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		if err := r.decryptSecrets(u); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *repoPG) encryptSecrets(u *User) (phone, secret *string, err error) {
	if phone, err = phi.EncryptPtr(r.encryptor, u.Phone); err != nil {
		return nil, nil, err
	}
	if secret, err = phi.EncryptPtr(r.encryptor, u.TOTPSecret); err != nil {
		return nil, nil, err
	}
	return phone, secret, nil
}

func (r *repoPG) decryptSecrets(u *User) error {
	var err error
	if u.Phone, err = phi.DecryptPtr(r.encryptor, u.Phone); err != nil {
		return fmt.Errorf("user %s: %w", u.ID, err)
	}
	if u.TOTPSecret, err = phi.DecryptPtr(r.encryptor, u.TOTPSecret); err != nil {
		return fmt.Errorf("user %s: %w", u.ID, err)
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Roles, &u.FirstName, &u.LastName,
		&u.Email, &u.Phone, &u.Specialty, &u.TOTPSecret, &u.TOTPEnabled, &u.SearchName, &u.LegacyID,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
