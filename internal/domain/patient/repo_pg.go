package patient

import (
	"context"
	"fmt"
	"strconv"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medapp/medapp/internal/platform/apperr"
	"github.com/medapp/medapp/internal/platform/db"
	"github.com/medapp/medapp/internal/platform/phi"
	"github.com/medapp/medapp/internal/platform/search"
)

type repoPG struct {
	pool *pgxpool.Pool
	phi  *phi.Service
}

func NewRepo(pool *pgxpool.Pool, svc *phi.Service) Repository {
	return &repoPG{pool: pool, phi: svc}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, first_name, last_name, document_type, document_number, document_index, birth_date,
	gender, nationality, phone, email, address, city, province, insurer, insurer_number, insurer_plan,
	search_name, synthesized, legacy_id, created_at, updated_at, deleted_at`

// documentIndex returns the blind index for a document number, or nil when
// it has no digits.
func (r *repoPG) documentIndex(doc *string) *string {
	if doc == nil {
		return nil
	}
	idx := r.phi.BlindIndex(search.NormalizeDocument(*doc))
	if idx == "" {
		return nil
	}
	return &idx
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.SearchName = search.SearchName(p.FirstName, p.LastName)
	p.DocumentIndex = r.documentIndex(p.DocumentNumber)

	enc, err := r.encrypted(p)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, first_name, last_name, document_type, document_number, document_index, birth_date,
			gender, nationality, phone, email, address, city, province, insurer, insurer_number, insurer_plan,
			search_name, synthesized, legacy_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.DocumentType, enc.DocumentNumber, p.DocumentIndex, p.BirthDate,
		p.Gender, p.Nationality, enc.Phone, enc.Email, enc.Address, enc.City, enc.Province,
		p.Insurer, p.InsurerNumber, p.InsurerPlan, p.SearchName, p.Synthesized, p.LegacyID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.getOne(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *repoPG) GetByDocument(ctx context.Context, doc string) (*Patient, error) {
	idx := r.documentIndex(&doc)
	if idx == nil {
		return nil, apperr.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+patientCols+` FROM patient WHERE document_index = $1 AND deleted_at IS NULL
		ORDER BY created_at LIMIT 1`, *idx)
}

func (r *repoPG) getOne(ctx context.Context, sql string, arg interface{}) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	if err := r.decrypt(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	p.SearchName = search.SearchName(p.FirstName, p.LastName)
	p.DocumentIndex = r.documentIndex(p.DocumentNumber)

	enc, err := r.encrypted(p)
	if err != nil {
		return fmt.Errorf("patient update: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET first_name=$2, last_name=$3, document_type=$4, document_number=$5, document_index=$6,
			birth_date=$7, gender=$8, nationality=$9, phone=$10, email=$11, address=$12, city=$13, province=$14,
			insurer=$15, insurer_number=$16, insurer_plan=$17, search_name=$18, synthesized=$19, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`,
		p.ID, p.FirstName, p.LastName, p.DocumentType, enc.DocumentNumber, p.DocumentIndex,
		p.BirthDate, p.Gender, p.Nationality, enc.Phone, enc.Email, enc.Address, enc.City, enc.Province,
		p.Insurer, p.InsurerNumber, p.InsurerPlan, p.SearchName, p.Synthesized,
	).Scan(&p.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE patient SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
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
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM patient WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.Search(ctx, nil, limit, offset)
}

// Search supports q (fuzzy name, or an exact document number when q has no
// letters), gender, birth_date (with gt/lt/ge/le prefixes), insurer and
// synthesized.
func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	q := search.NewQuery("patient", patientCols).OrderBy("last_name, first_name")

	if term := params["q"]; term != "" {
		if looksLikeDocument(term) {
			q.Eq("document_index", r.phi.BlindIndex(search.NormalizeDocument(term)))
		} else {
			q.Fuzzy("search_name", term)
		}
	}
	if v := params["gender"]; v != "" {
		q.Eq("gender", v)
	}
	if v := params["birth_date"]; v != "" {
		if err := q.Date("birth_date", v); err != nil {
			return nil, 0, apperr.Invalid("birth_date: %v", err)
		}
	}
	if v := params["insurer"]; v != "" {
		q.Prefix("insurer", v)
	}
	if v := params["synthesized"]; v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, 0, apperr.Invalid("synthesized must be true or false")
		}
		q.Eq("synthesized", b)
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

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		if err := r.decrypt(p); err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

// looksLikeDocument is true for terms made of digits and separators only.
func looksLikeDocument(term string) bool {
	digits := 0
	for _, r := range term {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			return false
		}
	}
	return digits >= 5
}

// encrypted returns a copy of the PHI columns as they are stored.
func (r *repoPG) encrypted(p *Patient) (*Patient, error) {
	enc := r.phi.Encryptor()
	out := &Patient{}
	fields := []struct {
		src *string
		dst **string
	}{
		{p.DocumentNumber, &out.DocumentNumber},
		{p.Phone, &out.Phone},
		{p.Email, &out.Email},
		{p.Address, &out.Address},
		{p.City, &out.City},
		{p.Province, &out.Province},
	}
	for _, f := range fields {
		v, err := phi.EncryptPtr(enc, f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	return out, nil
}

func (r *repoPG) decrypt(p *Patient) error {
	enc := r.phi.Encryptor()
	for _, f := range []**string{&p.DocumentNumber, &p.Phone, &p.Email, &p.Address, &p.City, &p.Province} {
		v, err := phi.DecryptPtr(enc, *f)
		if err != nil {
			return fmt.Errorf("patient %s: %w", p.ID, err)
		}
		*f = v
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DocumentType, &p.DocumentNumber, &p.DocumentIndex,
		&p.BirthDate, &p.Gender, &p.Nationality, &p.Phone, &p.Email, &p.Address, &p.City, &p.Province,
		&p.Insurer, &p.InsurerNumber, &p.InsurerPlan, &p.SearchName, &p.Synthesized, &p.LegacyID,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
