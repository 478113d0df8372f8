package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manataote/cabinet-medical-sub001/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const cols = `id, first_name, last_name, maiden_name, dn, birth_date, address, phone, email,
	insured_first_name, insured_last_name, insured_dn, insured_birth_date, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.MaidenName, &p.DN, &p.BirthDate,
		&p.Address, &p.Phone, &p.Email,
		&p.InsuredFirstName, &p.InsuredLastName, &p.InsuredDN, &p.InsuredBirthDate,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, first_name, last_name, maiden_name, dn, birth_date, address, phone, email,
			insured_first_name, insured_last_name, insured_dn, insured_birth_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.FirstName, p.LastName, p.MaidenName, p.DN, p.BirthDate, p.Address, p.Phone, p.Email,
		p.InsuredFirstName, p.InsuredLastName, p.InsuredDN, p.InsuredBirthDate)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+cols+` FROM patient WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET first_name=$2, last_name=$3, maiden_name=$4, dn=$5, birth_date=$6,
			address=$7, phone=$8, email=$9,
			insured_first_name=$10, insured_last_name=$11, insured_dn=$12, insured_birth_date=$13,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.MaidenName, p.DN, p.BirthDate,
		p.Address, p.Phone, p.Email,
		p.InsuredFirstName, p.InsuredLastName, p.InsuredDN, p.InsuredBirthDate)
	return err
}

func (r *repoPG) Delete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	pattern := "%" + query + "%"
	return r.list(ctx,
		` WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR maiden_name ILIKE $1 OR dn LIKE $1`,
		[]interface{}{pattern}, limit, offset)
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Patient, int, error) {
	conn := r.conn(ctx)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	queryArgs := append(append([]interface{}{}, args...), limit, offset)
	rows, err := conn.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM patient%s ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, cols, where, n+1, n+2),
		queryArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ReassignPatientRefs(ctx context.Context, collection string, fromIDs []uuid.UUID, toID uuid.UUID) (int64, error) {
	switch collection {
	case CollectionClaims, CollectionInvoices, CollectionPrescriptions, CollectionNotes:
	default:
		return 0, fmt.Errorf("unknown collection %q", collection)
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE `+collection+` SET patient_id = $1 WHERE patient_id = ANY($2)`,
		toID, fromIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) AddNote(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO patient_note (id, patient_id, author, content) VALUES ($1,$2,$3,$4)`,
		n.ID, n.PatientID, n.Author, n.Content)
	return err
}

func (r *repoPG) ListNotes(ctx context.Context, patientID uuid.UUID) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, patient_id, author, content, created_at FROM patient_note WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notes []*Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.PatientID, &n.Author, &n.Content, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}
