package bordereau

import (
	"context"

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

const cols = `id, cabinet_id, status, claim_count, invoice_count, total_amount, created_at, updated_at`

func scanBordereau(row pgx.Row) (*Bordereau, error) {
	var b Bordereau
	err := row.Scan(&b.ID, &b.CabinetID, &b.Status, &b.ClaimCount, &b.InvoiceCount,
		&b.TotalAmount, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Bordereau) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bordereau (id, cabinet_id, status, claim_count, invoice_count, total_amount)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.CabinetID, b.Status, b.ClaimCount, b.InvoiceCount, b.TotalAmount)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bordereau, error) {
	return scanBordereau(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM bordereau WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, b *Bordereau) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE bordereau SET status=$2, claim_count=$3, invoice_count=$4, total_amount=$5, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.Status, b.ClaimCount, b.InvoiceCount, b.TotalAmount)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM bordereau WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Bordereau, int, error) {
	conn := r.conn(ctx)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM bordereau`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+cols+` FROM bordereau ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Bordereau
	for rows.Next() {
		b, err := scanBordereau(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repoPG) attach(ctx context.Context, table string, batchID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE `+table+` SET bordereau_id = $1 WHERE id = ANY($2) AND bordereau_id IS NULL`,
		batchID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) AttachClaims(ctx context.Context, batchID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return r.attach(ctx, "claim", batchID, ids)
}

func (r *repoPG) AttachInvoices(ctx context.Context, batchID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return r.attach(ctx, "invoice", batchID, ids)
}

func (r *repoPG) DetachMembers(ctx context.Context, batchID uuid.UUID) error {
	conn := r.conn(ctx)
	if _, err := conn.Exec(ctx, `UPDATE claim SET bordereau_id = NULL WHERE bordereau_id = $1`, batchID); err != nil {
		return err
	}
	_, err := conn.Exec(ctx, `UPDATE invoice SET bordereau_id = NULL WHERE bordereau_id = $1`, batchID)
	return err
}

func (r *repoPG) detachOne(ctx context.Context, table string, id uuid.UUID) (*uuid.UUID, error) {
	var batchID *uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`WITH prev AS (SELECT bordereau_id FROM `+table+` WHERE id = $1)
		UPDATE `+table+` SET bordereau_id = NULL WHERE id = $1
		RETURNING (SELECT bordereau_id FROM prev)`,
		id).Scan(&batchID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return batchID, err
}

func (r *repoPG) DetachClaim(ctx context.Context, claimID uuid.UUID) (*uuid.UUID, error) {
	return r.detachOne(ctx, "claim", claimID)
}

func (r *repoPG) DetachInvoice(ctx context.Context, invoiceID uuid.UUID) (*uuid.UUID, error) {
	return r.detachOne(ctx, "invoice", invoiceID)
}

func (r *repoPG) Totals(ctx context.Context, batchID uuid.UUID) (MemberTotals, error) {
	conn := r.conn(ctx)
	var t MemberTotals
	err := conn.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM claim WHERE bordereau_id = $1`,
		batchID).Scan(&t.ClaimCount, &t.ClaimTotal)
	if err != nil {
		return t, err
	}
	err = conn.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM invoice WHERE bordereau_id = $1`,
		batchID).Scan(&t.InvoiceCount, &t.InvoiceTotal)
	return t, err
}

func (r *repoPG) OpenBatchIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM bordereau WHERE status = $1`, StatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
