package invoice

import (
	"context"
	"strconv"

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

const invoiceCols = `id, patient_id, prescriber_id, invoice_date, bordereau_id,
	total_amount, created_at, updated_at`

const actCols = `id, invoice_id, position, lppr_code, label, invoice_label,
	quantity, lppr_base_rate, applied_rate, regime, total, insurer_share, patient_share`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.PrescriberID, &inv.InvoiceDate,
		&inv.BordereauID, &inv.TotalAmount, &inv.CreatedAt, &inv.UpdatedAt)
	return &inv, err
}

func scanAct(row pgx.Row) (*OrthopedicAct, error) {
	var a OrthopedicAct
	err := row.Scan(&a.ID, &a.InvoiceID, &a.Position, &a.LPPRCode, &a.Label, &a.InvoiceLabel,
		&a.Quantity, &a.LPPRBaseRate, &a.AppliedRate, &a.Regime, &a.Total, &a.InsurerShare, &a.PatientShare)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	// bordereau_id is deliberately absent: membership is only ever granted
	// through the bordereau attach path and its exclusivity guard.
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice (id, patient_id, prescriber_id, invoice_date, total_amount)
		VALUES ($1,$2,$3,$4,$5)`,
		inv.ID, inv.PatientID, inv.PrescriberID, inv.InvoiceDate, inv.TotalAmount)
	if err != nil {
		return err
	}
	return r.insertActs(ctx, inv)
}

func (r *repoPG) insertActs(ctx context.Context, inv *Invoice) error {
	conn := r.conn(ctx)
	for i, act := range inv.Acts {
		act.ID = uuid.New()
		act.InvoiceID = inv.ID
		act.Position = i + 1
		_, err := conn.Exec(ctx, `
			INSERT INTO invoice_act (id, invoice_id, position, lppr_code, label, invoice_label,
				quantity, lppr_base_rate, applied_rate, regime, total, insurer_share, patient_share)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			act.ID, act.InvoiceID, act.Position, act.LPPRCode, act.Label, act.InvoiceLabel,
			act.Quantity, act.LPPRBaseRate, act.AppliedRate, act.Regime, act.Total,
			act.InsurerShare, act.PatientShare)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) loadActs(ctx context.Context, invoiceID uuid.UUID) ([]*OrthopedicAct, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+actCols+` FROM invoice_act WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var acts []*OrthopedicAct
	for rows.Next() {
		a, err := scanAct(rows)
		if err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoice WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	inv.Acts, err = r.loadActs(ctx, id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repoPG) Update(ctx context.Context, inv *Invoice) error {
	conn := r.conn(ctx)
	_, err := conn.Exec(ctx, `
		UPDATE invoice SET patient_id=$2, prescriber_id=$3, invoice_date=$4,
			total_amount=$5, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.PatientID, inv.PrescriberID, inv.InvoiceDate, inv.TotalAmount)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, `DELETE FROM invoice_act WHERE invoice_id = $1`, inv.ID); err != nil {
		return err
	}
	return r.insertActs(ctx, inv)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	conn := r.conn(ctx)
	if _, err := conn.Exec(ctx, `DELETE FROM invoice_act WHERE invoice_id = $1`, id); err != nil {
		return err
	}
	_, err := conn.Exec(ctx, `DELETE FROM invoice WHERE id = $1`, id)
	return err
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Invoice, int, error) {
	conn := r.conn(ctx)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM invoice`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	queryArgs := append(append([]interface{}{}, args...), limit, offset)
	n := len(args)
	rows, err := conn.Query(ctx,
		`SELECT `+invoiceCols+` FROM invoice`+where+` ORDER BY invoice_date DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		queryArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, inv := range items {
		if inv.Acts, err = r.loadActs(ctx, inv.ID); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return r.list(ctx, ` WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Invoice, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}
