package claim

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

const claimCols = `id, patient_id, prescriber_id, care_date, prescription_date,
	long_term_illness, work_injury, maternity, emergency,
	special_derogation, derogation_text, care_basket, prior_agreement_rsr,
	bordereau_id, total_amount, created_at, updated_at`

const actCols = `id, claim_id, position, code, label, base_tariff, coefficient,
	ifd, night_surcharge, holiday_surcharge, travel_distance_km, amount`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.PatientID, &c.PrescriberID, &c.CareDate, &c.PrescriptionDate,
		&c.LongTermIllness, &c.WorkInjury, &c.Maternity, &c.Emergency,
		&c.SpecialDerogation, &c.DerogationText, &c.CareBasket, &c.PriorAgreementRSR,
		&c.BordereauID, &c.TotalAmount, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func scanAct(row pgx.Row) (*CareAct, error) {
	var a CareAct
	err := row.Scan(&a.ID, &a.ClaimID, &a.Position, &a.Code, &a.Label, &a.BaseTariff, &a.Coefficient,
		&a.IFD, &a.NightSurcharge, &a.HolidaySurcharge, &a.TravelDistanceKm, &a.Amount)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, c *Claim) error {
	c.ID = uuid.New()
	conn := r.conn(ctx)
	// bordereau_id is deliberately absent: membership is only ever granted
	// through the bordereau attach path and its exclusivity guard.
	_, err := conn.Exec(ctx, `
		INSERT INTO claim (id, patient_id, prescriber_id, care_date, prescription_date,
			long_term_illness, work_injury, maternity, emergency,
			special_derogation, derogation_text, care_basket, prior_agreement_rsr,
			total_amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		c.ID, c.PatientID, c.PrescriberID, c.CareDate, c.PrescriptionDate,
		c.LongTermIllness, c.WorkInjury, c.Maternity, c.Emergency,
		c.SpecialDerogation, c.DerogationText, c.CareBasket, c.PriorAgreementRSR,
		c.TotalAmount)
	if err != nil {
		return err
	}
	return r.insertActs(ctx, c)
}

func (r *repoPG) insertActs(ctx context.Context, c *Claim) error {
	conn := r.conn(ctx)
	for i, act := range c.Acts {
		act.ID = uuid.New()
		act.ClaimID = c.ID
		act.Position = i + 1
		_, err := conn.Exec(ctx, `
			INSERT INTO claim_act (id, claim_id, position, code, label, base_tariff, coefficient,
				ifd, night_surcharge, holiday_surcharge, travel_distance_km, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			act.ID, act.ClaimID, act.Position, act.Code, act.Label, act.BaseTariff, act.Coefficient,
			act.IFD, act.NightSurcharge, act.HolidaySurcharge, act.TravelDistanceKm, act.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) loadActs(ctx context.Context, claimID uuid.UUID) ([]*CareAct, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+actCols+` FROM claim_act WHERE claim_id = $1 ORDER BY position`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var acts []*CareAct
	for rows.Next() {
		a, err := scanAct(rows)
		if err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := scanClaim(r.conn(ctx).QueryRow(ctx, `SELECT `+claimCols+` FROM claim WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	c.Acts, err = r.loadActs(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repoPG) Update(ctx context.Context, c *Claim) error {
	conn := r.conn(ctx)
	_, err := conn.Exec(ctx, `
		UPDATE claim SET patient_id=$2, prescriber_id=$3, care_date=$4, prescription_date=$5,
			long_term_illness=$6, work_injury=$7, maternity=$8, emergency=$9,
			special_derogation=$10, derogation_text=$11, care_basket=$12, prior_agreement_rsr=$13,
			total_amount=$14, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.PatientID, c.PrescriberID, c.CareDate, c.PrescriptionDate,
		c.LongTermIllness, c.WorkInjury, c.Maternity, c.Emergency,
		c.SpecialDerogation, c.DerogationText, c.CareBasket, c.PriorAgreementRSR,
		c.TotalAmount)
	if err != nil {
		return err
	}
	// Acts are replaced wholesale; positions are reassigned on insert.
	if _, err := conn.Exec(ctx, `DELETE FROM claim_act WHERE claim_id = $1`, c.ID); err != nil {
		return err
	}
	return r.insertActs(ctx, c)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	conn := r.conn(ctx)
	if _, err := conn.Exec(ctx, `DELETE FROM claim_act WHERE claim_id = $1`, id); err != nil {
		return err
	}
	_, err := conn.Exec(ctx, `DELETE FROM claim WHERE id = $1`, id)
	return err
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Claim, int, error) {
	conn := r.conn(ctx)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM claim`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	queryArgs := append(append([]interface{}{}, args...), limit, offset)
	n := len(args)
	rows, err := conn.Query(ctx,
		`SELECT `+claimCols+` FROM claim`+where+` ORDER BY care_date DESC LIMIT $`+itoa(n+1)+` OFFSET $`+itoa(n+2),
		queryArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, c := range items {
		if c.Acts, err = r.loadActs(ctx, c.ID); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	return r.list(ctx, ` WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Claim, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func itoa(n int) string { return strconv.Itoa(n) }
