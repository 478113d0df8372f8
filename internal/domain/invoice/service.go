package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manataote/cabinet-medical-sub001/internal/platform/db"
)

// BatchDetacher removes an invoice from the settlement batch referencing it
// and recomputes that batch's totals.
type BatchDetacher interface {
	DetachInvoice(ctx context.Context, invoiceID uuid.UUID) error
}

type Service struct {
	repo     Repository
	pool     *pgxpool.Pool
	detacher BatchDetacher
	timeout  time.Duration
}

func NewService(repo Repository, pool *pgxpool.Pool, timeout time.Duration) *Service {
	return &Service{repo: repo, pool: pool, timeout: timeout}
}

func (s *Service) SetDetacher(d BatchDetacher) { s.detacher = d }

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, s.pool, fn)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) validate(inv *Invoice) error {
	if inv.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if inv.InvoiceDate.IsZero() {
		return fmt.Errorf("invoice_date is required")
	}
	for i, act := range inv.Acts {
		if act.LPPRCode == "" {
			return fmt.Errorf("act %d: lppr_code is required", i+1)
		}
		if act.Quantity < 1 {
			return fmt.Errorf("act %d: quantity must be at least 1", i+1)
		}
		rates, ok := RegimeRates[act.Regime]
		if !ok {
			return fmt.Errorf("act %d: unknown regime %q", i+1, act.Regime)
		}
		valid := false
		for _, rate := range rates {
			if act.AppliedRate == rate {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("act %d: rate %d%% is not allowed under regime %q", i+1, act.AppliedRate, act.Regime)
		}
	}
	if violations := ValidateActs(inv.Acts); len(violations) > 0 {
		return violations[0]
	}
	return nil
}

func (s *Service) Create(ctx context.Context, inv *Invoice) (*Invoice, error) {
	if err := s.validate(inv); err != nil {
		return nil, err
	}
	// Batch membership only ever flows through the bordereau service.
	inv.BordereauID = nil
	Recompute(inv)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.inTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, inv)
	})
	if err != nil {
		return nil, db.MapError(err)
	}
	return inv, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err)
	}
	Recompute(inv)
	return inv, nil
}

func (s *Service) Update(ctx context.Context, inv *Invoice) (*Invoice, error) {
	if inv.ID == uuid.Nil {
		return nil, fmt.Errorf("id is required")
	}
	if err := s.validate(inv); err != nil {
		return nil, err
	}
	Recompute(inv)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.inTx(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, inv)
	})
	if err != nil {
		return nil, db.MapError(err)
	}
	return inv, nil
}

// Delete removes the invoice. The batch detach and the row delete share
// one transaction, so a failed delete leaves the batch membership and
// totals untouched.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.inTx(ctx, func(ctx context.Context) error {
		if s.detacher != nil {
			if err := s.detacher.DetachInvoice(ctx, id); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, id)
	})
	return db.MapError(err)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	for _, inv := range items {
		Recompute(inv)
	}
	return items, total, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Invoice, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	for _, inv := range items {
		Recompute(inv)
	}
	return items, total, nil
}
