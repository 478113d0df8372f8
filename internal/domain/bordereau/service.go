package bordereau

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/manataote/cabinet-medical-sub001/internal/platform/db"
	"github.com/manataote/cabinet-medical-sub001/internal/platform/metrics"
)

type Service struct {
	repo    Repository
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  zerolog.Logger
}

func NewService(repo Repository, pool *pgxpool.Pool, timeout time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, pool: pool, timeout: timeout, logger: logger}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, s.pool, fn)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Build creates a batch over the given claims and invoices. Every member
// must be unattached; a member already on a batch aborts the whole build.
func (s *Service) Build(ctx context.Context, cabinetID string, claimIDs, invoiceIDs []uuid.UUID) (*Bordereau, error) {
	if cabinetID == "" {
		return nil, fmt.Errorf("cabinet_id is required")
	}
	if len(claimIDs) == 0 && len(invoiceIDs) == 0 {
		return nil, fmt.Errorf("a bordereau needs at least one claim or invoice")
	}

	b := &Bordereau{CabinetID: cabinetID, Status: StatusOpen}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, b); err != nil {
			return err
		}
		attached, err := s.repo.AttachClaims(ctx, b.ID, claimIDs)
		if err != nil {
			return err
		}
		if attached != int64(len(claimIDs)) {
			return fmt.Errorf("%d of %d claims already belong to a bordereau", int64(len(claimIDs))-attached, len(claimIDs))
		}
		attached, err = s.repo.AttachInvoices(ctx, b.ID, invoiceIDs)
		if err != nil {
			return err
		}
		if attached != int64(len(invoiceIDs)) {
			return fmt.Errorf("%d of %d invoices already belong to a bordereau", int64(len(invoiceIDs))-attached, len(invoiceIDs))
		}
		return s.reaggregate(ctx, b)
	})
	if err != nil {
		return nil, db.MapError(err)
	}
	return b, nil
}

func (s *Service) reaggregate(ctx context.Context, b *Bordereau) error {
	t, err := s.repo.Totals(ctx, b.ID)
	if err != nil {
		return err
	}
	b.ClaimCount = t.ClaimCount
	b.InvoiceCount = t.InvoiceCount
	b.TotalAmount = t.ClaimTotal + t.InvoiceTotal
	return s.repo.Update(ctx, b)
}

// Reaggregate recomputes a batch's counts and total from its current
// member rows.
func (s *Service) Reaggregate(ctx context.Context, id uuid.UUID) (*Bordereau, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var b *Bordereau
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return s.reaggregate(ctx, b)
	})
	if err != nil {
		return nil, db.MapError(err)
	}
	return b, nil
}

// RefreshOpenBatches reloads every open batch's totals wholesale. Run
// nightly by the scheduler and available on demand.
func (s *Service) RefreshOpenBatches(ctx context.Context) error {
	ids, err := s.repo.OpenBatchIDs(ctx)
	if err != nil {
		return db.MapError(err)
	}
	for _, id := range ids {
		if _, err := s.Reaggregate(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("bordereau_id", id.String()).Msg("bordereau refresh failed")
			continue
		}
		metrics.BordereauRefreshTotal.Inc()
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Bordereau, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err)
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Bordereau, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	return items, total, nil
}

func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*Bordereau, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var b *Bordereau
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if b.Status == StatusSubmitted {
			return fmt.Errorf("bordereau already submitted")
		}
		if err := s.reaggregate(ctx, b); err != nil {
			return err
		}
		b.Status = StatusSubmitted
		return s.repo.Update(ctx, b)
	})
	if err != nil {
		return nil, db.MapError(err)
	}
	return b, nil
}

// Delete removes the batch and releases its members. Member claims and
// invoices are never deleted with the batch.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DetachMembers(ctx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
	return db.MapError(err)
}

// DetachClaim implements the claim service's BatchDetacher. The former
// batch, if any, is re-aggregated in the same transaction.
func (s *Service) DetachClaim(ctx context.Context, claimID uuid.UUID) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		batchID, err := s.repo.DetachClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if batchID == nil {
			return nil
		}
		b, err := s.repo.GetByID(ctx, *batchID)
		if err != nil {
			return err
		}
		return s.reaggregate(ctx, b)
	})
}

// DetachInvoice implements the invoice service's BatchDetacher.
func (s *Service) DetachInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		batchID, err := s.repo.DetachInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if batchID == nil {
			return nil
		}
		b, err := s.repo.GetByID(ctx, *batchID)
		if err != nil {
			return err
		}
		return s.reaggregate(ctx, b)
	})
}
