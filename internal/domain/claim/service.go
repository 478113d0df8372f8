package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/manataote/cabinet-medical-sub001/internal/domain/tariff"
	"github.com/manataote/cabinet-medical-sub001/internal/platform/db"
)

// BatchDetacher removes a claim from the settlement batch that references
// it and recomputes that batch's totals. Implemented by the bordereau
// service and wired in at startup.
type BatchDetacher interface {
	DetachClaim(ctx context.Context, claimID uuid.UUID) error
}

type Service struct {
	repo     Repository
	pool     *pgxpool.Pool
	tariffs  tariff.Config
	detacher BatchDetacher
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewService(repo Repository, pool *pgxpool.Pool, tariffs tariff.Config, timeout time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, pool: pool, tariffs: tariffs, timeout: timeout, logger: logger}
}

// SetDetacher wires the settlement-batch service after both services exist.
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

func (s *Service) validate(c *Claim) error {
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if c.CareDate.IsZero() {
		return fmt.Errorf("care_date is required")
	}
	if c.SpecialDerogation && (c.DerogationText == nil || *c.DerogationText == "") {
		return fmt.Errorf("derogation_text is required when special_derogation is set")
	}
	for i, act := range c.Acts {
		if act.Code == "" {
			return fmt.Errorf("act %d: code is required", i+1)
		}
	}
	return nil
}

// recompute prices every act and the claim total, logging any value
// coercions so bad inputs stay visible without blocking the save.
func (s *Service) recompute(c *Claim) []tariff.Warning {
	warnings := Recompute(c, s.tariffs)
	for _, w := range warnings {
		s.logger.Warn().
			Str("claim_id", c.ID.String()).
			Str("field", w.Field).
			Str("reason", w.Reason).
			Msg("care act value coerced during amount computation")
	}
	return warnings
}

// Create saves a new claim. The returned warnings describe any input values
// that were coerced during amount computation; the caller surfaces them so a
// coerced zero is distinguishable from a deliberate one.
func (s *Service) Create(ctx context.Context, c *Claim) (*Claim, []tariff.Warning, error) {
	if err := s.validate(c); err != nil {
		return nil, nil, err
	}
	for _, act := range c.Acts {
		if act.Coefficient == 0 {
			act.Coefficient = 1
		}
	}
	// Batch membership only ever flows through the bordereau service.
	c.BordereauID = nil
	warnings := s.recompute(c)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.inTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, c)
	})
	if err != nil {
		return nil, nil, db.MapError(err)
	}
	return c, warnings, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err)
	}
	// Stored totals may predate a tariff change; amounts are always
	// derived from the acts on read.
	s.recompute(c)
	return c, nil
}

func (s *Service) Update(ctx context.Context, c *Claim) (*Claim, []tariff.Warning, error) {
	if c.ID == uuid.Nil {
		return nil, nil, fmt.Errorf("id is required")
	}
	if err := s.validate(c); err != nil {
		return nil, nil, err
	}
	warnings := s.recompute(c)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.inTx(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, c)
	})
	if err != nil {
		return nil, nil, db.MapError(err)
	}
	return c, warnings, nil
}

// Delete removes the claim. The batch detach and the row delete share one
// transaction, so a failed delete leaves the batch membership and totals
// untouched.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.inTx(ctx, func(ctx context.Context) error {
		if s.detacher != nil {
			if err := s.detacher.DetachClaim(ctx, id); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, id)
	})
	return db.MapError(err)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	for _, c := range items {
		s.recompute(c)
	}
	return items, total, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Claim, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	for _, c := range items {
		s.recompute(c)
	}
	return items, total, nil
}
