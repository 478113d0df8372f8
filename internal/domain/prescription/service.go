package prescription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/manataote/cabinet-medical-sub001/internal/platform/db"
)

type Service struct {
	repo    Repository
	timeout time.Duration
}

func NewService(repo Repository, timeout time.Duration) *Service {
	return &Service{repo: repo, timeout: timeout}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) validate(p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.Date.IsZero() {
		return fmt.Errorf("prescription_date is required")
	}
	if p.Content == "" {
		return fmt.Errorf("content is required")
	}
	if p.DurationDays < 0 {
		return fmt.Errorf("duration_days must not be negative")
	}
	if p.RenewalCount < 0 {
		return fmt.Errorf("renewal_count must not be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Prescription) (*Prescription, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, db.MapError(err)
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, p *Prescription) (*Prescription, error) {
	if p.ID == uuid.Nil {
		return nil, fmt.Errorf("id is required")
	}
	if err := s.validate(p); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, db.MapError(err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repo.Delete(ctx, id); err != nil {
		return db.MapError(err)
	}
	return nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	return items, total, nil
}
