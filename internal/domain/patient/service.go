package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manataote/cabinet-medical-sub001/internal/platform/db"
)

type Service struct {
	repo    Repository
	merger  *Merger
	timeout time.Duration
}

func NewService(repo Repository, timeout time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, merger: NewMerger(repo, logger), timeout: timeout}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) validate(p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if err := ValidateDN(p.DN); err != nil {
		return err
	}
	if p.InsuredDN != nil {
		if err := ValidateDN(*p.InsuredDN); err != nil {
			return fmt.Errorf("insured: %w", err)
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Patient) (*Patient, error) {
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

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, p *Patient) (*Patient, error) {
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

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	return items, total, nil
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.repo.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	return items, total, nil
}

// Merge folds the given duplicate records into one. Merges intentionally
// run without the persistence timeout: aborting a reassignment cascade
// midway is worse than letting it finish slowly.
func (s *Service) Merge(ctx context.Context, ids []uuid.UUID, composite Composite) (*MergeResult, error) {
	return s.merger.Merge(ctx, ids, composite)
}

func (s *Service) AddNote(ctx context.Context, n *Note) (*Note, error) {
	if n.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if n.Content == "" {
		return nil, fmt.Errorf("content is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repo.AddNote(ctx, n); err != nil {
		return nil, db.MapError(err)
	}
	return n, nil
}

func (s *Service) ListNotes(ctx context.Context, patientID uuid.UUID) ([]*Note, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	notes, err := s.repo.ListNotes(ctx, patientID)
	if err != nil {
		return nil, db.MapError(err)
	}
	return notes, nil
}
