package patient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manataote/cabinet-medical-sub001/internal/platform/metrics"
)

// Composite carries the attribute values the operator chose while reviewing
// the duplicate records. Nil fields leave the survivor's value untouched.
type Composite struct {
	FirstName  *string    `json:"first_name,omitempty"`
	LastName   *string    `json:"last_name,omitempty"`
	MaidenName *string    `json:"maiden_name,omitempty"`
	DN         *string    `json:"dn,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Address    *string    `json:"address,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Email      *string    `json:"email,omitempty"`

	InsuredFirstName *string    `json:"insured_first_name,omitempty"`
	InsuredLastName  *string    `json:"insured_last_name,omitempty"`
	InsuredDN        *string    `json:"insured_dn,omitempty"`
	InsuredBirthDate *time.Time `json:"insured_birth_date,omitempty"`
}

// MergeResult reports what a completed merge did.
type MergeResult struct {
	Survivor   *Patient         `json:"survivor"`
	Reassigned map[string]int64 `json:"reassigned"`
	Deleted    int64            `json:"deleted"`
}

// PartialMergeFailure signals that reassignment stopped partway. The
// completed collections already point at the survivor, the failed one and
// any after it do not, and no patient record was deleted. Retrying the same
// merge is safe: reassignment matches on the absorbed ids, so collections
// already moved contribute zero rows the second time.
type PartialMergeFailure struct {
	Survivor  uuid.UUID
	Completed map[string]int64
	Failed    string
	Err       error
}

func (e *PartialMergeFailure) Error() string {
	return fmt.Sprintf("merge into %s stopped at %s: %v (completed: %v, duplicates kept)",
		e.Survivor, e.Failed, e.Err, e.Completed)
}

func (e *PartialMergeFailure) Unwrap() error { return e.Err }

// Merger folds duplicate patient records into one. There is no transaction
// spanning the four collections, so merges are serialized and each step is
// idempotent.
type Merger struct {
	repo   Repository
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewMerger(repo Repository, logger zerolog.Logger) *Merger {
	return &Merger{repo: repo, logger: logger}
}

// Merge resolves the survivor among ids, applies the composite to it,
// repoints every patient reference, then deletes the absorbed records.
// The record with the earliest created_at survives no matter which record
// the composite values came from.
func (m *Merger) Merge(ctx context.Context, ids []uuid.UUID, composite Composite) (*MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) < 2 {
		return nil, fmt.Errorf("merge needs at least 2 patients, got %d", len(ids))
	}
	if composite.DN != nil {
		if err := ValidateDN(*composite.DN); err != nil {
			return nil, err
		}
	}
	if composite.InsuredDN != nil {
		if err := ValidateDN(*composite.InsuredDN); err != nil {
			return nil, fmt.Errorf("insured: %w", err)
		}
	}

	patients, err := m.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(patients) != len(ids) {
		return nil, fmt.Errorf("merge: %d of %d patients not found", len(ids)-len(patients), len(ids))
	}

	survivor := resolveSurvivor(patients)
	absorbed := make([]uuid.UUID, 0, len(patients)-1)
	for _, p := range patients {
		if p.ID != survivor.ID {
			absorbed = append(absorbed, p.ID)
		}
	}

	applyComposite(survivor, composite)
	if err := m.repo.Update(ctx, survivor); err != nil {
		metrics.PatientMergesTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("merge: updating survivor: %w", err)
	}

	reassigned := make(map[string]int64, len(MergeOrder))
	for _, collection := range MergeOrder {
		n, err := m.repo.ReassignPatientRefs(ctx, collection, absorbed, survivor.ID)
		if err != nil {
			metrics.PatientMergesTotal.WithLabelValues("partial_failure").Inc()
			m.logger.Error().Err(err).
				Str("survivor_id", survivor.ID.String()).
				Str("collection", collection).
				Msg("patient merge stopped mid-cascade, duplicates kept")
			return nil, &PartialMergeFailure{
				Survivor:  survivor.ID,
				Completed: reassigned,
				Failed:    collection,
				Err:       err,
			}
		}
		reassigned[collection] = n
	}

	deleted, err := m.repo.Delete(ctx, absorbed)
	if err != nil {
		metrics.PatientMergesTotal.WithLabelValues("partial_failure").Inc()
		return nil, &PartialMergeFailure{
			Survivor:  survivor.ID,
			Completed: reassigned,
			Failed:    "delete",
			Err:       err,
		}
	}

	metrics.PatientMergesTotal.WithLabelValues("success").Inc()
	m.logger.Info().
		Str("survivor_id", survivor.ID.String()).
		Int("absorbed", len(absorbed)).
		Msg("patient merge complete")

	return &MergeResult{Survivor: survivor, Reassigned: reassigned, Deleted: deleted}, nil
}

// resolveSurvivor picks the oldest record. Ties on created_at fall back to
// the lexically smallest id so the outcome is stable across retries.
func resolveSurvivor(patients []*Patient) *Patient {
	sorted := make([]*Patient, len(patients))
	copy(sorted, patients)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted[0]
}

func applyComposite(p *Patient, c Composite) {
	if c.FirstName != nil {
		p.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		p.LastName = *c.LastName
	}
	if c.MaidenName != nil {
		p.MaidenName = c.MaidenName
	}
	if c.DN != nil {
		p.DN = *c.DN
	}
	if c.BirthDate != nil {
		p.BirthDate = c.BirthDate
	}
	if c.Address != nil {
		p.Address = c.Address
	}
	if c.Phone != nil {
		p.Phone = c.Phone
	}
	if c.Email != nil {
		p.Email = c.Email
	}
	if c.InsuredFirstName != nil {
		p.InsuredFirstName = c.InsuredFirstName
	}
	if c.InsuredLastName != nil {
		p.InsuredLastName = c.InsuredLastName
	}
	if c.InsuredDN != nil {
		p.InsuredDN = c.InsuredDN
	}
	if c.InsuredBirthDate != nil {
		p.InsuredBirthDate = c.InsuredBirthDate
	}
}
