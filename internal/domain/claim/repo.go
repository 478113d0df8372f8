package claim

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists claim headers and their acts as one logical unit.
type Repository interface {
	Create(ctx context.Context, c *Claim) error
	// GetByID returns the claim with its acts joined, ordered by position.
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	Update(ctx context.Context, c *Claim) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error)
	List(ctx context.Context, limit, offset int) ([]*Claim, int, error)
}
