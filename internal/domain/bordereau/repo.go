package bordereau

import (
	"context"

	"github.com/google/uuid"
)

// MemberTotals is the aggregate view over a batch's member rows.
type MemberTotals struct {
	ClaimCount   int
	ClaimTotal   float64
	InvoiceCount int
	InvoiceTotal float64
}

type Repository interface {
	Create(ctx context.Context, b *Bordereau) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bordereau, error)
	Update(ctx context.Context, b *Bordereau) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Bordereau, int, error)

	// AttachClaims sets bordereau_id on the given claim rows where it is
	// still null and reports how many rows were claimed. A count short of
	// len(ids) means some member already belongs to a batch.
	AttachClaims(ctx context.Context, batchID uuid.UUID, ids []uuid.UUID) (int64, error)
	AttachInvoices(ctx context.Context, batchID uuid.UUID, ids []uuid.UUID) (int64, error)

	// DetachMembers clears bordereau_id on every member of the batch.
	DetachMembers(ctx context.Context, batchID uuid.UUID) error

	// DetachClaim clears a single claim's membership and returns the batch
	// it belonged to, or nil when it was unattached.
	DetachClaim(ctx context.Context, claimID uuid.UUID) (*uuid.UUID, error)
	DetachInvoice(ctx context.Context, invoiceID uuid.UUID) (*uuid.UUID, error)

	Totals(ctx context.Context, batchID uuid.UUID) (MemberTotals, error)
	OpenBatchIDs(ctx context.Context) ([]uuid.UUID, error)
}
