package patient

import (
	"context"

	"github.com/google/uuid"
)

// Collections that hold patient references, in merge-cascade order.
const (
	CollectionClaims        = "claim"
	CollectionInvoices      = "invoice"
	CollectionPrescriptions = "ordonnance"
	CollectionNotes         = "patient_note"
)

// MergeOrder is the fixed sequence the merger walks when reassigning
// references from the absorbed patients to the survivor.
var MergeOrder = []string{CollectionClaims, CollectionInvoices, CollectionPrescriptions, CollectionNotes}

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, ids []uuid.UUID) (int64, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)

	// ReassignPatientRefs repoints patient_id from any of fromIDs to toID
	// in the named collection and reports the number of rows touched.
	// Collection must be one of the Collection constants.
	ReassignPatientRefs(ctx context.Context, collection string, fromIDs []uuid.UUID, toID uuid.UUID) (int64, error)

	AddNote(ctx context.Context, n *Note) error
	ListNotes(ctx context.Context, patientID uuid.UUID) ([]*Note, error)
}
