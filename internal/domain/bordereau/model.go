package bordereau

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusOpen      = "open"
	StatusSubmitted = "submitted"
)

// Bordereau maps to the bordereau table. Counts and total are derived from
// member rows and refreshed wholesale on every membership change.
type Bordereau struct {
	ID           uuid.UUID `db:"id" json:"id"`
	CabinetID    string    `db:"cabinet_id" json:"cabinet_id"`
	Status       string    `db:"status" json:"status"`
	ClaimCount   int       `db:"claim_count" json:"claim_count"`
	InvoiceCount int       `db:"invoice_count" json:"invoice_count"`
	TotalAmount  float64   `db:"total_amount" json:"total_amount"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
