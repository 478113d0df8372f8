package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Coverage regimes accepted on an orthopedic act. The applied rate depends
// on the regime: the standard illness regime reimburses at 70 percent, the
// other three at 100 percent.
const (
	RegimeMaladie       = "maladie"
	RegimeLongueMaladie = "longue-maladie"
	RegimeMaternite     = "maternite"
	RegimeAccidentTrav  = "accident-travail"
)

// RegimeRates lists the applied-rate percentages each regime allows.
var RegimeRates = map[string][]int{
	RegimeMaladie:       {70, 100},
	RegimeLongueMaladie: {100},
	RegimeMaternite:     {100},
	RegimeAccidentTrav:  {100},
}

// OrthopedicAct maps to the invoice_act table. Total and the two shares are
// operator-supplied; the share sum is validated, never corrected.
type OrthopedicAct struct {
	ID            uuid.UUID `db:"id" json:"id"`
	InvoiceID     uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Position      int       `db:"position" json:"position"`
	LPPRCode      string    `db:"lppr_code" json:"lppr_code"`
	Label         string    `db:"label" json:"label"`
	InvoiceLabel  string    `db:"invoice_label" json:"invoice_label"`
	Quantity      int       `db:"quantity" json:"quantity"`
	LPPRBaseRate  float64   `db:"lppr_base_rate" json:"lppr_base_rate"`
	AppliedRate   int       `db:"applied_rate" json:"applied_rate"`
	Regime        string    `db:"regime" json:"regime"`
	Total         float64   `db:"total" json:"total"`
	InsurerShare  float64   `db:"insurer_share" json:"insurer_share"`
	PatientShare  float64   `db:"patient_share" json:"patient_share"`
}

// Invoice maps to the invoice table (facture semelles). Acts live in their
// own table and are joined on load, same contract as claims.
type Invoice struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	PrescriberID *uuid.UUID `db:"prescriber_id" json:"prescriber_id,omitempty"`
	InvoiceDate  time.Time  `db:"invoice_date" json:"invoice_date"`
	BordereauID  *uuid.UUID `db:"bordereau_id" json:"bordereau_id,omitempty"`
	TotalAmount  float64    `db:"total_amount" json:"total_amount"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	Acts []*OrthopedicAct `db:"-" json:"acts"`
}
