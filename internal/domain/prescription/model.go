package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Prescription maps to the ordonnance table.
type Prescription struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	PrescriberID *uuid.UUID `db:"prescriber_id" json:"prescriber_id,omitempty"`
	Date         time.Time  `db:"prescription_date" json:"prescription_date"`
	Content      string     `db:"content" json:"content"`
	DurationDays int        `db:"duration_days" json:"duration_days"`
	RenewalCount int        `db:"renewal_count" json:"renewal_count"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
