package patient

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// dnPattern matches the CPS national identification number: exactly seven
// digits, no separators.
var dnPattern = regexp.MustCompile(`^[0-9]{7}$`)

func ValidateDN(dn string) error {
	if !dnPattern.MatchString(dn) {
		return fmt.Errorf("dn must be exactly 7 digits, got %q", dn)
	}
	return nil
}

// Patient maps to the patient table. The insured_* columns describe the
// insured person when the patient is a beneficiary under someone else's
// coverage; they are empty for self-insured patients.
type Patient struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	FirstName  string     `db:"first_name" json:"first_name"`
	LastName   string     `db:"last_name" json:"last_name"`
	MaidenName *string    `db:"maiden_name" json:"maiden_name,omitempty"`
	DN         string     `db:"dn" json:"dn"`
	BirthDate  *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Address    *string    `db:"address" json:"address,omitempty"`
	Phone      *string    `db:"phone" json:"phone,omitempty"`
	Email      *string    `db:"email" json:"email,omitempty"`

	InsuredFirstName *string    `db:"insured_first_name" json:"insured_first_name,omitempty"`
	InsuredLastName  *string    `db:"insured_last_name" json:"insured_last_name,omitempty"`
	InsuredDN        *string    `db:"insured_dn" json:"insured_dn,omitempty"`
	InsuredBirthDate *time.Time `db:"insured_birth_date" json:"insured_birth_date,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Note maps to the patient_note table.
type Note struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Author    string    `db:"author" json:"author"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
