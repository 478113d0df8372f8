package claim

import (
	"time"

	"github.com/google/uuid"
)

// CareAct maps to the claim_act table. Amount is computed, never entered.
type CareAct struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ClaimID          uuid.UUID `db:"claim_id" json:"claim_id"`
	Position         int       `db:"position" json:"position"`
	Code             string    `db:"code" json:"code"`
	Label            string    `db:"label" json:"label"`
	BaseTariff       float64   `db:"base_tariff" json:"base_tariff"`
	Coefficient      float64   `db:"coefficient" json:"coefficient"`
	IFD              bool      `db:"ifd" json:"ifd"`
	NightSurcharge   bool      `db:"night_surcharge" json:"night_surcharge"`
	HolidaySurcharge bool      `db:"holiday_surcharge" json:"holiday_surcharge"`
	TravelDistanceKm *float64  `db:"travel_distance_km" json:"travel_distance_km,omitempty"`
	Amount           float64   `db:"amount" json:"amount"`
}

// Claim maps to the claim table (feuille de soins). Acts are stored in their
// own table and joined on load; the claim is incomplete until they are
// attached and a stored TotalAmount is never trusted before the join.
type Claim struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	PrescriberID      *uuid.UUID `db:"prescriber_id" json:"prescriber_id,omitempty"`
	CareDate          time.Time  `db:"care_date" json:"care_date"`
	PrescriptionDate  *time.Time `db:"prescription_date" json:"prescription_date,omitempty"`
	LongTermIllness   bool       `db:"long_term_illness" json:"long_term_illness"`
	WorkInjury        bool       `db:"work_injury" json:"work_injury"`
	Maternity         bool       `db:"maternity" json:"maternity"`
	Emergency         bool       `db:"emergency" json:"emergency"`
	SpecialDerogation bool       `db:"special_derogation" json:"special_derogation"`
	DerogationText    *string    `db:"derogation_text" json:"derogation_text,omitempty"`
	CareBasket        *string    `db:"care_basket" json:"care_basket,omitempty"`
	PriorAgreementRSR *string    `db:"prior_agreement_rsr" json:"prior_agreement_rsr,omitempty"`
	BordereauID       *uuid.UUID `db:"bordereau_id" json:"bordereau_id,omitempty"`
	TotalAmount       float64    `db:"total_amount" json:"total_amount"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`

	Acts []*CareAct `db:"-" json:"acts"`
}
