// Package tariff computes care-act amounts under the cabinet's jurisdiction
// rules and validates orthopedic-act share splits. Everything here is pure:
// the jurisdiction constants arrive as an explicit Config value.
package tariff

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Config carries the jurisdiction surcharge constants, in francs. A zero rate
// means the surcharge is disabled; that is a valid configuration, not an
// error.
type Config struct {
	IKPerKm     float64 // per-kilometer travel indemnity
	IFDRate     float64 // home-visit flat indemnity
	NightRate   float64 // night surcharge
	HolidayRate float64 // sunday/holiday surcharge
}

// CareActInput is the computation-relevant slice of a care act.
type CareActInput struct {
	BaseTariff       float64
	Coefficient      float64
	IFD              bool
	NightSurcharge   bool
	HolidaySurcharge bool
	TravelDistanceKm float64
}

// Warning flags a coerced input. The amount is still computed; the caller
// decides whether a zero-amount act was deliberate.
type Warning struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ShareTolerance is the maximum accepted drift between an orthopedic act's
// total and the sum of its insurer and patient shares.
const ShareTolerance = 0.01

// ValidationError blocks a save. It names the offending act and field so the
// UI can highlight it.
type ValidationError struct {
	ActID   uuid.UUID
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ComputeCareActAmount computes one care act's amount: base tariff times
// coefficient, plus each enabled surcharge, plus kilometric indemnity,
// rounded to the nearest whole franc (XPF has no minor unit).
//
// Negative inputs are coerced to zero and reported as warnings rather than
// rejected; permissive form entry upstream must never crash a whole claim,
// but the coercion stays observable.
func ComputeCareActAmount(in CareActInput, cfg Config) (float64, []Warning) {
	var warnings []Warning

	base := in.BaseTariff
	if base < 0 || math.IsNaN(base) {
		warnings = append(warnings, Warning{Field: "baseTariff", Reason: "negative or invalid value coerced to 0"})
		base = 0
	}
	coef := in.Coefficient
	if coef < 0 || math.IsNaN(coef) {
		warnings = append(warnings, Warning{Field: "coefficient", Reason: "negative or invalid value coerced to 0"})
		coef = 0
	}
	if coef == 0 {
		warnings = append(warnings, Warning{Field: "coefficient", Reason: "zero coefficient yields a zero amount"})
	}

	amount := base * coef
	if in.IFD {
		amount += cfg.IFDRate
	}
	if in.NightSurcharge {
		amount += cfg.NightRate
	}
	if in.HolidaySurcharge {
		amount += cfg.HolidayRate
	}
	if in.TravelDistanceKm > 0 {
		amount += in.TravelDistanceKm * cfg.IKPerKm
	} else if in.TravelDistanceKm < 0 {
		warnings = append(warnings, Warning{Field: "travelDistanceKm", Reason: "negative distance ignored"})
	}

	return math.Round(amount), warnings
}

// OrthopedicShares is the operator-supplied money split of an orthopedic act.
// The total is never derived here; the calculator only checks consistency.
type OrthopedicShares struct {
	ActID        uuid.UUID
	Total        float64
	InsurerShare float64
	PatientShare float64
}

// ValidateOrthopedicShares checks that insurer share plus patient share
// matches the total within ShareTolerance. A violation blocks the save; it is
// never auto-corrected.
func ValidateOrthopedicShares(s OrthopedicShares) *ValidationError {
	if diff := math.Abs(s.InsurerShare + s.PatientShare - s.Total); diff > ShareTolerance {
		return &ValidationError{
			ActID: s.ActID,
			Field: "insurerShare+patientShare",
			Message: fmt.Sprintf("shares sum to %.2f, total is %.2f (difference %.2f exceeds tolerance %.2f)",
				s.InsurerShare+s.PatientShare, s.Total, diff, ShareTolerance),
		}
	}
	return nil
}
