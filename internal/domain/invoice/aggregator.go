package invoice

import (
	"github.com/manataote/cabinet-medical-sub001/internal/domain/tariff"
)

// Recompute replaces the invoice's TotalAmount with the sum of its act
// totals. Acts with invalid shares still contribute; the total stays a
// best-effort figure while validation reports the offenders separately.
// Pure and idempotent; empty act collection yields zero.
func Recompute(inv *Invoice) {
	var total float64
	for _, act := range inv.Acts {
		total += act.Total
	}
	inv.TotalAmount = total
}

// ValidateActs checks every act's share sum against its total and collects
// all violations. The caller blocks the save on the first violation but can
// surface the full list to the operator.
func ValidateActs(acts []*OrthopedicAct) []*tariff.ValidationError {
	var violations []*tariff.ValidationError
	for _, act := range acts {
		s := tariff.OrthopedicShares{
			ActID:        act.ID,
			Total:        act.Total,
			InsurerShare: act.InsurerShare,
			PatientShare: act.PatientShare,
		}
		if err := tariff.ValidateOrthopedicShares(s); err != nil {
			violations = append(violations, err)
		}
	}
	return violations
}
