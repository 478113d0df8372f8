package claim

import (
	"github.com/manataote/cabinet-medical-sub001/internal/domain/tariff"
)

// Recompute replaces every act's Amount and the claim's TotalAmount from the
// current act collection. It is pure and idempotent; it must run after every
// act mutation and after every load, because acts are fetched separately
// from the claim header. An empty act collection yields a total of zero.
func Recompute(c *Claim, cfg tariff.Config) []tariff.Warning {
	var warnings []tariff.Warning
	var total float64

	for _, act := range c.Acts {
		in := tariff.CareActInput{
			BaseTariff:       act.BaseTariff,
			Coefficient:      act.Coefficient,
			IFD:              act.IFD,
			NightSurcharge:   act.NightSurcharge,
			HolidaySurcharge: act.HolidaySurcharge,
		}
		if act.TravelDistanceKm != nil {
			in.TravelDistanceKm = *act.TravelDistanceKm
		}
		amount, w := tariff.ComputeCareActAmount(in, cfg)
		act.Amount = amount
		total += amount
		warnings = append(warnings, w...)
	}

	c.TotalAmount = total
	return warnings
}
