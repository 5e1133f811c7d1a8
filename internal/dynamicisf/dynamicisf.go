// Package dynamicisf derives a sensitivity ratio (and the ISF it implies)
// from total daily dose using a logarithmic or sigmoid curve (spec.md §4.7).
package dynamicisf

import (
	"math"

	"github.com/orefng/orefng/internal/jsdecimal"
	"github.com/orefng/orefng/internal/profile"
)

// Result is the dynamic-ISF engine's output.
type Result struct {
	ISF           float64
	Ratio         float64
	TDDRatio      float64
	InsulinFactor float64
	UncappedRatio float64
	LimitValue    float64
	Disabled      bool
}

// rapidPeakTime/ultraPeakTime are the insulinFactor peak-time defaults
// spec.md §4.7 names for dynamic ISF specifically — 65/50 minutes, not the
// IOB curve's own 75/55 defaults (profile.PeakMinutes), since the two
// formulas were calibrated independently in the reference algorithm.
const (
	rapidPeakTime = 65.0
	ultraPeakTime = 50.0
)

// Compute derives the dynamic-ISF sensitivity ratio from the current/
// average TDD ratio and the current glucose, per spec.md §4.7's named
// log/sigmoid formulas. sens is the profile ISF before any adjustment;
// profileTarget/currentTarget are the profile's baseline target and the
// (possibly temp-target-adjusted) active target. Disabled when the
// profile's target is already raised at or above 118 by an active high
// temp-target and highTemptargetRaisesSensitivity is honored — in that
// case the temp-target's own sensitivity adjustment applies instead, so
// dynamic ISF steps aside rather than compounding it.
func Compute(sens, currentTDD, averageTDD, bg, profileTarget, currentTarget float64, p *profile.Profile) Result {
	min, max := p.AutosensMin, p.AutosensMax

	peakTime := rapidPeakTime
	if p.Curve == profile.CurveUltraRapid {
		peakTime = ultraPeakTime
	}
	if p.UseCustomPeakTime && p.InsulinPeakTime > 0 {
		peakTime = p.InsulinPeakTime
	}
	insulinFactor := 120 - peakTime

	if profileTarget >= 118 && currentTarget > profileTarget && p.HighTemptargetRaisesSensitivity {
		return Result{
			ISF: sens, Ratio: 1, Disabled: true,
			TDDRatio: 1, InsulinFactor: insulinFactor, UncappedRatio: 1, LimitValue: 1,
		}
	}

	tddRatio := 1.0
	if averageTDD > 0 {
		tddRatio = jsdecimal.Clamp(currentTDD/averageTDD, min, max)
	}

	var ratio float64
	if p.Sigmoid {
		bgDev := (bg - currentTarget) * 0.0555
		exponent := bgDev*p.AdjustmentFactorSigmoid*tddRatio +
			jsdecimal.Log10(1/(max-1)-min/(max-1))/jsdecimal.Log10(math.E)
		ratio = (max-min)/(1+jsdecimal.Exp(-exponent)) + min
	} else {
		ratio = sens * p.AdjustmentFactor * currentTDD * jsdecimal.Log(bg/insulinFactor+1) / 1800
	}

	uncappedRatio := ratio
	limitValue := jsdecimal.Clamp(ratio, min, max)
	isf := jsdecimal.Round(sens/limitValue, 1)

	return Result{
		ISF:           isf,
		Ratio:         jsdecimal.Round(limitValue, 2),
		TDDRatio:      jsdecimal.Round(tddRatio, 3),
		InsulinFactor: jsdecimal.Round(insulinFactor, 3),
		UncappedRatio: jsdecimal.Round(uncappedRatio, 3),
		LimitValue:    jsdecimal.Round(limitValue, 3),
	}
}
