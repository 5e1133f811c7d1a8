package dosing

import (
	"github.com/orefng/orefng/internal/jsdecimal"
	"github.com/orefng/orefng/internal/profile"
)

// TempBasalRecommendation is the chosen basal-rate/duration pair before
// it's folded into a models.Determination.
type TempBasalRecommendation struct {
	Rate     float64
	Duration float64
}

// roundBasal quantizes rate to the pump's basal granularity (spec.md
// §4.11).
func roundBasal(rate float64, p *profile.Profile) float64 {
	step := p.BasalIncrement(rate)
	return jsdecimal.Round(jsdecimal.JSRound(rate/step)*step, 3)
}

// maxSafeBasal is the ceiling a temp basal may never exceed: the lowest
// of the profile's configured max, the current-basal safety multiplier,
// and the daily-basal safety multiplier (spec.md §4.11).
func maxSafeBasal(currentBasal float64, p *profile.Profile) float64 {
	candidates := []float64{p.MaxBasal}
	if p.CurrentBasalSafetyMultiplier > 0 {
		candidates = append(candidates, currentBasal*p.CurrentBasalSafetyMultiplier)
	}
	if p.MaxDailySafetyMultiplier > 0 && p.MaxDailyBasal > 0 {
		candidates = append(candidates, p.MaxDailyBasal*p.MaxDailySafetyMultiplier)
	}
	min := candidates[0]
	for _, c := range candidates[1:] {
		if c < min {
			min = c
		}
	}
	return min
}

// setTempBasal clamps a desired rate into [0, maxSafeBasal] and rounds it
// to pump granularity, returning the recommendation to issue.
func setTempBasal(desiredRate, durationMinutes, currentBasal float64, p *profile.Profile) TempBasalRecommendation {
	safe := maxSafeBasal(currentBasal, p)
	clamped := jsdecimal.Clamp(desiredRate, 0, safe)
	return TempBasalRecommendation{Rate: roundBasal(clamped, p), Duration: durationMinutes}
}
