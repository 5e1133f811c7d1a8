// Package forecast projects future glucose from the IOB, COB, UAM and
// zero-temp curves and blends them into the dosing engine's summary
// statistics (spec.md §4.8).
package forecast

import (
	"time"

	"github.com/orefng/orefng/internal/iob"
	"github.com/orefng/orefng/internal/jsdecimal"
	"github.com/orefng/orefng/internal/meal"
	"github.com/orefng/orefng/internal/profile"
	"github.com/orefng/orefng/internal/pumphistory"
)

// Curves holds the four 48-step (4h @ 5min) prediction curves.
type Curves struct {
	IOB []float64
	COB []float64
	UAM []float64
	ZT  []float64
}

// Result is the forecast engine's output (spec.md §4.8).
type Result struct {
	Curves       Curves
	EventualBG   float64
	MinPredBG    float64
	MinGuardBG   float64
	MinIOBPredBG float64
	AvgPredBG    float64
}

const steps = 48

// iobCurve projects BG forward using only current IOB decay.
func iobCurve(bg float64, pts []iob.Point, isf float64) []float64 {
	out := make([]float64, 0, steps)
	for _, pt := range pts {
		out = append(out, bg-pt.IOB*isf)
	}
	return out
}

// cobCurve adds carb-impact decay on top of the IOB curve, using a simple
// linear absorption model over maxMealAbsorptionTime.
func cobCurve(bg float64, pts []iob.Point, isf, csf float64, cob float64, p *profile.Profile) []float64 {
	out := make([]float64, 0, steps)
	absorptionSteps := p.MaxMealAbsorptionTime * 12 // 5-min steps per hour = 12
	if absorptionSteps <= 0 {
		absorptionSteps = 1
	}
	remainingCOB := cob
	carbImpactPerStep := 0.0
	if absorptionSteps > 0 {
		carbImpactPerStep = cob / absorptionSteps
	}
	for _, pt := range pts {
		if remainingCOB > 0 {
			impact := carbImpactPerStep
			if impact > remainingCOB {
				impact = remainingCOB
			}
			remainingCOB -= impact
			bg += impact * csf
		}
		out = append(out, bg-pt.IOB*isf)
	}
	return out
}

// uamCurve models an unannounced-meal rise using the observed deviation
// trend, decaying the current deviation across the prediction window.
func uamCurve(bg float64, pts []iob.Point, isf, lastDeviation float64) []float64 {
	out := make([]float64, 0, steps)
	dev := lastDeviation
	for _, pt := range pts {
		bg += dev
		dev *= 0.9
		out = append(out, bg-pt.IOB*isf)
	}
	return out
}

// ztCurve projects BG assuming the pump stops delivering basal entirely for
// the whole forecast horizon (spec.md §4.4's withZeroTemp, §4.8's ZT curve):
// iob.Series overlays a real zero-rate temp spanning the full window, which
// cancels the profile's ongoing basal rather than contributing nothing.
func ztCurve(bg float64, events []pumphistory.ComputedEvent, p *profile.Profile, clock time.Time, isf float64) []float64 {
	pts := iob.Series(events, p, clock, steps*5)
	out := make([]float64, 0, steps)
	for _, pt := range pts {
		out = append(out, bg-pt.IOB*isf)
	}
	return out
}

// trimFlatTail keeps every sample through lookback, then drops the trailing
// run of samples beyond it that tie the previous one exactly: once a curve
// has fully decayed it flat-lines, and that flat tail shouldn't pad the
// window a minimum/average is taken over (spec.md §4.8: "trim trailing
// flat-line ties beyond a 13-sample lookback").
func trimFlatTail(curve []float64, lookback int) []float64 {
	if len(curve) <= lookback {
		return curve
	}
	out := append([]float64{}, curve[:lookback]...)
	for i := lookback; i < len(curve); i++ {
		if curve[i] == curve[i-1] {
			break
		}
		out = append(out, curve[i])
	}
	return out
}

// trimRisingTail keeps every sample through lookback, then drops the
// trailing run of samples beyond it that climbed back above target: a ZT
// curve that has turned around and is rising past target reflects basal
// having resumed, not the worst case the ZT guard exists to report
// (spec.md §4.8: "trim trailing rising tails above target beyond a
// 7-sample lookback").
func trimRisingTail(curve []float64, lookback int, target float64) []float64 {
	if len(curve) <= lookback {
		return curve
	}
	out := append([]float64{}, curve[:lookback]...)
	for i := lookback; i < len(curve); i++ {
		if curve[i] > target {
			break
		}
		out = append(out, curve[i])
	}
	return out
}

func minOf(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	m := curve[0]
	for _, v := range curve {
		if v < m {
			m = v
		}
	}
	return m
}

func avgOf(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	var sum float64
	for _, v := range curve {
		sum += v
	}
	return sum / float64(len(curve))
}

// Run computes the four prediction curves and blends them into the
// headline summary statistics consumed by the dosing cascade. target is
// the currently-active glucose target, used to trim the ZT curve's rising
// tail.
func Run(bg, isf, csf float64, events []pumphistory.ComputedEvent, mealResult meal.Result, p *profile.Profile, clock time.Time, target float64) Result {
	pts := iob.Series(events, p, clock, 0)

	iobC := iobCurve(bg, pts, isf)
	cobC := cobCurve(bg, pts, isf, csf, mealResult.COB, p)
	uamC := uamCurve(bg, pts, isf, mealResult.LastDeviation)
	ztC := ztCurve(bg, events, p, clock, isf)

	minIOB := minOf(trimFlatTail(iobC, 13))
	minCOB := minOf(trimFlatTail(cobC, 13))
	minUAM := minOf(trimFlatTail(uamC, 13))
	minZT := minOf(trimRisingTail(ztC, 7, target))

	minPredBG := minIOB
	if mealResult.COB > 0 && minCOB < minPredBG {
		minPredBG = minCOB
	}
	if p.EnableUAM && minUAM < minPredBG {
		minPredBG = minUAM
	}

	minGuardBG := minZT
	if minIOB < minGuardBG {
		minGuardBG = minIOB
	}

	eventualBG := iobC[len(iobC)-1]
	avgPredBG := avgOf(iobC)

	return Result{
		Curves:       Curves{IOB: iobC, COB: cobC, UAM: uamC, ZT: ztC},
		EventualBG:   jsdecimal.Round(eventualBG, 0),
		MinPredBG:    jsdecimal.Round(minPredBG, 0),
		MinGuardBG:   jsdecimal.Round(minGuardBG, 0),
		MinIOBPredBG: jsdecimal.Round(minIOB, 0),
		AvgPredBG:    jsdecimal.Round(avgPredBG, 0),
	}
}
