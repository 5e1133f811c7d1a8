// Package autosens derives a sensitivity ratio from recent glucose
// deviations via windowed replay (spec.md §4.6).
package autosens

import (
	"sort"
	"time"

	"github.com/orefng/orefng/internal/iob"
	"github.com/orefng/orefng/internal/jsdecimal"
	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profile"
	"github.com/orefng/orefng/internal/pumphistory"
)

type state int

const (
	stateInitial state = iota
	stateCSF
	stateUAM
	stateNonMeal
)

// samplesPer8h/24h are the 5-minute-cadence sample counts the replay window
// is zero-padded to when fewer readings are available (spec.md §4.6).
const (
	samplesPer8h  = 96
	samplesPer24h = 288
)

// Result is the autosens engine's output, including the SPEC_FULL.md
// §4.6a diagnostic fields that expose which of the two replay windows was
// selected.
type Result struct {
	Ratio      float64
	Ratio8h    float64
	Ratio24h   float64
	UsedWindow string // "8h" or "24h"
}

// windowDeviations replays readings within the window ending at clock and
// returns non-meal, non-UAM deviations via the 4-state machine described
// in spec.md §4.6: state transitions track whether a bucket looks like an
// ongoing meal (csf), an unannounced-meal rise (uam), or neither, and a
// high temp-target in effect injects an extra expected-sensitivity-gain
// deviation into the window.
func windowDeviations(readings []models.GlucoseReading, carbs []models.CarbEntry, events []pumphistory.ComputedEvent, p *profile.Profile, clock time.Time, window time.Duration, currentTarget float64) []float64 {
	cutoff := clock.Add(-window)
	sorted := make([]models.GlucoseReading, 0, len(readings))
	for _, r := range readings {
		if !r.Timestamp.Before(cutoff) && !r.Timestamp.After(clock) {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	if len(sorted) < 2 {
		return nil
	}

	var deviations []float64
	st := stateInitial
	uamMinutesLeft := 0.0

	for i := 1; i < len(sorted); i++ {
		cur := sorted[i]
		prev := sorted[i-1]

		isf := p.ISFAt(cur.Timestamp)
		pt := iob.AtNow(events, p, cur.Timestamp)
		bgi := -pt.Activity * isf * 5
		observed := float64(cur.Value - prev.Value)
		deviation := observed - bgi

		currentBasal := p.BasalAt(cur.Timestamp)
		minutesSinceMeal := minutesSinceLastCarb(carbs, cur.Timestamp)

		// State transitions (spec.md §4.6): a carb entry within the last 45
		// minutes puts the bucket in "csf" (carb sensitivity factor);
		// carbs-on-board itself is not consulted here. Otherwise IOB above
		// twice current basal, a prior uam bucket, or a bucket that follows
		// a csf one makes it uam, and uam then persists until the next carb
		// entry. Everything else is nonMeal, the only state whose
		// deviations enter the window.
		switch {
		case minutesSinceMeal >= 0 && minutesSinceMeal < 45:
			st = stateCSF
			uamMinutesLeft = 45
		case pt.IOB > 2*currentBasal || st == stateUAM:
			st = stateUAM
			if uamMinutesLeft > 0 {
				uamMinutesLeft -= 5
			}
		default:
			if uamMinutesLeft > 0 {
				st = stateUAM
				uamMinutesLeft -= 5
			} else {
				st = stateNonMeal
			}
		}

		if isZeroedHour(cur.Timestamp) && cur.Timestamp.Minute() < 5 {
			deviation = 0
		}

		if st == stateNonMeal {
			deviations = append(deviations, deviation)
		}

		if currentTarget > 100 && p.HighTemptargetRaisesSensitivity {
			deviations = append(deviations, -(currentTarget-100)/20)
		}
	}
	return deviations
}

// isZeroedHour reports whether t falls in one of the every-other-even-hour
// blocks (0, 4, 8, ...) the reference replay zeroes out, keeping the window
// from being dominated by a recurring time-of-day deviation.
func isZeroedHour(t time.Time) bool {
	return t.Hour()%4 == 0
}

func minutesSinceLastCarb(carbs []models.CarbEntry, t time.Time) float64 {
	best := -1.0
	for _, c := range carbs {
		if c.Timestamp.After(t) {
			continue
		}
		mins := t.Sub(c.Timestamp).Minutes()
		if best < 0 || mins < best {
			best = mins
		}
	}
	return best
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// padToSamples zero-pads deviations (oldest-first) to exactly n samples
// when fewer are available, per spec.md §4.6, so a short history doesn't
// bias the median toward whatever few deviations happened to be observed.
func padToSamples(deviations []float64, n int) []float64 {
	if len(deviations) >= n {
		return deviations
	}
	out := make([]float64, n)
	copy(out[n-len(deviations):], deviations)
	return out
}

// ratioFromDeviations implements spec.md §4.6's exact formula:
// basalOff = median * 12 / sens; ratio = clamp(1 + basalOff/maxDailyBasal,
// autosensMin, autosensMax).
func ratioFromDeviations(deviations []float64, samples int, sens, maxDailyBasal float64, p *profile.Profile) float64 {
	padded := padToSamples(deviations, samples)
	m := median(padded)
	if sens <= 0 || maxDailyBasal <= 0 {
		return 1.0
	}
	basalOff := m * 12 / sens
	ratio := 1 + basalOff/maxDailyBasal
	return jsdecimal.Round(jsdecimal.Clamp(ratio, p.AutosensMin, p.AutosensMax), 2)
}

// Detect runs the 8h and 24h windowed replays and returns the lower of
// the two resulting ratios (spec.md §4.6). currentTarget is the profile's
// baseline glucose target, used only to decide whether a high
// temp-target's sensitivity-raising deviation should be injected into the
// replay window.
func Detect(readings []models.GlucoseReading, carbs []models.CarbEntry, events []pumphistory.ComputedEvent, p *profile.Profile, currentTarget float64, clock time.Time) Result {
	sens := p.ISFAt(clock)

	dev8 := windowDeviations(readings, carbs, events, p, clock, 8*time.Hour, currentTarget)
	dev24 := windowDeviations(readings, carbs, events, p, clock, 24*time.Hour, currentTarget)

	ratio8 := ratioFromDeviations(dev8, samplesPer8h, sens, p.MaxDailyBasal, p)
	ratio24 := ratioFromDeviations(dev24, samplesPer24h, sens, p.MaxDailyBasal, p)

	res := Result{Ratio8h: ratio8, Ratio24h: ratio24}
	if ratio8 <= ratio24 {
		res.Ratio = res.Ratio8h
		res.UsedWindow = "8h"
	} else {
		res.Ratio = res.Ratio24h
		res.UsedWindow = "24h"
	}
	return res
}
