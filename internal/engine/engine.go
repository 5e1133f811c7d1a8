// Package engine orchestrates the five subsystems into a single
// Determine call: the pure, synchronous decision-engine entry point
// spec.md §2 and §5 describe. It owns no I/O and no shared state between
// calls; the caller (internal/server or cmd/orefctl) is responsible for
// serializing ticks.
package engine

import (
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orefng/orefng/internal/autosens"
	"github.com/orefng/orefng/internal/dosing"
	"github.com/orefng/orefng/internal/dynamicisf"
	"github.com/orefng/orefng/internal/engineerr"
	"github.com/orefng/orefng/internal/forecast"
	"github.com/orefng/orefng/internal/iob"
	"github.com/orefng/orefng/internal/meal"
	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profile"
	"github.com/orefng/orefng/internal/pumphistory"
)

// Inputs bundles everything Determine needs for one tick.
type Inputs struct {
	Glucose     []models.GlucoseEntry
	Treatments  []models.Treatment
	Profile     *profile.Profile
	Clock       time.Time
	CurrentTemp models.TempBasal
	CurrentTDD  float64
	AverageTDD  float64
}

func (in Inputs) validate() error {
	if in.Profile == nil {
		return engineerr.New(engineerr.KindInputMissing, "profile is required")
	}
	if len(in.Glucose) == 0 {
		return engineerr.New(engineerr.KindInputMissing, "at least one glucose reading is required")
	}
	latest := in.Glucose[len(in.Glucose)-1].Time()
	for _, g := range in.Glucose {
		if g.Time().After(latest) {
			latest = g.Time()
		}
	}
	if latest.After(in.Clock.Add(time.Minute)) {
		return engineerr.New(engineerr.KindCalendar, "a glucose reading is timestamped after the determination clock")
	}
	for _, g := range in.Glucose {
		if g.SGV <= 0 || g.SGV > 1000 {
			return engineerr.New(engineerr.KindInputOutOfRange, "glucose value out of physiological range")
		}
	}
	return nil
}

// Determine runs the full oref-ng decision pipeline for one tick and
// returns the dosing determination, or a typed *engineerr.Error describing
// why it could not.
func Determine(in Inputs) (models.Determination, error) {
	if err := in.validate(); err != nil {
		return models.Determination{}, err
	}

	p := in.Profile
	clock := in.Clock

	readings := models.ToGlucoseReadings(in.Glucose)
	sort.SliceStable(readings, func(i, j int) bool { return readings[i].Timestamp.Before(readings[j].Timestamp) })
	pumpEvents := models.ToPumpEvents(in.Treatments)
	carbs := models.ToCarbEntries(in.Treatments)

	if err := models.ValidatePairing(pumpEvents); err != nil {
		return models.Determination{}, engineerr.Wrap(engineerr.KindHistoryMalformed, "pump event history failed validation", err)
	}

	currentTarget := (p.MinBG + p.MaxBG) / 2

	autosensRatio := 1.0 // neutral ratio for normalization and meal detection; the autosens result below is not fed back into them
	events, err := pumphistory.Normalize(pumpEvents, carbTimestamps(carbs), p, autosensRatio, clock)
	if err != nil {
		return models.Determination{}, engineerr.Wrap(engineerr.KindHistoryMalformed, "pump history normalization failed", err)
	}

	// IOB and meal/COB are independent of each other and run concurrently
	// (spec.md §9's IOB+Meal parallelization note), joined with errgroup
	// before autosens (which depends on both).
	var iobPoint iob.Point
	var mealResult meal.Result
	var g errgroup.Group
	g.Go(func() error {
		iobPoint = iob.AtNow(events, p, clock)
		return nil
	})
	g.Go(func() error {
		mealResult = meal.Detect(readings, carbs, events, p, autosensRatio, clock)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Determination{}, engineerr.Wrap(engineerr.KindInternal, "iob/meal computation failed", err)
	}

	// Autosens -> Dynamic ISF -> Forecast -> Cascade proceed strictly in
	// order: each depends on the previous stage's output (spec.md §9).
	sensResult := autosens.Detect(readings, carbs, events, p, currentTarget, clock)

	bg := float64(readings[len(readings)-1].Value)
	baseISF := p.ISFAt(clock)
	carbRatio := p.CarbRatioAt(clock)

	isfResult := dynamicisf.Compute(baseISF, in.CurrentTDD, in.AverageTDD, bg, currentTarget, currentTarget, p)
	effectiveISF := baseISF / sensResult.Ratio
	if p.UseNewFormula {
		effectiveISF = isfResult.ISF
		sensResult.Ratio = isfResult.Ratio // Stage 2 (spec.md §4.9): dynamic ISF supersedes autosens's own ratio.
	}
	csf := effectiveISF / carbRatio

	fc := forecast.Run(bg, effectiveISF, csf, events, mealResult, p, clock, currentTarget)

	delta, shortAvgDelta, longAvgDelta := computeDeltas(readings)
	currentGI := -iobPoint.Activity * effectiveISF * 5

	lastBolusTime := lastBolusBefore(pumpEvents, clock)
	lastTempRate, lastTempAge, lastTempEndedAgo := lastRecordedTemp(pumpEvents, clock)

	decision := dosing.Determine(dosing.Inputs{
		BG:             bg,
		Noise:          readings[len(readings)-1].Noise,
		BGAgeMinutes:   clock.Sub(readings[len(readings)-1].Timestamp).Minutes(),
		FlatCGMMinutes: flatCGMMinutes(readings),

		MinPredBG:    fc.MinPredBG,
		MinGuardBG:   fc.MinGuardBG,
		MinIOBPredBG: fc.MinIOBPredBG,
		AvgPredBG:    fc.AvgPredBG,

		IOB: iobPoint.IOB,
		COB: mealResult.COB,

		CurrentBasal:            p.BasalAt(clock),
		CurrentTempRate:         in.CurrentTemp.Rate,
		CurrentTempDuration:     in.CurrentTemp.Duration,
		HasActiveTemp:           in.CurrentTemp.Duration > 0,
		LastTempRate:            lastTempRate,
		LastTempAgeMinutes:      lastTempAge,
		LastTempEndedAgoMinutes: lastTempEndedAgo,

		Delta:         delta,
		ShortAvgDelta: shortAvgDelta,
		LongAvgDelta:  longAvgDelta,
		CurrentGI:     currentGI,

		ISF:        effectiveISF,
		ProfileISF: baseISF,
		CarbRatio:  carbRatio,

		ProfileTarget: currentTarget,

		SensitivityRatio: sensResult.Ratio,

		LastBolusTime: lastBolusTime,
		Clock:         clock,
		Profile:       p,
	})

	return toDetermination(decision, iobPoint, mealResult, sensResult, fc, effectiveISF, carbRatio, bg, currentTarget, in.CurrentTDD, clock), nil
}

func carbTimestamps(carbs []models.CarbEntry) []time.Time {
	out := make([]time.Time, len(carbs))
	for i, c := range carbs {
		out[i] = c.Timestamp
	}
	return out
}

// computeDeltas derives the 5-min delta plus the 15-min and 45-min average
// deltas the dosing cascade's Stage 4 deviation retries need (spec.md §4.9).
// Averages are normalized to a per-5-min rate so they stay comparable to
// delta regardless of how densely the window's readings are sampled.
func computeDeltas(readings []models.GlucoseReading) (delta, shortAvg, longAvg float64) {
	n := len(readings)
	if n < 2 {
		return 0, 0, 0
	}
	delta = float64(readings[n-1].Value - readings[n-2].Value)
	shortAvg = windowAvgDelta(readings, 15)
	longAvg = windowAvgDelta(readings, 45)
	return delta, shortAvg, longAvg
}

func windowAvgDelta(readings []models.GlucoseReading, minutes float64) float64 {
	n := len(readings)
	latest := readings[n-1]
	cutoff := latest.Timestamp.Add(-time.Duration(minutes) * time.Minute)
	oldest := latest
	found := false
	for i := n - 1; i >= 0; i-- {
		if readings[i].Timestamp.Before(cutoff) {
			break
		}
		oldest = readings[i]
		found = true
	}
	if !found {
		return 0
	}
	span := latest.Timestamp.Sub(oldest.Timestamp).Minutes()
	if span <= 0 {
		return 0
	}
	return float64(latest.Value-oldest.Value) / span * 5
}

// flatCGMMinutes reports how long the trailing run of identical readings
// has held, the stuck-sensor signal Stage 0 cancels aggressive temps on
// (spec.md §4.9).
func flatCGMMinutes(readings []models.GlucoseReading) float64 {
	n := len(readings)
	if n < 2 {
		return 0
	}
	latestVal := readings[n-1].Value
	i := n - 1
	for i > 0 && readings[i-1].Value == latestVal {
		i--
	}
	if i == n-1 {
		return 0
	}
	return readings[n-1].Timestamp.Sub(readings[i].Timestamp).Minutes()
}

func lastBolusBefore(events []models.PumpEvent, clock time.Time) time.Time {
	var last time.Time
	for _, e := range events {
		if e.Kind != models.PumpEventBolus {
			continue
		}
		if e.Timestamp.After(clock) {
			continue
		}
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last
}

// lastRecordedTemp finds the most recent paired TempBasal/TempBasalDuration
// event at or before clock, the "lastTemp" Stage 1 compares the live temp
// against (spec.md §4.9). ageMinutes is the time since it started;
// endedAgoMinutes is negative while it is still running.
func lastRecordedTemp(events []models.PumpEvent, clock time.Time) (rate, ageMinutes, endedAgoMinutes float64) {
	durations := map[int64]float64{}
	for _, e := range events {
		if e.Kind == models.PumpEventTempBasalDuration {
			durations[e.Timestamp.UnixMilli()] = e.Minutes
		}
	}
	var latest models.PumpEvent
	found := false
	for _, e := range events {
		if e.Kind != models.PumpEventTempBasal || e.Timestamp.After(clock) {
			continue
		}
		if !found || e.Timestamp.After(latest.Timestamp) {
			latest = e
			found = true
		}
	}
	if !found {
		return 0, 0, 0
	}
	dur := durations[latest.Timestamp.UnixMilli()]
	ageMinutes = clock.Sub(latest.Timestamp).Minutes()
	endedAgoMinutes = ageMinutes - dur
	return latest.Rate, ageMinutes, endedAgoMinutes
}

func toDetermination(d dosing.Decision, pt iob.Point, m meal.Result, s autosens.Result, fc forecast.Result, isf, carbRatio, bg, currentTarget, tdd float64, clock time.Time) models.Determination {
	det := models.Determination{
		EventualBG:       d.EventualBG,
		MinPredBG:        fc.MinPredBG,
		MinGuardBG:       fc.MinGuardBG,
		IOB:              pt.IOB,
		COB:              m.COB,
		Reason:           d.Reason,
		DeliverAt:        clock,
		CarbRatio:        carbRatio,
		Threshold:        d.Threshold,
		SensitivityRatio: s.Ratio,
		CurrentTarget:    currentTarget,
		ExpectedDelta:    d.ExpectedDelta,
		MinDelta:         d.MinDelta,
		CarbsReq:         d.CarbsReq,
		BG:               bg,
		ISF:              isf,
		TDD:              tdd,
		Timestamp:        clock,
		Predictions: models.PredBGs{
			IOB: fc.Curves.IOB,
			ZT:  fc.Curves.ZT,
			COB: fc.Curves.COB,
			UAM: fc.Curves.UAM,
		},
	}
	if d.TempBasal != nil {
		rate := d.TempBasal.Rate
		dur := d.TempBasal.Duration
		det.Rate = &rate
		det.Duration = &dur
	}
	if d.SMBUnits > 0 {
		units := d.SMBUnits
		det.Units = &units
	}
	return det
}
