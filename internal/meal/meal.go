// Package meal detects carbohydrate absorption and tracks carbs-on-board
// from blood-glucose deviations (spec.md §4.5).
package meal

import (
	"sort"
	"time"

	"github.com/orefng/orefng/internal/iob"
	"github.com/orefng/orefng/internal/jsdecimal"
	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profile"
	"github.com/orefng/orefng/internal/pumphistory"
)

// Bucket is one 5-minute glucose bucket used for deviation detection.
type Bucket struct {
	Timestamp time.Time
	Value     float64
}

// Result is the meal/COB engine's output (spec.md §4.5).
type Result struct {
	COB              float64
	CarbsAbsorbed    float64
	CurrentDeviation float64
	LastDeviation    float64
	MaxDeviation     float64
	MinDeviation     float64
	AllDeviations    []float64
}

// bucketize groups glucose readings into 5-minute buckets, per spec.md
// §4.5's gap-handling rules: gaps >8min are linearly interpolated, with
// at most 48 interpolated buckets (240 minutes) per gap, gaps in (2,8] minutes open a
// new bucket, gaps <=2 minutes are averaged into the current bucket.
func bucketize(readings []models.GlucoseReading) []Bucket {
	if len(readings) == 0 {
		return nil
	}
	sorted := make([]models.GlucoseReading, len(readings))
	copy(sorted, readings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var buckets []Bucket
	cur := Bucket{Timestamp: sorted[0].Timestamp, Value: float64(sorted[0].Value)}
	count := 1.0

	flush := func() {
		cur.Value /= count
		buckets = append(buckets, cur)
	}

	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Minutes()
		switch {
		case gap <= 2:
			cur.Value += float64(sorted[i].Value)
			count++
		case gap <= 8:
			flush()
			cur = Bucket{Timestamp: sorted[i].Timestamp, Value: float64(sorted[i].Value)}
			count = 1
		default:
			flush()
			steps := int(gap / 5)
			if steps > 48 { // cap interpolation at 240 minutes
				steps = 48
			}
			prevVal := sorted[i-1].Value
			for s := 1; s <= steps; s++ {
				frac := float64(s) / float64(steps+1)
				interp := float64(prevVal) + frac*(float64(sorted[i].Value)-float64(prevVal))
				buckets = append(buckets, Bucket{
					Timestamp: sorted[i-1].Timestamp.Add(time.Duration(frac*gap) * time.Minute),
					Value:     interp,
				})
			}
			cur = Bucket{Timestamp: sorted[i].Timestamp, Value: float64(sorted[i].Value)}
			count = 1
		}
	}
	flush()
	return buckets
}

// Detect runs the meal-detection/COB pipeline (spec.md §4.5). It mutates
// p.CurrentBasal as it steps through the bucket series, preserving the
// reference algorithm's observable clock/profile-state drift rather than
// isolating each step (spec.md §9 design note; DESIGN.md "Open Question (a)").
//
// For every bucket after the meal started, ci = max(deviation,
// currentDeviation/2, min5mCarbImpact) floors the 5-minute carb-impact
// estimate so a quiet deviation reading never stalls absorption below the
// profile's guaranteed minimum rate (spec.md §4.5).
func Detect(readings []models.GlucoseReading, carbs []models.CarbEntry, events []pumphistory.ComputedEvent, p *profile.Profile, autosensRatio float64, clock time.Time) Result {
	buckets := bucketize(readings)
	if len(buckets) < 2 {
		return Result{}
	}

	var totalCarbs float64
	var mealDate time.Time
	for _, c := range carbs {
		if c.Timestamp.After(clock) {
			continue
		}
		totalCarbs += c.Carbs
		if mealDate.IsZero() || c.Timestamp.Before(mealDate) {
			mealDate = c.Timestamp
		}
	}

	var deviations []float64
	carbsAbsorbed := 0.0
	currentDeviation := 0.0
	cob := totalCarbs

	for i := 1; i < len(buckets); i++ {
		cur := buckets[i]

		// Mirrors the reference implementation's running mutation of the
		// profile's basal rate and the effective clock as it walks the
		// bucket series, rather than recomputing both fresh each step.
		p.CurrentBasal = p.BasalAt(cur.Timestamp)
		clock = cur.Timestamp

		isf := p.ISFAt(cur.Timestamp)
		carbRatio := p.CarbRatioAt(cur.Timestamp)
		pt := iob.AtNow(events, p, cur.Timestamp)
		bgi := jsdecimal.Round(-pt.Activity*isf*5, 2)

		delta := cur.Value - buckets[i-1].Value
		// avgDelta averages over up to the last 3 buckets (15 minutes);
		// near the start of the series there aren't 3 yet, so the lookback
		// shrinks rather than indexing before the slice.
		j := i - 3
		if j < 0 {
			j = 0
		}
		avgDelta := (cur.Value - buckets[j].Value) / float64(i-j)
		deviation := delta - bgi
		deviations = append(deviations, deviation)
		currentDeviation = jsdecimal.Round(avgDelta-bgi, 3)

		if !mealDate.IsZero() && cur.Timestamp.After(mealDate) && cob > 0 {
			ci := deviation
			if currentDeviation/2 > ci {
				ci = currentDeviation / 2
			}
			if p.Min5mCarbImpact > ci {
				ci = p.Min5mCarbImpact
			}

			absorbed := ci * carbRatio / isf
			if absorbed < 0 {
				absorbed = 0
			}
			carbsAbsorbed += absorbed
			cob -= absorbed
			if cob < 0 {
				cob = 0
			}
		}
	}

	if cob > p.MaxCOB {
		cob = p.MaxCOB
	}

	// Zombie-carb safety: force COB to zero when no deviation history
	// exists to support it, regardless of a nonzero carb entry.
	if len(deviations) == 0 {
		cob = 0
	}

	res := Result{
		COB:              jsdecimal.Round(cob, 2),
		CarbsAbsorbed:    jsdecimal.Round(carbsAbsorbed, 2),
		AllDeviations:    deviations,
		CurrentDeviation: currentDeviation,
	}
	if len(deviations) > 0 {
		res.LastDeviation = deviations[len(deviations)-1]
		maxD, minD := deviations[0], deviations[0]
		for _, d := range deviations {
			if d > maxD {
				maxD = d
			}
			if d < minD {
				minD = d
			}
		}
		res.MaxDeviation = maxD
		res.MinDeviation = minD
	}
	return res
}
