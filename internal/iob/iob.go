// Package iob computes insulin-on-board and insulin-activity series from
// the normalized event stream produced by internal/pumphistory, using the
// bilinear exponential activity-curve model of spec.md §4.4.
package iob

import (
	"math"
	"time"

	"github.com/orefng/orefng/internal/jsdecimal"
	"github.com/orefng/orefng/internal/profile"
	"github.com/orefng/orefng/internal/pumphistory"
)

// Point is one 5-minute sample of the IOB/activity curve.
type Point struct {
	Timestamp     time.Time
	IOB           float64
	Activity      float64
	BasalIOB      float64
	BolusIOB      float64
	NetBasalInsulin float64
	BolusInsulin    float64
}

// curveParams holds the derived tau/a/S constants of the bilinear
// exponential model for a given DIA and peak time (spec.md §4.4).
type curveParams struct {
	tau float64
	a   float64
	s   float64
	dia float64
}

func newCurveParams(diaHours, peakMinutes float64) curveParams {
	end := diaHours * 60
	tau := peakMinutes * (1 - peakMinutes/end) / (1 - 2*peakMinutes/end)
	a := 2 * tau / end
	s := 1 / (1 - a + (1+a)*math.Exp(-end/tau))
	return curveParams{tau: tau, a: a, s: s, dia: diaHours}
}

// activityAt returns the fraction of a single unit's activity remaining
// at minutesAgo (the curve's value, not IOB fraction).
func (c curveParams) activityAt(minutesAgo float64) float64 {
	if minutesAgo < 0 || minutesAgo >= c.dia*60 {
		return 0
	}
	return (c.s / math.Pow(c.tau, 2)) * minutesAgo * (1 - minutesAgo/c.end()) * math.Exp(-minutesAgo/c.tau)
}

func (c curveParams) end() float64 { return c.dia * 60 }

// iobAt returns the fraction of a single unit still on board at
// minutesAgo.
func (c curveParams) iobAt(minutesAgo float64) float64 {
	end := c.end()
	if minutesAgo < 0 {
		return 1
	}
	if minutesAgo >= end {
		return 0
	}
	return 1 - c.s*(1-c.a)*((math.Pow(minutesAgo, 2)/(c.tau*end*(1-c.a))-minutesAgo/c.tau-1)*math.Exp(-minutesAgo/c.tau)+1)
}

// Series computes a 4-hour, 5-minute-cadence IOB/activity curve from
// clock. zeroTempMinutes, when > 0, overlays a synthetic zero-rate temp
// basal starting at clock and running for that many minutes: each 5-minute
// step contributes netRate = 0 - profileBasal(t) (the same net-basal
// convention pumphistory.toMicroBoluses uses for a real temp), so the
// overlay actually cancels the profile's ongoing basal delivery rather
// than contributing nothing. This is the forecast engine's ZT curve
// (spec.md §4.4, §4.8): "the pump stops delivering basal" for the
// requested horizon.
func Series(events []pumphistory.ComputedEvent, p *profile.Profile, clock time.Time, zeroTempMinutes float64) []Point {
	curve := newCurveParams(p.EffectiveDIA(), p.PeakMinutes())

	all := events
	if zeroTempMinutes > 0 {
		overlay := make([]pumphistory.ComputedEvent, 0, int(zeroTempMinutes/5)+1)
		for m := 0.0; m < zeroTempMinutes; m += 5 {
			ts := clock.Add(time.Duration(m) * time.Minute)
			netRate := -p.BasalAt(ts)
			overlay = append(overlay, pumphistory.ComputedEvent{
				Timestamp:   ts,
				Insulin:     netRate * 5 / 60,
				IsTempBolus: true,
			})
		}
		all = append(append([]pumphistory.ComputedEvent{}, events...), overlay...)
	}

	const steps = 48 // 4 hours at 5-minute cadence
	points := make([]Point, 0, steps)
	for i := 0; i < steps; i++ {
		t := clock.Add(time.Duration(i*5) * time.Minute)
		var iobTotal, activityTotal, basalIOB, bolusIOB, netBasal, bolusInsulin float64
		for _, e := range all {
			minutesAgo := t.Sub(e.Timestamp).Minutes()
			if minutesAgo < 0 {
				continue
			}
			frac := curve.iobAt(minutesAgo)
			act := curve.activityAt(minutesAgo)
			contribution := e.Insulin * frac
			iobTotal += contribution
			activityTotal += e.Insulin * act
			if math.Abs(e.Insulin) < 0.1 || e.IsTempBolus {
				basalIOB += contribution
				netBasal += e.Insulin
			} else {
				bolusIOB += contribution
				bolusInsulin += e.Insulin
			}
		}
		points = append(points, Point{
			Timestamp:       t,
			IOB:             jsdecimal.Round(iobTotal, 3),
			Activity:        jsdecimal.Round(activityTotal, 4),
			BasalIOB:        jsdecimal.Round(basalIOB, 3),
			BolusIOB:        jsdecimal.Round(bolusIOB, 3),
			NetBasalInsulin: jsdecimal.Round(netBasal, 3),
			BolusInsulin:    jsdecimal.Round(bolusInsulin, 3),
		})
	}
	return points
}

// AtNow returns the curve's first sample (minutesAgo = 0 for new events),
// the current IOB/activity/classified-insulin snapshot used throughout the
// rest of the engine.
func AtNow(events []pumphistory.ComputedEvent, p *profile.Profile, clock time.Time) Point {
	series := Series(events, p, clock, 0)
	return series[0]
}
