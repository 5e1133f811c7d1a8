package profile

import (
	"sort"
	"time"
)

// minutesSinceMidnight returns minutes since local midnight for t, in
// [0, 1440).
func minutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// lookup returns the value of the schedule segment active at minute-of-day
// m: the last entry whose offset is <= m, wrapping so the final entry of
// the previous day extends until the first entry of the next (spec.md
// §4.2). fallback is returned when schedule is empty.
func lookup(schedule []ScheduleEntry, m int, fallback float64) float64 {
	if len(schedule) == 0 {
		return fallback
	}
	sorted := make([]ScheduleEntry, len(schedule))
	copy(sorted, schedule)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OffsetMinutes < sorted[j].OffsetMinutes })

	value := sorted[len(sorted)-1].Value
	for _, e := range sorted {
		if e.OffsetMinutes > m {
			break
		}
		value = e.Value
	}
	return value
}

// BasalAt returns the scheduled basal rate (U/hr) active at time t.
// Falls back to 0.1 U/hr when the schedule is empty (spec.md §4.2).
func (p *Profile) BasalAt(t time.Time) float64 {
	return lookup(p.BasalSchedule, minutesSinceMidnight(t), 0.1)
}

// ISFAt returns the scheduled insulin sensitivity factor (mg/dL per unit)
// active at time t. Falls back to 200 when the schedule is empty.
func (p *Profile) ISFAt(t time.Time) float64 {
	return lookup(p.ISFSchedule, minutesSinceMidnight(t), 200)
}

// CarbRatioAt returns the scheduled carb ratio (g per unit) active at
// time t. Falls back to 30 when the schedule is empty.
func (p *Profile) CarbRatioAt(t time.Time) float64 {
	return lookup(p.CarbRatioSchedule, minutesSinceMidnight(t), 30)
}

// EffectiveDIA returns DIA clamped to the 5-hour minimum (spec.md §4.4,
// "DIA <5h is raised to 5").
func (p *Profile) EffectiveDIA() float64 {
	if p.DIA < 5 {
		return 5
	}
	return p.DIA
}

// PeakMinutes returns the insulin-activity-curve peak time in minutes,
// honoring UseCustomPeakTime (spec.md §4.4): rapidActing defaults to 75,
// ultraRapid to 55.
func (p *Profile) PeakMinutes() float64 {
	if p.UseCustomPeakTime && p.InsulinPeakTime > 0 {
		return p.InsulinPeakTime
	}
	if p.Curve == CurveUltraRapid {
		return 55
	}
	return 75
}

// BasalIncrement returns the pump's basal quantization step (U/hr),
// per spec.md §4.11: models whose name ends "54" or "23" quantize to
// 1/40 U/hr below 1 U/hr; all others use 1/20 below 1 U/hr, 1/20 in
// [1,10), 1/10 at/above 10.
func (p *Profile) BasalIncrement(rate float64) float64 {
	fortiethModel := len(p.Model) >= 2 && (p.Model[len(p.Model)-2:] == "54" || p.Model[len(p.Model)-2:] == "23")
	switch {
	case rate >= 10:
		return 0.1
	case rate >= 1:
		return 0.05
	case fortiethModel:
		return 0.025
	default:
		return 0.05
	}
}
