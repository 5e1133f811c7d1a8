// Package models contains the wire-compatible data structures collaborators
// exchange with the dosing engine (CGM readings, pump history, carb
// entries) plus the adapters that turn them into the engine's immutable
// core types.
package models

import "time"

// GlucoseEntry is the Nightscout-wire-compatible shape a CGM/transport
// collaborator emits. It is never mutated after decode.
type GlucoseEntry struct {
	ID        string `json:"_id"`
	SGV       int    `json:"sgv"`  // Sensor glucose value in mg/dL
	Date      int64  `json:"date"` // Unix timestamp in milliseconds
	DateStr   string `json:"dateString"`
	Trend     int    `json:"trend"`     // Trend direction (1-7)
	Direction string `json:"direction"` // Trend direction as string
	Noise     int    `json:"noise"`     // CGM noise level, 1 = clean, 3+ = high
	Device    string `json:"device"`
	Type      string `json:"type"`
}

// Time returns the time of the glucose entry.
func (g *GlucoseEntry) Time() time.Time {
	return time.UnixMilli(g.Date)
}

// ValueMgDL returns the glucose value in mg/dL.
func (g *GlucoseEntry) ValueMgDL() int {
	return g.SGV
}

// ValueMmolL returns the glucose value in mmol/L.
func (g *GlucoseEntry) ValueMmolL() float64 {
	return float64(g.SGV) / 18.0182
}

// TrendArrow returns the Unicode arrow character for the trend, or "-" when
// neither Direction nor Trend is recognized.
func (g *GlucoseEntry) TrendArrow() string {
	arrows := map[string]string{
		"DoubleUp":          "⇈",
		"SingleUp":          "↑",
		"FortyFiveUp":       "↗",
		"Flat":              "→",
		"FortyFiveDown":     "↘",
		"SingleDown":        "↓",
		"DoubleDown":        "⇊",
		"NOT COMPUTABLE":    "?",
		"RATE OUT OF RANGE": "⚠",
	}

	if g.Direction != "" {
		if arrow, ok := arrows[g.Direction]; ok {
			return arrow
		}
	}

	numericArrows := map[int]string{
		1: "⇈",
		2: "↑",
		3: "↗",
		4: "→",
		5: "↘",
		6: "↓",
		7: "⇊",
	}

	if arrow, ok := numericArrows[g.Trend]; ok {
		return arrow
	}

	return "-"
}

// GlucoseReading is the engine's immutable core representation of a single
// CGM sample (spec.md §3). Units are always mg/dL internally.
type GlucoseReading struct {
	Timestamp time.Time
	Value     int
	Noise     int    // 0/unset = unknown, 1 = clean ... 3+ = high
	Direction string // raw direction string, e.g. "Flat", "FortyFiveUp"
}

// ToMmol converts a mg/dL value to mmol/L.
func ToMmol(mgdl float64) float64 {
	return mgdl / 18.0182
}

// ToMgdl converts a mmol/L value to mg/dL.
func ToMgdl(mmol float64) float64 {
	return mmol * 18.0182
}

// ToGlucoseReading adapts a wire GlucoseEntry into the engine's core type.
func ToGlucoseReading(e GlucoseEntry) GlucoseReading {
	return GlucoseReading{
		Timestamp: e.Time(),
		Value:     e.SGV,
		Noise:     e.Noise,
		Direction: e.Direction,
	}
}

// ToGlucoseReadings adapts a slice of wire entries, preserving order.
func ToGlucoseReadings(entries []GlucoseEntry) []GlucoseReading {
	out := make([]GlucoseReading, len(entries))
	for i, e := range entries {
		out[i] = ToGlucoseReading(e)
	}
	return out
}
