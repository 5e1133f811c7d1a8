package models

import (
	"fmt"
	"sort"
	"time"
)

// Treatment represents a treatment entry from Nightscout (insulin, carbs,
// temp basals, suspends, etc). This is the wire format a pump/transport
// collaborator supplies; ToPumpEvents/ToCarbEntries turn it into the
// engine's tagged-union PumpEvent/CarbEntry core types.
type Treatment struct {
	ID        string  `json:"_id"`
	EventType string  `json:"eventType"`
	Date      int64   `json:"date"` // Unix timestamp in milliseconds
	DateStr   string  `json:"dateString"`
	CreatedAt string  `json:"created_at"`
	Insulin   float64 `json:"insulin"` // Units of insulin
	Carbs     float64 `json:"carbs"`   // Grams of carbohydrates
	Protein   float64 `json:"protein"` // Grams of protein
	Fat       float64 `json:"fat"`     // Grams of fat
	Duration  float64 `json:"duration"`
	Rate      float64 `json:"rate"` // U/hr, for Temp Basal events
	EnteredBy string  `json:"enteredBy"`
	Device    string  `json:"device"`
}

// Time returns the time of the treatment.
func (t *Treatment) Time() time.Time {
	if t.Date > 0 {
		return time.UnixMilli(t.Date)
	}
	// Fallback to created_at
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasInsulin returns true if this treatment includes insulin.
func (t *Treatment) HasInsulin() bool {
	return t.Insulin > 0
}

// HasCarbs returns true if this treatment includes carbohydrates.
func (t *Treatment) HasCarbs() bool {
	return t.Carbs > 0
}

// TreatmentEventTypes contains the Nightscout event-type strings this
// engine recognizes when classifying raw treatments into PumpEvent kinds.
var TreatmentEventTypes = struct {
	Bolus             string
	TempBasal         string
	TempBasalDuration string
	PumpSuspend       string
	PumpResume        string
	Rewind            string
}{
	Bolus:             "Bolus",
	TempBasal:         "Temp Basal",
	TempBasalDuration: "Temp Basal Duration",
	PumpSuspend:       "Pump Suspend",
	PumpResume:        "Pump Resume",
	Rewind:            "Rewind",
}

// PumpEventKind tags the variant held by a PumpEvent.
type PumpEventKind int

const (
	PumpEventBolus PumpEventKind = iota
	PumpEventTempBasal
	PumpEventTempBasalDuration
	PumpEventPumpSuspend
	PumpEventPumpResume
	PumpEventRewind
)

func (k PumpEventKind) String() string {
	switch k {
	case PumpEventBolus:
		return "Bolus"
	case PumpEventTempBasal:
		return "TempBasal"
	case PumpEventTempBasalDuration:
		return "TempBasalDuration"
	case PumpEventPumpSuspend:
		return "PumpSuspend"
	case PumpEventPumpResume:
		return "PumpResume"
	case PumpEventRewind:
		return "Rewind"
	default:
		return "Unknown"
	}
}

// PumpEvent is the engine's tagged-union representation of a raw pump-history
// event (spec.md §3). Only the fields relevant to Kind are populated;
// exhaustive switches on Kind are expected at every consumer, never dynamic
// dispatch.
type PumpEvent struct {
	Kind      PumpEventKind
	Timestamp time.Time
	Units     float64 // Bolus
	Rate      float64 // TempBasal, U/hr
	Minutes   float64 // TempBasalDuration
}

// CarbEntry represents a single carbohydrate intake (spec.md §3).
type CarbEntry struct {
	Timestamp time.Time
	Carbs     float64
	Fat       float64
	Protein   float64
}

// ToPumpEvents classifies raw treatments into the engine's tagged union.
// Treatments whose EventType doesn't match any of the six pump-event
// variants are dropped unless they carry insulin (some pumps report plain
// boluses without a recognized EventType).
func ToPumpEvents(treatments []Treatment) []PumpEvent {
	events := make([]PumpEvent, 0, len(treatments))
	for _, t := range treatments {
		switch t.EventType {
		case TreatmentEventTypes.Bolus:
			events = append(events, PumpEvent{Kind: PumpEventBolus, Timestamp: t.Time(), Units: t.Insulin})
		case TreatmentEventTypes.TempBasal:
			events = append(events, PumpEvent{Kind: PumpEventTempBasal, Timestamp: t.Time(), Rate: t.Rate})
		case TreatmentEventTypes.TempBasalDuration:
			events = append(events, PumpEvent{Kind: PumpEventTempBasalDuration, Timestamp: t.Time(), Minutes: t.Duration})
		case TreatmentEventTypes.PumpSuspend:
			events = append(events, PumpEvent{Kind: PumpEventPumpSuspend, Timestamp: t.Time()})
		case TreatmentEventTypes.PumpResume:
			events = append(events, PumpEvent{Kind: PumpEventPumpResume, Timestamp: t.Time()})
		case TreatmentEventTypes.Rewind:
			events = append(events, PumpEvent{Kind: PumpEventRewind, Timestamp: t.Time()})
		default:
			if t.HasInsulin() {
				events = append(events, PumpEvent{Kind: PumpEventBolus, Timestamp: t.Time(), Units: t.Insulin})
			}
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	return events
}

// ToCarbEntries extracts CarbEntry values from raw treatments.
func ToCarbEntries(treatments []Treatment) []CarbEntry {
	entries := make([]CarbEntry, 0, len(treatments))
	for _, t := range treatments {
		if !t.HasCarbs() {
			continue
		}
		entries = append(entries, CarbEntry{
			Timestamp: t.Time(),
			Carbs:     t.Carbs,
			Fat:       t.Fat,
			Protein:   t.Protein,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries
}

// ValidatePairing checks the invariant that every TempBasal event has a
// matching TempBasalDuration at the identical timestamp, and vice versa.
// Returns a descriptive error naming the offending timestamp on mismatch,
// per spec.md §7's History-malformed error kind.
func ValidatePairing(events []PumpEvent) error {
	rates := map[int64]bool{}
	durations := map[int64]bool{}
	for _, e := range events {
		switch e.Kind {
		case PumpEventTempBasal:
			rates[e.Timestamp.UnixMilli()] = true
		case PumpEventTempBasalDuration:
			durations[e.Timestamp.UnixMilli()] = true
		}
	}
	for ts := range rates {
		if !durations[ts] {
			return fmt.Errorf("tempBasalMissingDuration: temp basal at %s has no paired duration", time.UnixMilli(ts))
		}
	}
	for ts := range durations {
		if !rates[ts] {
			return fmt.Errorf("tempBasalDurationMismatch: temp basal duration at %s has no paired rate", time.UnixMilli(ts))
		}
	}
	return nil
}
