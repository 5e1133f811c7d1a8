// Package pumphistory turns an unordered raw PumpEvent stream into the
// insulin-equivalent event list the IOB calculator consumes
// (spec.md §4.3). It uses an arena-of-segments design: each pass produces
// a fresh []tempSegment slice indexed by position rather than building a
// shared mutation graph, per spec.md §9's "Arena + indices" design note.
package pumphistory

import (
	"fmt"
	"sort"
	"time"

	"github.com/orefng/orefng/internal/jsdecimal"
	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profile"
)

// ComputedEvent is a normalized insulin-equivalent event: either a real
// bolus or a synthetic micro-bolus produced by splitting a temp-basal
// segment into ±0.05U steps (spec.md §4.3 step 7).
type ComputedEvent struct {
	Timestamp   time.Time
	Insulin     float64
	IsTempBolus bool
}

// tempSegment is one pending (rate, start, duration) temp-basal interval,
// indexed by position in a slice rather than linked by pointer so the
// multi-pass pipeline (pair -> truncate -> suspend-split -> profile-split)
// can freely append/replace without aliasing.
type tempSegment struct {
	start    time.Time
	end      time.Time
	rate     float64
	omit     bool // dropped entirely (inside a suspend)
}

// suspendInterval is a reconstructed PumpSuspended{start, duration}.
type suspendInterval struct {
	start time.Time
	end   time.Time
}

// Normalize runs the full §4.3 pipeline and returns the insulin-equivalent
// event stream (real boluses merged with synthetic micro-boluses), sorted
// by timestamp, ready for the IOB calculator.
func Normalize(events []models.PumpEvent, carbTimestamps []time.Time, p *profile.Profile, autosensRatio float64, clock time.Time) ([]ComputedEvent, error) {
	if err := models.ValidatePairing(events); err != nil {
		return nil, err
	}

	rates, durations := pairTempBasals(events)
	segments, err := buildSegments(rates, durations)
	if err != nil {
		return nil, err
	}

	// Step 2: cap the active temp at "now" with a synthetic zero temp.
	segments = append(segments, tempSegment{start: clock.Add(time.Minute), end: clock.Add(time.Minute).Add(time.Minute), rate: 0})

	sort.Slice(segments, func(i, j int) bool { return segments[i].start.Before(segments[j].start) })

	// Step 3: truncate overlaps.
	segments = truncateOverlaps(segments)

	// Step 4/5: suspend reconstruction and case-split against temps.
	suspends := reconstructSuspends(events, clock)
	segments = applySuspends(segments, suspends)

	// Step 6: split on 30-minute and midnight boundaries.
	segments = splitBoundaries(segments)

	// Step 7: convert every non-omitted segment into micro-boluses.
	out := make([]ComputedEvent, 0, len(segments)*4)
	for _, seg := range segments {
		if seg.omit || !seg.end.After(seg.start) {
			continue
		}
		out = append(out, toMicroBoluses(seg, p, autosensRatio)...)
	}

	for _, e := range events {
		if e.Kind == models.PumpEventBolus {
			out = append(out, ComputedEvent{Timestamp: e.Timestamp, Insulin: e.Units})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func pairTempBasals(events []models.PumpEvent) (map[int64]float64, map[int64]float64) {
	rates := map[int64]float64{}
	durations := map[int64]float64{}
	for _, e := range events {
		switch e.Kind {
		case models.PumpEventTempBasal:
			rates[e.Timestamp.UnixMilli()] = e.Rate
		case models.PumpEventTempBasalDuration:
			durations[e.Timestamp.UnixMilli()] = e.Minutes
		}
	}
	return rates, durations
}

func buildSegments(rates, durations map[int64]float64) ([]tempSegment, error) {
	segments := make([]tempSegment, 0, len(rates))
	for ts, rate := range rates {
		mins, ok := durations[ts]
		if !ok {
			return nil, fmt.Errorf("tempBasalMissingDuration: no duration paired at %s", time.UnixMilli(ts))
		}
		start := time.UnixMilli(ts)
		segments = append(segments, tempSegment{
			start: start,
			end:   start.Add(time.Duration(mins * float64(time.Minute))),
			rate:  rate,
		})
	}
	return segments, nil
}

// truncateOverlaps shortens segment N when it runs past the start of
// segment N+1, per spec.md §4.3 step 3.
func truncateOverlaps(segments []tempSegment) []tempSegment {
	for i := 0; i < len(segments)-1; i++ {
		if segments[i].end.After(segments[i+1].start) {
			segments[i].end = segments[i+1].start
		}
	}
	out := segments[:0:0]
	for _, s := range segments {
		if s.end.After(s.start) {
			out = append(out, s)
		}
	}
	return out
}

// reconstructSuspends walks deduplicated suspend/resume pairs into
// suspendInterval values, synthesizing the open ends described in
// spec.md §4.3 step 4: isSuspendedPrior when history opens on a resume,
// isCurrentlySuspended when it closes on a suspend.
func reconstructSuspends(events []models.PumpEvent, clock time.Time) []suspendInterval {
	type marker struct {
		ts     time.Time
		resume bool
	}
	var markers []marker
	for _, e := range events {
		switch e.Kind {
		case models.PumpEventPumpSuspend:
			markers = append(markers, marker{ts: e.Timestamp, resume: false})
		case models.PumpEventPumpResume:
			markers = append(markers, marker{ts: e.Timestamp, resume: true})
		}
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].ts.Before(markers[j].ts) })

	// Dedup consecutive same-type markers (keep the first of a run).
	deduped := markers[:0:0]
	for i, m := range markers {
		if i > 0 && deduped[len(deduped)-1].resume == m.resume {
			continue
		}
		deduped = append(deduped, m)
	}

	var out []suspendInterval
	historyWindow := 36 * time.Hour

	if len(deduped) > 0 && deduped[0].resume {
		// isSuspendedPrior: synthesize a suspend starting max(36h ago, resume-window).
		start := deduped[0].ts.Add(-historyWindow)
		if alt := deduped[0].ts.Add(-historyWindow); alt.After(start) {
			start = alt
		}
		out = append(out, suspendInterval{start: start, end: deduped[0].ts})
		deduped = deduped[1:]
	}

	for i := 0; i+1 < len(deduped); i += 2 {
		if !deduped[i].resume && deduped[i+1].resume {
			out = append(out, suspendInterval{start: deduped[i].ts, end: deduped[i+1].ts})
		}
	}

	if len(deduped)%2 == 1 && !deduped[len(deduped)-1].resume {
		// isCurrentlySuspended: extend the trailing suspend to clock.
		out = append(out, suspendInterval{start: deduped[len(deduped)-1].ts, end: clock})
	}

	return out
}

// applySuspends case-splits each temp segment against each suspend interval
// per spec.md §4.3 step 5's four cases, and injects a zero-rate, omitted
// segment for every suspend interval so its basal contribution is zeroed.
func applySuspends(segments []tempSegment, suspends []suspendInterval) []tempSegment {
	for _, sus := range suspends {
		var next []tempSegment
		for _, seg := range segments {
			switch {
			case !seg.start.Before(sus.start) && !seg.end.After(sus.end):
				// (a) temp lies fully inside the suspend: drop.
			case seg.start.Before(sus.start) && seg.end.After(sus.start) && !seg.end.After(sus.end):
				// (b) starts before, ends inside: truncate at suspend start.
				seg.end = sus.start
				next = append(next, seg)
			case !seg.start.Before(sus.start) && seg.start.Before(sus.end) && seg.end.After(sus.end):
				// (c) starts inside, ends after: move start to suspend end.
				seg.start = sus.end
				next = append(next, seg)
			case seg.start.Before(sus.start) && seg.end.After(sus.end):
				// (d) fully contains the suspend: split into two segments.
				next = append(next, tempSegment{start: seg.start, end: sus.start, rate: seg.rate})
				next = append(next, tempSegment{start: sus.end, end: seg.end, rate: seg.rate})
			default:
				next = append(next, seg)
			}
		}
		next = append(next, tempSegment{start: sus.start, end: sus.end, rate: 0, omit: true})
		segments = next
	}
	return segments
}

// splitBoundaries splits every segment at 30-minute and local-midnight
// boundaries so each resulting micro-bolus run sits entirely within one
// profile-schedule segment most of the time (spec.md §4.3 step 6).
func splitBoundaries(segments []tempSegment) []tempSegment {
	var out []tempSegment
	for _, seg := range segments {
		cur := seg.start
		for cur.Before(seg.end) {
			next := nextBoundary(cur)
			if next.After(seg.end) {
				next = seg.end
			}
			out = append(out, tempSegment{start: cur, end: next, rate: seg.rate, omit: seg.omit})
			cur = next
		}
	}
	return out
}

func nextBoundary(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
	halfHour := t.Truncate(30 * time.Minute).Add(30 * time.Minute)
	if halfHour.Before(midnight) {
		return halfHour
	}
	return midnight
}

// toMicroBoluses converts one segment into ±0.05U synthetic bolus events
// spaced uniformly across its duration, per spec.md §4.3 step 7.
func toMicroBoluses(seg tempSegment, p *profile.Profile, autosensRatio float64) []ComputedEvent {
	durationMin := seg.end.Sub(seg.start).Minutes()
	if durationMin <= 0 {
		return nil
	}
	mid := seg.start.Add(seg.end.Sub(seg.start) / 2)
	netRate := seg.rate - p.BasalAt(mid)*autosensRatio
	netUnits := netRate * durationMin / 60

	step := 0.05
	count := int(jsdecimal.JSRound(netUnits / step))
	if count == 0 {
		return nil
	}

	sign := 1.0
	if count < 0 {
		sign = -1.0
		count = -count
	}

	out := make([]ComputedEvent, 0, count)
	spacing := durationMin / float64(count)
	for i := 0; i < count; i++ {
		ts := seg.start.Add(time.Duration((float64(i)+0.5) * spacing * float64(time.Minute)))
		out = append(out, ComputedEvent{Timestamp: ts, Insulin: sign * step, IsTempBolus: true})
	}
	return out
}
