package iob

import (
	"testing"
	"time"

	"github.com/orefng/orefng/internal/profile"
	"github.com/orefng/orefng/internal/pumphistory"
)

func TestSeries_SingleBolusDecaysToZero(t *testing.T) {
	p := profile.Default()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []pumphistory.ComputedEvent{
		{Timestamp: clock, Insulin: 5.0},
	}

	series := Series(events, p, clock, 0)
	if len(series) != 48 {
		t.Fatalf("Series length = %d, want 48", len(series))
	}
	if series[0].IOB <= 4.9 || series[0].IOB > 5.0001 {
		t.Errorf("IOB immediately after bolus = %v, want ~5.0", series[0].IOB)
	}
	last := series[len(series)-1]
	if last.IOB > 0.2 {
		t.Errorf("IOB after 4h (DIA=5h) = %v, want near 0", last.IOB)
	}
	if series[0].BolusInsulin != 5.0 {
		t.Errorf("BolusInsulin = %v, want 5.0", series[0].BolusInsulin)
	}
}

func TestSeries_FutureEventsIgnored(t *testing.T) {
	p := profile.Default()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []pumphistory.ComputedEvent{
		{Timestamp: clock.Add(time.Hour), Insulin: 2.0},
	}
	series := Series(events, p, clock, 0)
	if series[0].IOB != 0 {
		t.Errorf("IOB from future event = %v, want 0", series[0].IOB)
	}
}

func TestSeries_ZeroTempOverlayLowersIOBBelowWithoutIt(t *testing.T) {
	p := profile.Default()
	p.BasalSchedule = []profile.ScheduleEntry{{OffsetMinutes: 0, Value: 1.0}}
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	plain := Series(nil, p, clock, 0)
	withZeroTemp := Series(nil, p, clock, 240)

	// A real 4h zero temp suspends profile basal, which shows up as
	// negative net insulin (i.e. higher BG) relative to no projection at
	// all, not as the inert zero-insulin event the curve used to fold in.
	last := len(withZeroTemp) - 1
	if withZeroTemp[last].IOB >= plain[last].IOB {
		t.Errorf("zero-temp overlay IOB = %v, want < plain IOB = %v", withZeroTemp[last].IOB, plain[last].IOB)
	}
}

func TestAtNow_ClassifiesMicroBolusesAsBasal(t *testing.T) {
	p := profile.Default()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []pumphistory.ComputedEvent{
		{Timestamp: clock.Add(-10 * time.Minute), Insulin: 0.05, IsTempBolus: true},
	}
	pt := AtNow(events, p, clock)
	if pt.BasalIOB <= 0 {
		t.Errorf("BasalIOB = %v, want > 0", pt.BasalIOB)
	}
	if pt.BolusIOB != 0 {
		t.Errorf("BolusIOB = %v, want 0", pt.BolusIOB)
	}
}
