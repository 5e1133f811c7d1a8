package forecast

import (
	"testing"
	"time"

	"github.com/orefng/orefng/internal/meal"
	"github.com/orefng/orefng/internal/profile"
	"github.com/orefng/orefng/internal/pumphistory"
)

func TestRun_NoActivityFlatForecast(t *testing.T) {
	p := profile.Default()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	res := Run(120, 50, 5, nil, meal.Result{}, p, clock, 100)

	if res.EventualBG != 120 {
		t.Errorf("EventualBG with no IOB/COB = %v, want 120", res.EventualBG)
	}
	if res.MinPredBG != 120 {
		t.Errorf("MinPredBG with no activity = %v, want 120", res.MinPredBG)
	}
}

func TestRun_BolusLowersEventualBG(t *testing.T) {
	p := profile.Default()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []pumphistory.ComputedEvent{{Timestamp: clock, Insulin: 3.0}}
	res := Run(150, 50, 5, events, meal.Result{}, p, clock, 100)

	if res.EventualBG >= 150 {
		t.Errorf("EventualBG after a bolus = %v, want < 150", res.EventualBG)
	}
}

func TestRun_COBDoesNotLowerMinPredBGBelowIOBOnly(t *testing.T) {
	p := profile.Default()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	withCOB := Run(120, 50, 5, nil, meal.Result{COB: 40}, p, clock, 100)
	withoutCOB := Run(120, 50, 5, nil, meal.Result{COB: 0}, p, clock, 100)

	if withCOB.MinPredBG < withoutCOB.MinPredBG {
		t.Errorf("MinPredBG with COB=%v should not be lower than without COB=%v", withCOB.MinPredBG, withoutCOB.MinPredBG)
	}
}
