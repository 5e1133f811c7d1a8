package engine

import (
	"testing"
	"time"

	"github.com/orefng/orefng/internal/engineerr"
	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profile"
)

func glucoseSeries(start time.Time, n int, startVal int) []models.GlucoseEntry {
	out := make([]models.GlucoseEntry, n)
	for i := 0; i < n; i++ {
		out[i] = models.GlucoseEntry{
			SGV:  startVal,
			Date: start.Add(time.Duration(i*5) * time.Minute).UnixMilli(),
		}
	}
	return out
}

func TestDetermine_MissingProfileReturnsTypedError(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err := Determine(Inputs{
		Glucose: glucoseSeries(clock, 3, 120),
		Clock:   clock,
	})
	var engErr *engineerr.Error
	if err == nil {
		t.Fatal("expected an error for missing profile")
	}
	if !asEngineErr(err, &engErr) || engErr.Kind != engineerr.KindInputMissing {
		t.Errorf("expected KindInputMissing, got %v", err)
	}
}

func TestDetermine_FlatBGNoHistoryProducesSensibleDecision(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := profile.Default()
	p.BasalSchedule = []profile.ScheduleEntry{{OffsetMinutes: 0, Value: 1.0}}
	p.ISFSchedule = []profile.ScheduleEntry{{OffsetMinutes: 0, Value: 50}}
	p.CarbRatioSchedule = []profile.ScheduleEntry{{OffsetMinutes: 0, Value: 10}}
	p.MinBG = 100
	p.MaxBG = 120

	det, err := Determine(Inputs{
		Glucose: glucoseSeries(clock.Add(-15*time.Minute), 4, 105),
		Profile: p,
		Clock:   clock,
	})
	if err != nil {
		t.Fatalf("Determine returned error: %v", err)
	}
	if det.BG != 105 {
		t.Errorf("BG = %v, want 105", det.BG)
	}
	if det.Reason == "" {
		t.Error("expected a non-empty reason string")
	}
}

func TestDetermine_OutOfRangeGlucoseRejected(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := profile.Default()
	_, err := Determine(Inputs{
		Glucose: []models.GlucoseEntry{{SGV: -5, Date: clock.UnixMilli()}},
		Profile: p,
		Clock:   clock,
	})
	var engErr *engineerr.Error
	if err == nil || !asEngineErr(err, &engErr) || engErr.Kind != engineerr.KindInputOutOfRange {
		t.Errorf("expected KindInputOutOfRange, got %v", err)
	}
}

func asEngineErr(err error, target **engineerr.Error) bool {
	e, ok := err.(*engineerr.Error)
	if ok {
		*target = e
	}
	return ok
}
