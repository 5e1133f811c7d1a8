package meal

import (
	"testing"
	"time"

	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profile"
	"github.com/orefng/orefng/internal/pumphistory"
)

func readingsRisingEvery5Min(start time.Time, n int, startVal, step int) []models.GlucoseReading {
	out := make([]models.GlucoseReading, n)
	for i := 0; i < n; i++ {
		out[i] = models.GlucoseReading{
			Timestamp: start.Add(time.Duration(i*5) * time.Minute),
			Value:     startVal + i*step,
		}
	}
	return out
}

func TestDetect_NoCarbsNoDeviationHistory_ZeroesCOB(t *testing.T) {
	p := profile.Default()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	readings := []models.GlucoseReading{{Timestamp: start, Value: 100}}
	res := Detect(readings, nil, nil, p, 1.0, start)
	if res.COB != 0 {
		t.Errorf("COB with no history = %v, want 0", res.COB)
	}
}

func TestDetect_RisingBGWithCarbsProducesCOB(t *testing.T) {
	p := profile.Default()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	readings := readingsRisingEvery5Min(start, 6, 100, 8)
	carbs := []models.CarbEntry{{Timestamp: start, Carbs: 40}}

	res := Detect(readings, carbs, nil, p, 1.0, start.Add(30*time.Minute))
	if res.COB <= 0 {
		t.Errorf("COB = %v, want > 0", res.COB)
	}
	if res.COB > 40 {
		t.Errorf("COB = %v, want <= initial carb entry of 40", res.COB)
	}
}

func TestDetect_COBNeverExceedsMaxCOB(t *testing.T) {
	p := profile.Default()
	p.MaxCOB = 20
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	readings := readingsRisingEvery5Min(start, 3, 100, 1)
	carbs := []models.CarbEntry{{Timestamp: start, Carbs: 200}}

	res := Detect(readings, carbs, []pumphistory.ComputedEvent{}, p, 1.0, start.Add(10*time.Minute))
	if res.COB > 20 {
		t.Errorf("COB = %v, want capped at maxCOB=20", res.COB)
	}
}
