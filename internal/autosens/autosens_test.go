package autosens

import (
	"testing"
	"time"

	"github.com/orefng/orefng/internal/models"
	"github.com/orefng/orefng/internal/profile"
)

func TestDetect_FlatBGReturnsNeutralRatio(t *testing.T) {
	p := profile.Default()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var readings []models.GlucoseReading
	for i := 0; i < 120; i++ {
		readings = append(readings, models.GlucoseReading{
			Timestamp: start.Add(time.Duration(i*5) * time.Minute),
			Value:     100,
		})
	}
	clock := start.Add(10 * time.Hour)
	res := Detect(readings, nil, nil, p, 100, clock)
	if res.Ratio != 1 {
		t.Errorf("Ratio = %v, want neutral 1 for flat BG", res.Ratio)
	}
	if res.UsedWindow != "8h" && res.UsedWindow != "24h" {
		t.Errorf("UsedWindow = %q, want 8h or 24h", res.UsedWindow)
	}
}

func TestDetect_UsesLowerOfTwoWindows(t *testing.T) {
	p := profile.Default()
	res := Detect(nil, nil, nil, p, 100, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if res.Ratio != res.Ratio8h && res.Ratio != res.Ratio24h {
		t.Errorf("Ratio %v must equal one of Ratio8h=%v or Ratio24h=%v", res.Ratio, res.Ratio8h, res.Ratio24h)
	}
	if res.Ratio > res.Ratio8h || res.Ratio > res.Ratio24h {
		t.Errorf("Ratio %v should be the lower of the two windows", res.Ratio)
	}
}
