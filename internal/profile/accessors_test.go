package profile

import (
	"testing"
	"time"
)

func TestBasalAt_WrapsAtMidnight(t *testing.T) {
	p := Default()
	p.BasalSchedule = []ScheduleEntry{
		{OffsetMinutes: 0, Value: 0.8},
		{OffsetMinutes: 360, Value: 1.0},  // 06:00
		{OffsetMinutes: 1320, Value: 0.6}, // 22:00
	}

	tests := []struct {
		name string
		hm   string
		want float64
	}{
		{"midnight", "00:00", 0.8},
		{"early morning before 6", "05:59", 0.8},
		{"at 6am boundary", "06:00", 1.0},
		{"midday", "12:00", 1.0},
		{"at 22:00 boundary", "22:00", 0.6},
		{"late night wraps to last segment", "23:30", 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := time.Parse("15:04", tt.hm)
			if err != nil {
				t.Fatal(err)
			}
			got := p.BasalAt(ts)
			if got != tt.want {
				t.Errorf("BasalAt(%s) = %v, want %v", tt.hm, got, tt.want)
			}
		})
	}
}

func TestBasalAt_EmptyScheduleFallsBack(t *testing.T) {
	p := Default()
	if got := p.BasalAt(time.Now()); got != 0.1 {
		t.Errorf("BasalAt empty schedule = %v, want 0.1", got)
	}
	if got := p.ISFAt(time.Now()); got != 200 {
		t.Errorf("ISFAt empty schedule = %v, want 200", got)
	}
	if got := p.CarbRatioAt(time.Now()); got != 30 {
		t.Errorf("CarbRatioAt empty schedule = %v, want 30", got)
	}
}

func TestEffectiveDIA(t *testing.T) {
	p := Default()
	p.DIA = 3
	if got := p.EffectiveDIA(); got != 5 {
		t.Errorf("EffectiveDIA() = %v, want 5", got)
	}
	p.DIA = 7
	if got := p.EffectiveDIA(); got != 7 {
		t.Errorf("EffectiveDIA() = %v, want 7", got)
	}
}

func TestPeakMinutes(t *testing.T) {
	p := Default()
	if got := p.PeakMinutes(); got != 75 {
		t.Errorf("PeakMinutes rapidActing default = %v, want 75", got)
	}
	p.Curve = CurveUltraRapid
	if got := p.PeakMinutes(); got != 55 {
		t.Errorf("PeakMinutes ultraRapid default = %v, want 55", got)
	}
	p.UseCustomPeakTime = true
	p.InsulinPeakTime = 65
	if got := p.PeakMinutes(); got != 65 {
		t.Errorf("PeakMinutes custom = %v, want 65", got)
	}
}

func TestBasalIncrement(t *testing.T) {
	p := Default()
	if got := p.BasalIncrement(12); got != 0.1 {
		t.Errorf("BasalIncrement(12) = %v, want 0.1", got)
	}
	if got := p.BasalIncrement(2); got != 0.05 {
		t.Errorf("BasalIncrement(2) = %v, want 0.05", got)
	}
	if got := p.BasalIncrement(0.5); got != 0.05 {
		t.Errorf("BasalIncrement(0.5) generic model = %v, want 0.05", got)
	}
	p.Model = "MMT-754"
	if got := p.BasalIncrement(0.5); got != 0.025 {
		t.Errorf("BasalIncrement(0.5) 54-model = %v, want 0.025", got)
	}
}
