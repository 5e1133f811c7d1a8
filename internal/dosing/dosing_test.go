package dosing

import (
	"strings"
	"testing"
	"time"

	"github.com/orefng/orefng/internal/profile"
)

func baseInputs(p *profile.Profile) Inputs {
	return Inputs{
		BG:            150,
		Noise:         1,
		MinPredBG:     140,
		MinGuardBG:    130,
		MinIOBPredBG:  140,
		AvgPredBG:     140,
		IOB:           1,
		CurrentBasal:  1.0,
		ISF:           50,
		ProfileISF:    50,
		CarbRatio:     10,
		ProfileTarget: 100,
		SensitivityRatio: 1.0,
		Clock:         time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Profile:       p,
	}
}

func TestDetermine_LowGlucoseSuspends(t *testing.T) {
	p := profile.Default()
	in := baseInputs(p)
	in.BG = 55
	in.MinGuardBG = 50
	d := Determine(in)
	if d.TempBasal == nil || d.TempBasal.Rate != 0 {
		t.Fatalf("expected a zero temp basal below threshold, got %+v", d.TempBasal)
	}
	if d.TempBasal.Duration < 30 || d.TempBasal.Duration > 120 || int(d.TempBasal.Duration)%30 != 0 {
		t.Errorf("suspend duration = %v, want a multiple of 30 in [30,120]", d.TempBasal.Duration)
	}
}

func TestDetermine_LowEventualReducesBasal(t *testing.T) {
	p := profile.Default()
	in := baseInputs(p)
	in.IOB = 3 // naiveEventualBG = 150 - 3*50 = 0, well below target
	d := Determine(in)
	if d.TempBasal == nil {
		t.Fatal("expected a temp basal recommendation")
	}
	if d.TempBasal.Rate >= in.CurrentBasal {
		t.Errorf("low-eventual-BG temp rate = %v, want reduced below current basal %v", d.TempBasal.Rate, in.CurrentBasal)
	}
}

func TestDetermine_InRangeHoldsNeutralTempWhenSMBDisabled(t *testing.T) {
	p := profile.Default()
	in := baseInputs(p) // IOB=1 => eventualBG = 150-1*50 = 100, in [target,maxBG)
	d := Determine(in)
	if d.TempBasal == nil {
		t.Fatal("expected a neutral temp basal recommendation")
	}
	if d.TempBasal.Rate != in.CurrentBasal {
		t.Errorf("in-range neutral temp rate = %v, want current basal %v", d.TempBasal.Rate, in.CurrentBasal)
	}
}

func TestDetermine_InRangeFallsThroughToSMBWhenEnabled(t *testing.T) {
	p := profile.Default()
	p.EnableSMBAlways = true
	in := baseInputs(p)
	in.IOB = 0.7 // naiveEventualBG = 150-0.7*50 = 115, inside (target,maxBG)
	in.MinPredBG = 115
	in.MinGuardBG = 100
	d := Determine(in)
	if d.SMBUnits <= 0 {
		t.Errorf("expected a positive SMB when in-range falls through, got %v (reason: %s)", d.SMBUnits, d.Reason)
	}
}

func TestDetermine_MaxIOBCapsBasal(t *testing.T) {
	p := profile.Default()
	p.MaxIOB = 3
	in := baseInputs(p)
	in.BG = 400
	in.IOB = 5 // naiveEventualBG = 400-5*50 = 150, above maxBG: not in-range
	in.MinPredBG = 150
	in.MinGuardBG = 150
	d := Determine(in)
	if d.TempBasal == nil {
		t.Fatal("expected a capped temp basal")
	}
	if d.TempBasal.Rate > in.CurrentBasal {
		t.Errorf("max-IOB temp rate = %v, want capped at current basal %v", d.TempBasal.Rate, in.CurrentBasal)
	}
}

func TestDetermine_SMBNeverExceedsMaxIOBHeadroom(t *testing.T) {
	p := profile.Default()
	p.MaxIOB = 2
	p.EnableSMBAlways = true
	in := baseInputs(p)
	in.BG = 300
	in.IOB = 1.9 // naiveEventualBG = 300-1.9*50 = 205, well above maxBG
	in.MinPredBG = 205
	in.MinGuardBG = 205
	d := Determine(in)
	headroom := p.MaxIOB - in.IOB
	if d.SMBUnits > headroom+1e-9 {
		t.Errorf("SMBUnits = %v, want <= maxIOB-iob headroom %v", d.SMBUnits, headroom)
	}
}

func TestDetermine_Stage0NeverRaisesHighTempAboveBasal(t *testing.T) {
	p := profile.Default()
	cases := []Inputs{
		func() Inputs { in := baseInputs(p); in.BG = 5; return in }(),
		func() Inputs { in := baseInputs(p); in.BG = 38; return in }(),
		func() Inputs { in := baseInputs(p); in.Noise = 3; return in }(),
		func() Inputs { in := baseInputs(p); in.BGAgeMinutes = 20; return in }(),
		func() Inputs { in := baseInputs(p); in.BGAgeMinutes = -10; return in }(),
	}
	for _, in := range cases {
		in.HasActiveTemp = true
		in.CurrentTempRate = 5 // aggressive, above basal
		in.CurrentTempDuration = 30
		d := Determine(in)
		if d.TempBasal != nil && d.TempBasal.Rate > in.CurrentBasal {
			t.Errorf("bg=%v noise=%v age=%v: TempBasal.Rate = %v, want <= current basal %v", in.BG, in.Noise, in.BGAgeMinutes, d.TempBasal.Rate, in.CurrentBasal)
		}
	}
}

func TestDetermine_FlatCGMCancelsAggressiveTemp(t *testing.T) {
	p := profile.Default()
	in := baseInputs(p)
	in.FlatCGMMinutes = 20
	in.HasActiveTemp = true
	in.CurrentTempRate = 5
	d := Determine(in)
	if d.TempBasal != nil && d.TempBasal.Rate > in.CurrentBasal {
		t.Errorf("flat CGM should cancel an aggressive temp, got rate %v > basal %v", d.TempBasal.Rate, in.CurrentBasal)
	}
	if !strings.Contains(d.Reason, "unreliable") {
		t.Errorf("reason = %q, want it to mention unreliable CGM data", d.Reason)
	}
}

func TestDetermine_Stage1WarnsOnPumpHistoryMismatch(t *testing.T) {
	p := profile.Default()
	in := baseInputs(p)
	in.HasActiveTemp = true
	in.CurrentTempRate = 1
	in.LastTempRate = 2
	in.LastTempAgeMinutes = 15
	d := Determine(in)
	if !strings.Contains(d.Reason, "doesn't match pump history") {
		t.Errorf("reason = %q, want a pump-history mismatch warning", d.Reason)
	}
}

func TestDetermine_ThresholdStaysWithinBounds(t *testing.T) {
	p := profile.Default()
	in := baseInputs(p)
	d := Determine(in)
	if d.Threshold < 60 || d.Threshold > 120 {
		t.Errorf("Threshold = %v, want within [60,120]", d.Threshold)
	}
}
