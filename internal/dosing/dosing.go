// Package dosing implements the ordered dosing-decision cascade
// (spec.md §4.9), SMB sizing (§4.10) and temp-basal quantization (§4.11).
package dosing

import (
	"math"
	"time"

	"github.com/orefng/orefng/internal/jsdecimal"
	"github.com/orefng/orefng/internal/profile"
)

// Inputs bundles everything the cascade needs to reach a dosing decision.
// It is deliberately flat (no nested engine types) so the cascade stays a
// pure function of plain numbers and the profile.
type Inputs struct {
	BG             float64
	Noise          int     // 0/unset = unknown, 1 = clean ... 3+ = high
	BGAgeMinutes   float64 // minutes between the determination clock and the latest reading
	FlatCGMMinutes float64 // minutes the latest readings have held an identical value

	MinPredBG    float64
	MinGuardBG   float64
	MinIOBPredBG float64
	AvgPredBG    float64

	IOB float64
	COB float64

	CurrentBasal            float64
	CurrentTempRate         float64
	CurrentTempDuration     float64 // minutes remaining on the live temp, per the pump/CGM uplink
	HasActiveTemp           bool
	LastTempRate            float64 // most recent temp basal recorded in pump history
	LastTempAgeMinutes      float64 // minutes since that recorded temp started
	LastTempEndedAgoMinutes float64 // minutes since that recorded temp's duration elapsed; negative if still running

	Delta         float64
	ShortAvgDelta float64
	LongAvgDelta  float64
	CurrentGI     float64 // instantaneous glucose impact of insulin-on-board (bgi)

	ISF        float64 // effective, sensitivity-adjusted ISF
	ProfileISF float64 // unadjusted profile ISF
	CarbRatio  float64

	ProfileTarget    float64 // profile's baseline target, (minBG+maxBG)/2
	TempTargetActive bool
	TempTargetValue  float64

	SensitivityRatio float64

	LastBolusTime time.Time
	Clock         time.Time
	Profile       *profile.Profile
}

// Decision is the cascade's output: a temp-basal recommendation, an
// optional SMB, the carbs-required figure, and the reason string, plus the
// Stage 3/4 diagnostics (threshold, expectedDelta, minDelta, eventualBG)
// the Determination wire format surfaces alongside them.
type Decision struct {
	TempBasal     *TempBasalRecommendation
	SMBUnits      float64
	CarbsReq      float64
	Reason        string
	Threshold     float64
	ExpectedDelta float64
	MinDelta      float64
	EventualBG    float64
}

// Determine runs the cascade in the order spec.md §4.9 names: Stage 0
// cancels aggressive temps on unreliable CGM data, Stage 1 flags temps that
// have drifted from pump history, Stage 3 settles the active target and
// threshold, Stage 4 derives eventualBG from the deviation trend, and
// Stage 5 walks the decision ladder (low-glucose-suspend,
// skip-neutral-temp, low-eventual-glucose, falling-faster-than-expected,
// in-range, max-IOB, SMB, high-temp fallback). The first ladder step that
// applies returns immediately, except in-range, which falls through to the
// SMB check when SMB is enabled.
func Determine(in Inputs) Decision {
	target, threshold := stage3(in, in.Profile)
	eventualBG := stage4(in)
	minDelta := math.Min(in.Delta, in.ShortAvgDelta)
	expectedDelta := in.CurrentGI

	d := cascade(in, target, threshold, eventualBG, minDelta, expectedDelta)
	d.Threshold = threshold
	d.ExpectedDelta = expectedDelta
	d.MinDelta = minDelta
	d.EventualBG = eventualBG
	return d
}

// cascade runs Stages 0-1 and the Stage 5 decision ladder given the
// Stage 3/4 results Determine already settled.
func cascade(in Inputs, target, threshold, eventualBG, minDelta, expectedDelta float64) Decision {
	r := &ReasonBuilder{}
	p := in.Profile

	if d, ok := stage0(in, r, p); ok {
		return d
	}
	stage1(in, r)

	req := carbsReq(in.MinGuardBG, threshold, in.ISF, in.CarbRatio, p)
	overrideFactor := in.SensitivityRatio
	maxDelta := math.Max(math.Abs(in.Delta), math.Abs(in.ShortAvgDelta))
	smbOK := smbEnabled(in, threshold, maxDelta, p)

	// 1. Low-glucose-suspend.
	if in.BG < threshold {
		if in.CurrentBasal > 0 && in.IOB < -in.CurrentBasal*overrideFactor*20/60 && minDelta > expectedDelta && expectedDelta > 0 {
			r.Addf("IOB %.2f and minDelta %.1f > expectedDelta %.1f, BG expected to recover without suspending", in.IOB, minDelta, expectedDelta)
		} else {
			return lowGlucoseSuspend(in, r, req, target, threshold)
		}
	} else if in.MinGuardBG < threshold {
		return lowGlucoseSuspend(in, r, req, target, threshold)
	}

	// 2. Skip-neutral-temp near the top of the hour when SMB is disabled.
	if !smbOK && in.Clock.Minute() >= 55 {
		r.Add("skipping neutral temp near the top of the hour")
		return Decision{TempBasal: &TempBasalRecommendation{Rate: 0, Duration: 0}, CarbsReq: req, Reason: r.String()}
	}

	// 3. Low-eventual-glucose.
	if eventualBG < target {
		naiveEventualBG := naiveEventualBG(in)
		if minDelta > expectedDelta && expectedDelta > 0 && naiveEventualBG < 40 {
			r.Add("eventualBG low but naiveEventualBG critically low and BG expected to rise, 30-min zero temp")
			return Decision{TempBasal: &TempBasalRecommendation{Rate: 0, Duration: 30}, CarbsReq: req, Reason: r.String()}
		}
		insulinRequired := 2 * math.Min(0, (eventualBG-target)/in.ISF)
		if expectedDelta != 0 {
			insulinRequired *= minDelta / expectedDelta
		}
		r.Addf("eventualBG %.0f < target %.0f, insulinRequired %.2f", eventualBG, target, insulinRequired)
		tb := setTempBasal(in.CurrentBasal+2*insulinRequired, 30, in.CurrentBasal, p)
		return Decision{TempBasal: &tb, CarbsReq: req, Reason: r.String()}
	}

	// 4. Falling faster than expected.
	if minDelta < expectedDelta && !smbOK {
		r.Add("BG falling faster than expected, temp to basal")
		tb := setTempBasal(in.CurrentBasal, 30, in.CurrentBasal, p)
		return Decision{TempBasal: &tb, CarbsReq: req, Reason: r.String()}
	}

	// 5. In-range: SMB disabled holds at neutral; SMB enabled falls through.
	if math.Min(eventualBG, in.MinPredBG) < p.MaxBG {
		if !smbOK {
			r.Add("predicted BG in range, neutral temp at basal")
			tb := setTempBasal(in.CurrentBasal, 30, in.CurrentBasal, p)
			return Decision{TempBasal: &tb, CarbsReq: req, Reason: r.String()}
		}
		r.Add("predicted BG in range, SMB enabled, checking for a microbolus")
	}

	// 6. Max-IOB exceeded.
	if p.MaxIOB > 0 && in.IOB > p.MaxIOB {
		r.Addf("IOB %.2f > maxIOB %.2f, neutral temp", in.IOB, p.MaxIOB)
		tb := setTempBasal(in.CurrentBasal, 30, in.CurrentBasal, p)
		return Decision{TempBasal: &tb, CarbsReq: req, Reason: r.String()}
	}

	// 7. SMB delivery.
	if smbOK && in.BG > threshold {
		if d, ok := trySMB(in, r, req, target, eventualBG, overrideFactor, p); ok {
			return d
		}
	}

	// 8. High-temp fallback.
	insulinRequired := (math.Min(in.MinPredBG, eventualBG) - target) / in.ISF
	if p.MaxIOB > 0 {
		insulinRequired = math.Min(insulinRequired, math.Max(0, p.MaxIOB-in.IOB))
	}
	r.Addf("high temp fallback, insulinRequired %.2f", insulinRequired)
	tb := setTempBasal(in.CurrentBasal+2*insulinRequired, 30, in.CurrentBasal, p)
	return Decision{TempBasal: &tb, CarbsReq: req, Reason: r.String()}
}

// stage0 cancels aggressive temps outright when the CGM data backing the
// whole cascade can't be trusted: a dead sensor, high noise, a stale or
// future-timestamped reading, or a CGM stuck reporting the same value
// (spec.md §4.9 Stage 0). Property 9 holds because this path never issues
// a temp above the current basal.
func stage0(in Inputs, r *ReasonBuilder, p *profile.Profile) (Decision, bool) {
	unreliable := in.BG <= 10 || in.BG == 38 || in.Noise >= 3 ||
		in.BGAgeMinutes > 12 || in.BGAgeMinutes < -5 || in.FlatCGMMinutes >= 15
	if !unreliable {
		return Decision{}, false
	}
	r.Addf("CGM data unreliable (bg=%.0f noise=%d age=%.0fm flat=%.0fm), canceling aggressive temps", in.BG, in.Noise, in.BGAgeMinutes, in.FlatCGMMinutes)
	switch {
	case in.HasActiveTemp && in.CurrentTempRate >= in.CurrentBasal:
		tb := setTempBasal(in.CurrentBasal, 30, in.CurrentBasal, p)
		return Decision{TempBasal: &tb, Reason: r.String()}, true
	case in.HasActiveTemp && in.CurrentTempRate == 0 && in.CurrentTempDuration > 30:
		return Decision{TempBasal: &TempBasalRecommendation{Rate: 0, Duration: 30}, Reason: r.String()}, true
	default:
		return Decision{Reason: r.String()}, true
	}
}

// stage1 appends a non-terminating safety warning when the live temp
// disagrees with what pump history says should be running (spec.md §4.9
// Stage 1): either the rates don't match after the recorded temp has had
// time to apply, or a recorded temp's duration has elapsed but the live
// temp is still reporting active.
func stage1(in Inputs, r *ReasonBuilder) {
	if in.HasActiveTemp && in.LastTempAgeMinutes > 10 && jsdecimal.Round(in.CurrentTempRate, 3) != jsdecimal.Round(in.LastTempRate, 3) {
		r.Add("currentTemp doesn't match pump history, cancel temp recommended")
		return
	}
	if in.HasActiveTemp && in.LastTempEndedAgoMinutes > 5 {
		r.Add("lastTemp ended over 5m ago but currentTemp is still running, cancel temp recommended")
	}
}

// stage3 settles the active glucose target and the low-BG threshold
// (spec.md §4.9 Stage 3). A temp target overrides the autosens-adjusted
// target outright; otherwise the target moves with (t-60)/ratio+60 only
// when the profile opts in via sensitivityRaisesTarget/resistanceLowersTarget.
// A noisy CGM widens the target by NoisyCGMTargetMultiplier.
func stage3(in Inputs, p *profile.Profile) (target, threshold float64) {
	target = in.ProfileTarget
	if in.TempTargetActive {
		target = in.TempTargetValue
	} else if p.SensitivityRaisesTarget || p.ResistanceLowersTarget {
		target = (target-60)/in.SensitivityRatio + 60
	}
	if in.Noise >= 2 {
		target *= p.NoisyCGMTargetMultiplier
	}
	threshold = jsdecimal.Clamp(p.ThresholdSetting, math.Max(p.MinBG-0.5*(p.MinBG-40), 60), 120)
	return target, threshold
}

// stage4 derives eventualBG from the deviation trend (spec.md §4.9 Stage
// 4): deviation starts from minDelta vs the instantaneous glucose impact
// of insulin, retrying with the smaller of the 15-min and 45-min average
// deltas, then with the 45-min average delta alone, whenever the computed
// deviation comes out negative, so a single noisy 5-min
// sample can't mask a real rise.
func stage4(in Inputs) float64 {
	minDelta := math.Min(in.Delta, in.ShortAvgDelta)
	deviation := 6 * (minDelta - in.CurrentGI)
	if deviation < 0 {
		minAvgDelta := math.Min(in.ShortAvgDelta, in.LongAvgDelta)
		deviation = 6 * (minAvgDelta - in.CurrentGI)
		if deviation < 0 {
			deviation = 6 * (in.LongAvgDelta - in.CurrentGI)
		}
	}
	return naiveEventualBG(in) + deviation
}

// naiveEventualBG is currentBG projected forward by IOB alone, ignoring
// the deviation trend. When IOB is non-positive, the reference algorithm
// uses whichever of the profile or adjusted ISF is smaller so a stacked
// low doesn't get undersold (spec.md §4.9 Stage 4).
func naiveEventualBG(in Inputs) float64 {
	isf := in.ISF
	if in.IOB <= 0 {
		isf = math.Min(in.ProfileISF, in.ISF)
	}
	return in.BG - in.IOB*isf
}

func lowGlucoseSuspend(in Inputs, r *ReasonBuilder, req, target, threshold float64) Decision {
	dur := 30.0
	if in.CurrentBasal > 0 && in.ISF > 0 {
		dur = clampToStep30((target-in.MinGuardBG)/in.ISF*60/in.CurrentBasal, 30, 120)
	}
	r.Addf("BG %.0f / minGuardBG %.0f below threshold %.0f, suspending for %.0fm", in.BG, in.MinGuardBG, threshold, dur)
	return Decision{TempBasal: &TempBasalRecommendation{Rate: 0, Duration: dur}, CarbsReq: req, Reason: r.String()}
}

// clampToStep30 rounds minutes to the nearest 30-minute step and clamps
// into [lo, hi] (spec.md §4.9 Stage 5.1, Testable Property 10).
func clampToStep30(minutes, lo, hi float64) float64 {
	stepped := jsdecimal.JSRound(minutes/30) * 30
	return jsdecimal.Clamp(stepped, lo, hi)
}

// smbEnabled folds the profile's SMB-permission flag cascade together with
// the disables spec.md §4.10 names: a high temp target without the
// allow-override, glucose swinging too fast, a guard prediction already
// below threshold, or an out-of-schedule window.
func smbEnabled(in Inputs, threshold, maxDelta float64, p *profile.Profile) bool {
	allowed := p.EnableSMBAlways ||
		(p.EnableSMBWithCOB && in.COB > 0) ||
		(p.EnableSMBAfterCarbs && in.COB > 0) ||
		(p.EnableSMBWithTemptarget && in.TempTargetActive) ||
		(p.EnableSMBHighBg && in.BG > p.EnableSMBHighBgTarget)
	if !allowed {
		return false
	}
	if in.TempTargetActive && in.TempTargetValue > 100 && !p.AllowSMBWithHighTemptarget {
		return false
	}
	if maxDelta > p.MaxDeltaBgThreshold*in.BG {
		return false
	}
	if in.MinGuardBG < threshold {
		return false
	}
	return smbScheduleActive(in.Clock, p)
}

// trySMB sizes and rate-limits the microbolus (spec.md §4.10), returning
// ok=false when nothing should fire so the caller continues to the
// high-temp fallback.
func trySMB(in Inputs, r *ReasonBuilder, req, target, eventualBG, overrideFactor float64, p *profile.Profile) (Decision, bool) {
	insulinRequired := (eventualBG - target) / in.ISF
	if insulinRequired <= 0 {
		return Decision{}, false
	}

	ok, waitReason := smbRateLimit(in.Clock, in.LastBolusTime, p)
	if !ok {
		r.Add(waitReason)
		tb := setTempBasal(in.CurrentBasal*in.SensitivityRatio, 30, in.CurrentBasal, p)
		return Decision{TempBasal: &tb, CarbsReq: req, Reason: r.String()}, true
	}

	mealInsulinReq := 0.0
	if in.CarbRatio > 0 {
		mealInsulinReq = in.COB / in.CarbRatio
	}
	uam := in.IOB > mealInsulinReq
	smb := smbSize(insulinRequired, in.CurrentBasal, overrideFactor, uam, in.IOB, p.MaxIOB, p)
	r.Addf("microbolusing %.2fU for insulinRequired %.2f", smb, insulinRequired)

	tb := companionLowTemp(in, target, overrideFactor, smb, p)
	return Decision{TempBasal: &tb, SMBUnits: smb, CarbsReq: req, Reason: r.String()}, true
}

// companionLowTemp accompanies an SMB with a low temp sized off the worst
// case between the naive and IOB-curve predictions (spec.md §4.10): if the
// bolus came out below the pump's minimum increment, no temp is needed.
func companionLowTemp(in Inputs, target, overrideFactor, smb float64, p *profile.Profile) TempBasalRecommendation {
	if smb < p.BolusIncrement {
		return TempBasalRecommendation{Rate: 0, Duration: 0}
	}
	if in.ISF <= 0 || in.CurrentBasal <= 0 {
		return setTempBasal(in.CurrentBasal, 30, in.CurrentBasal, p)
	}
	worstCaseInsulin := (target - (naiveEventualBG(in)+in.MinIOBPredBG)/2) / in.ISF
	durationRequired := jsdecimal.Clamp(jsdecimal.JSRound(60*worstCaseInsulin/in.CurrentBasal*overrideFactor/30)*30, 0, 60)
	rate := in.CurrentBasal * durationRequired / 30
	return setTempBasal(rate, durationRequired, in.CurrentBasal, p)
}
