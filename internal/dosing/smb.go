package dosing

import (
	"fmt"
	"math"
	"time"

	"github.com/orefng/orefng/internal/jsdecimal"
	"github.com/orefng/orefng/internal/profile"
)

// smbSize computes the super-micro-bolus size for the current tick
// (spec.md §4.10). maxBolus is currentBasal*overrideFactor*(uamMinutes if
// uam else smbMinutes)/60, rounded to 1dp; the result is also
// capped at max(0, maxIOB-iob) so an SMB never pushes IOB above the
// profile's configured maximum (Testable Property 2). The final size uses
// floor, not jsRound: oref0's microBolus formula always rounds down to the
// pump's bolus increment, never up.
func smbSize(insulinReq, currentBasal, overrideFactor float64, uam bool, iob, maxIOB float64, p *profile.Profile) float64 {
	if insulinReq <= 0 {
		return 0
	}
	minutes := p.MaxSMBBasalMinutes
	if uam {
		minutes = p.MaxUAMSMBBasalMinutes
	}
	maxBolus := jsdecimal.Round(currentBasal*overrideFactor*minutes/60, 1)

	size := insulinReq * p.SMBDeliveryRatio
	if size > maxBolus {
		size = maxBolus
	}
	if maxIOB > 0 {
		headroom := math.Max(0, maxIOB-iob)
		if size > headroom {
			size = headroom
		}
	}
	if size <= 0 || p.BolusIncrement <= 0 {
		return 0
	}
	roundTo := 1 / p.BolusIncrement
	return jsdecimal.Floor(size*roundTo) / roundTo
}

// smbRateLimit reports whether enough time has elapsed since lastBolusTime
// to permit another SMB. smbInterval is clamped to [1,10] minutes
// (spec.md §4.10). When the interval hasn't elapsed, waitReason preserves
// the reference algorithm's deliberately independent minute/second
// rounding (SPEC_FULL.md §9 Open Question (c)): the minutes and seconds
// remaining are each floored from the raw elapsed-seconds value rather
// than derived from a single consistent duration split, so "waiting Xm
// Ys" doesn't always read like a clean countdown.
func smbRateLimit(now, lastBolusTime time.Time, p *profile.Profile) (ok bool, waitReason string) {
	if lastBolusTime.IsZero() {
		return true, ""
	}
	interval := jsdecimal.Clamp(p.SMBIntervalMinutes, 1, 10)
	elapsedSeconds := now.Sub(lastBolusTime).Seconds()
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	if elapsedSeconds/60 >= interval {
		return true, ""
	}
	waitMinutes := jsdecimal.Floor(interval - elapsedSeconds/60)
	waitSeconds := jsdecimal.Floor(60 - math.Mod(elapsedSeconds, 60))
	return false, fmt.Sprintf("waiting %.0fm %.0fs to microbolus again", waitMinutes, waitSeconds)
}

// smbScheduleActive reports whether SMB delivery is currently permitted
// by the profile's optional time-of-day schedule window (spec.md §4.10a).
func smbScheduleActive(t time.Time, p *profile.Profile) bool {
	if !p.SMBScheduleEnabled {
		return true
	}
	m := t.Hour()*60 + t.Minute()
	if p.SMBScheduleStartMinutes <= p.SMBScheduleEndMinutes {
		return m >= p.SMBScheduleStartMinutes && m < p.SMBScheduleEndMinutes
	}
	// Window wraps past midnight.
	return m >= p.SMBScheduleStartMinutes || m < p.SMBScheduleEndMinutes
}

// carbsReq derives the emergency-carbs-required figure: the carbs needed
// right now to keep minGuardBG above the profile threshold, given the
// current ISF/carb-ratio, zero out below the configured reporting
// threshold (SPEC_FULL.md §4.10a).
func carbsReq(minGuardBG, threshold, isf, carbRatio float64, p *profile.Profile) float64 {
	if minGuardBG >= threshold {
		return 0
	}
	deficitMgDL := threshold - minGuardBG
	req := deficitMgDL / isf * carbRatio
	req = jsdecimal.Round(req, 0)
	if req < p.CarbsReqThreshold {
		return 0
	}
	return req
}
