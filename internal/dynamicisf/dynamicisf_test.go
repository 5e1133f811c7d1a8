package dynamicisf

import (
	"testing"

	"github.com/orefng/orefng/internal/profile"
)

func TestCompute_RatioStaysWithinAutosensBounds(t *testing.T) {
	p := profile.Default()
	res := Compute(50, 30, 30, 100, 100, 100, p)
	if res.Disabled {
		t.Fatal("should not be disabled for target below 118")
	}
	if res.Ratio < p.AutosensMin || res.Ratio > p.AutosensMax {
		t.Errorf("Ratio = %v, want within [%v, %v]", res.Ratio, p.AutosensMin, p.AutosensMax)
	}
}

func TestCompute_DisabledAboveHighTempTarget(t *testing.T) {
	p := profile.Default()
	p.HighTemptargetRaisesSensitivity = true
	res := Compute(50, 30, 20, 150, 120, 150, p)
	if !res.Disabled {
		t.Error("expected dynamic ISF disabled for a high temp target with the sensitivity flag honored")
	}
	if res.ISF != 50 {
		t.Errorf("ISF when disabled = %v, want unchanged profileISF 50", res.ISF)
	}
}

func TestCompute_NotDisabledWithoutSensitivityFlag(t *testing.T) {
	p := profile.Default()
	p.HighTemptargetRaisesSensitivity = false
	res := Compute(50, 30, 20, 150, 120, 150, p)
	if res.Disabled {
		t.Error("expected dynamic ISF to stay active when highTemptargetRaisesSensitivity is off")
	}
}

func TestCompute_HigherTDDLowersISF(t *testing.T) {
	p := profile.Default()
	low := Compute(50, 20, 30, 100, 100, 100, p)
	high := Compute(50, 80, 30, 100, 100, 100, p)
	if high.ISF >= low.ISF {
		t.Errorf("ISF with higher TDD = %v, want < ISF with lower TDD = %v", high.ISF, low.ISF)
	}
}

func TestCompute_SigmoidVariantProducesBoundedISF(t *testing.T) {
	p := profile.Default()
	p.Sigmoid = true
	res := Compute(50, 30, 30, 100, 100, 100, p)
	if res.ISF <= 0 {
		t.Errorf("sigmoid ISF = %v, want positive", res.ISF)
	}
	if res.Ratio < p.AutosensMin || res.Ratio > p.AutosensMax {
		t.Errorf("sigmoid Ratio = %v, want within [%v, %v]", res.Ratio, p.AutosensMin, p.AutosensMax)
	}
}

func TestCompute_UsesDynamicPeakTimeDefaultsNotIOBCurveDefaults(t *testing.T) {
	p := profile.Default() // InsulinPeakTime default is 75 (IOB curve default), UseCustomPeakTime false
	res := Compute(50, 30, 30, 100, 100, 100, p)
	if res.InsulinFactor != 55 { // 120 - 65 (rapidActing dynamic-ISF default), not 120-75
		t.Errorf("InsulinFactor = %v, want 55 (120 - 65 rapid-acting default)", res.InsulinFactor)
	}
}
