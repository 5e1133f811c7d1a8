// Package profile holds the therapy-profile configuration (spec.md §3) and
// the time-of-day accessors the rest of the engine reads basal/ISF/carb
// ratio through (spec.md §4.2).
package profile

// ScheduleEntry is one piecewise-constant segment of a basal/ISF/carb-ratio
// schedule: it applies from OffsetMinutes (minutes since local midnight)
// until the next entry's offset, wrapping at 1440.
type ScheduleEntry struct {
	OffsetMinutes int     `yaml:"offset" json:"offset"`
	Value         float64 `yaml:"value" json:"value"`
}

// InsulinCurve selects the activity-curve shape used by the IOB calculator
// (spec.md §4.4).
type InsulinCurve string

const (
	CurveRapidActing InsulinCurve = "rapidActing"
	CurveUltraRapid  InsulinCurve = "ultraRapid"
)

// Profile is the full set of recognized therapy-profile options
// (spec.md §3).
type Profile struct {
	// Insulin action
	DIA                          float64 `yaml:"dia" json:"dia"` // hours, min 5
	MaxIOB                       float64 `yaml:"maxIob" json:"maxIob"`
	MaxBasal                     float64 `yaml:"maxBasal" json:"maxBasal"`
	MaxDailyBasal                float64 `yaml:"maxDailyBasal" json:"maxDailyBasal"`
	MaxDailySafetyMultiplier     float64 `yaml:"maxDailySafetyMultiplier" json:"maxDailySafetyMultiplier"`
	CurrentBasalSafetyMultiplier float64 `yaml:"currentBasalSafetyMultiplier" json:"currentBasalSafetyMultiplier"`

	// Schedules
	BasalSchedule     []ScheduleEntry `yaml:"basalSchedule" json:"basalSchedule"`
	ISFSchedule       []ScheduleEntry `yaml:"isfSchedule" json:"isfSchedule"`
	CarbRatioSchedule []ScheduleEntry `yaml:"carbRatioSchedule" json:"carbRatioSchedule"`

	// Targets
	MinBG                  float64 `yaml:"minBg" json:"minBg"`
	MaxBG                  float64 `yaml:"maxBg" json:"maxBg"`
	HalfBasalExerciseTarget float64 `yaml:"halfBasalExerciseTarget" json:"halfBasalExerciseTarget"`

	// Meal/COB
	MaxCOB                 float64 `yaml:"maxCOB" json:"maxCOB"`
	Min5mCarbImpact        float64 `yaml:"min5mCarbImpact" json:"min5mCarbImpact"`
	MaxMealAbsorptionTime  float64 `yaml:"maxMealAbsorptionTime" json:"maxMealAbsorptionTime"` // hours
	RemainingCarbsCap      float64 `yaml:"remainingCarbsCap" json:"remainingCarbsCap"`
	RemainingCarbsFraction float64 `yaml:"remainingCarbsFraction" json:"remainingCarbsFraction"`

	// SMB
	EnableSMBAlways           bool    `yaml:"enableSMBAlways" json:"enableSMBAlways"`
	EnableSMBWithCOB          bool    `yaml:"enableSMBWithCOB" json:"enableSMBWithCOB"`
	EnableSMBAfterCarbs       bool    `yaml:"enableSMBAfterCarbs" json:"enableSMBAfterCarbs"`
	EnableSMBWithTemptarget   bool    `yaml:"enableSMBWithTemptarget" json:"enableSMBWithTemptarget"`
	EnableSMBHighBg           bool    `yaml:"enableSMBHighBg" json:"enableSMBHighBg"`
	AllowSMBWithHighTemptarget bool   `yaml:"allowSMBWithHighTemptarget" json:"allowSMBWithHighTemptarget"`
	EnableSMBHighBgTarget     float64 `yaml:"enableSMBHighBgTarget" json:"enableSMBHighBgTarget"`
	SMBDeliveryRatio          float64 `yaml:"smbDeliveryRatio" json:"smbDeliveryRatio"`
	SMBIntervalMinutes        float64 `yaml:"smbInterval" json:"smbInterval"`
	MaxSMBBasalMinutes        float64 `yaml:"maxSMBBasalMinutes" json:"maxSMBBasalMinutes"`
	MaxUAMSMBBasalMinutes     float64 `yaml:"maxUAMSMBBasalMinutes" json:"maxUAMSMBBasalMinutes"`
	SMBScheduleStartMinutes   int     `yaml:"smbScheduleStartMinutes" json:"smbScheduleStartMinutes"`
	SMBScheduleEndMinutes     int     `yaml:"smbScheduleEndMinutes" json:"smbScheduleEndMinutes"`
	SMBScheduleEnabled        bool    `yaml:"smbScheduleEnabled" json:"smbScheduleEnabled"`

	// Dynamic ISF
	UseNewFormula           bool         `yaml:"useNewFormula" json:"useNewFormula"`
	Sigmoid                 bool         `yaml:"sigmoid" json:"sigmoid"`
	AdjustmentFactor        float64      `yaml:"adjustmentFactor" json:"adjustmentFactor"`
	AdjustmentFactorSigmoid float64      `yaml:"adjustmentFactorSigmoid" json:"adjustmentFactorSigmoid"`
	TDDAdjBasal             bool         `yaml:"tddAdjBasal" json:"tddAdjBasal"`
	UseCustomPeakTime       bool         `yaml:"useCustomPeakTime" json:"useCustomPeakTime"`
	InsulinPeakTime         float64      `yaml:"insulinPeakTime" json:"insulinPeakTime"`
	Curve                   InsulinCurve `yaml:"curve" json:"curve"`

	// Autosens
	AutosensMin                     float64 `yaml:"autosensMin" json:"autosensMin"`
	AutosensMax                     float64 `yaml:"autosensMax" json:"autosensMax"`
	SensitivityRaisesTarget         bool    `yaml:"sensitivityRaisesTarget" json:"sensitivityRaisesTarget"`
	ResistanceLowersTarget          bool    `yaml:"resistanceLowersTarget" json:"resistanceLowersTarget"`
	HighTemptargetRaisesSensitivity bool    `yaml:"highTemptargetRaisesSensitivity" json:"highTemptargetRaisesSensitivity"`
	LowTemptargetLowersSensitivity  bool    `yaml:"lowTemptargetLowersSensitivity" json:"lowTemptargetLowersSensitivity"`
	RewindResetsAutosens            bool    `yaml:"rewindResetsAutosens" json:"rewindResetsAutosens"`

	// Pump
	BolusIncrement float64 `yaml:"bolusIncrement" json:"bolusIncrement"`
	Model          string  `yaml:"model" json:"model"`

	// Misc safety
	SkipNeutralTemps          bool    `yaml:"skipNeutralTemps" json:"skipNeutralTemps"`
	SuspendZerosIob           bool    `yaml:"suspendZerosIob" json:"suspendZerosIob"`
	EnableUAM                 bool    `yaml:"enableUAM" json:"enableUAM"`
	NoisyCGMTargetMultiplier  float64 `yaml:"noisyCGMTargetMultiplier" json:"noisyCGMTargetMultiplier"`
	ThresholdSetting          float64 `yaml:"thresholdSetting" json:"thresholdSetting"`
	CarbsReqThreshold         float64 `yaml:"carbsReqThreshold" json:"carbsReqThreshold"`
	MaxDeltaBgThreshold       float64 `yaml:"maxDeltaBgThreshold" json:"maxDeltaBgThreshold"`
	WeightPercentage          float64 `yaml:"weightPercentage" json:"weightPercentage"`

	// Mutable current-tick fields. The reference oref0 algorithm mutates
	// profile.current_basal while iterating the COB/meal detector
	// (spec.md §9 design note); this field exists to preserve that
	// observable behavior rather than silently "fixing" it. See
	// DESIGN.md "Open Question (a)".
	CurrentBasal float64 `yaml:"-" json:"currentBasal"`
}

// Default returns a Profile populated with the oref0-standard defaults
// named throughout spec.md §3.
func Default() *Profile {
	return &Profile{
		DIA:                           5,
		MaxIOB:                        0,
		MaxBasal:                      3,
		MaxDailyBasal:                 1,
		MaxDailySafetyMultiplier:      3,
		CurrentBasalSafetyMultiplier:  4,
		MinBG:                         100,
		MaxBG:                         120,
		HalfBasalExerciseTarget:       160,
		MaxCOB:                        120,
		Min5mCarbImpact:               8,
		MaxMealAbsorptionTime:         6,
		RemainingCarbsCap:             90,
		RemainingCarbsFraction:        1.0,
		SMBDeliveryRatio:              0.5,
		SMBIntervalMinutes:            3,
		MaxSMBBasalMinutes:            30,
		MaxUAMSMBBasalMinutes:         30,
		EnableSMBHighBgTarget:         100,
		AdjustmentFactor:              0.5,
		AdjustmentFactorSigmoid:       0.5,
		InsulinPeakTime:               75,
		Curve:                         CurveRapidActing,
		AutosensMin:                   0.7,
		AutosensMax:                   1.2,
		BolusIncrement:                0.1,
		NoisyCGMTargetMultiplier:      1.3,
		ThresholdSetting:              60,
		CarbsReqThreshold:             1,
		MaxDeltaBgThreshold:           0.2,
	}
}
