package models

import "time"

// TempBasal is the pump's currently-running temp basal, as reported by the
// collaborator (spec.md §3).
type TempBasal struct {
	Rate     float64
	Duration float64 // minutes
	Kind     string  // "absolute" or "percent"
}

// PredBGs holds the four parallel 4-hour forecast curves (spec.md §4.8).
type PredBGs struct {
	IOB []float64
	ZT  []float64
	COB []float64 `json:",omitempty"`
	UAM []float64 `json:",omitempty"`
}

// Determination is the engine's single output per tick (spec.md §3, §6).
type Determination struct {
	Rate             *float64 `json:"rate,omitempty"`
	Duration         *float64 `json:"duration,omitempty"`
	Units            *float64 `json:"units,omitempty"`
	EventualBG       float64  `json:"eventualBG"`
	MinPredBG        float64  `json:"minPredBG"`
	MinGuardBG       float64  `json:"minGuardBG"`
	IOB              float64  `json:"iob"`
	COB              float64  `json:"cob"`
	Predictions      PredBGs  `json:"predBGs"`
	Reason           string   `json:"reason"`
	DeliverAt        time.Time `json:"deliverAt"`
	CarbRatio        float64  `json:"carbRatio"`
	Threshold        float64  `json:"threshold"`
	SensitivityRatio float64  `json:"sensitivityRatio"`
	CurrentTarget    float64  `json:"current_target"`
	ExpectedDelta    float64  `json:"expectedDelta"`
	MinDelta         float64  `json:"minDelta"`
	CarbsReq         float64  `json:"carbsReq,omitempty"`
	BG               float64  `json:"bg"`
	ISF              float64  `json:"isf"`
	TDD              float64  `json:"tdd,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Received         bool     `json:"received"`
}

// ErrorJSON is the stable shape of an engine fatal-error response
// (spec.md §6).
type ErrorJSON struct {
	Error string `json:"error"`
}
