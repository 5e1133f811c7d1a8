package jsdecimal

import "testing"

func TestJSRound(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"half away from zero positive", 0.5, 1},
		{"half toward zero negative", -0.5, 0},
		{"negative below half", -1.5, -1},
		{"ordinary positive", 2.4, 2},
		{"ordinary negative", -2.4, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JSRound(tt.in); got != tt.want {
				t.Errorf("JSRound(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		name  string
		in    float64
		scale int
		want  float64
	}{
		{"iob scale 3", 1.23456, 3, 1.235},
		{"activity scale 4", 0.123456, 4, 0.1235},
		{"scale 0", 2.5, 0, 3},
		{"negative scale 2", -1.005, 2, -1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round(tt.in, tt.scale); got != tt.want {
				t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.scale, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Errorf("Clamp(5,0,3) = %v, want 3", got)
	}
	if got := Clamp(-1, 0, 3); got != 0 {
		t.Errorf("Clamp(-1,0,3) = %v, want 0", got)
	}
	if got := Clamp(2, 0, 3); got != 2 {
		t.Errorf("Clamp(2,0,3) = %v, want 2", got)
	}
}
