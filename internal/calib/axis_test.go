package calib

import (
	"math"
	"testing"
)

func TestAxisFind(t *testing.T) {
	ax := Axis{Name: "p", Edges: []float64{0, 1, 2.5, 3}}
	tests := []struct {
		x    float64
		want int
	}{
		{-0.1, -1},
		{0, 0},
		{0.999, 0},
		{1, 1},
		{2.49, 1},
		{2.5, 2},
		{2.999, 2},
		{3, 3},
		{10, 3},
	}
	for _, tt := range tests {
		if got := ax.Find(tt.x); got != tt.want {
			t.Errorf("Find(%v) = %d, want %d", tt.x, got, tt.want)
		}
	}
}

func TestAxisClamp(t *testing.T) {
	ax := Axis{Name: "eta", Edges: []float64{0, 1, 2, 4}}
	tests := []struct {
		name  string
		x     float64
		want  float64
		moved bool
	}{
		{"inside", 1.5, 1.5, false},
		{"at_min", 0, 0, false},
		{"underflow", -5, 0.01, true},
		{"nan", math.NaN(), 0.01, true},
		{"at_max", 4, 3.98, true},
		{"overflow", 40, 3.98, true},
		{"neg_inf", math.Inf(-1), 0.01, true},
		{"pos_inf", math.Inf(1), 3.98, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, moved := ax.Clamp(tt.x)
			if moved != tt.moved {
				t.Errorf("Clamp(%v) moved = %v, want %v", tt.x, moved, tt.moved)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Clamp(%v) = %v, want %v", tt.x, got, tt.want)
			}
			if bin := ax.Find(got); bin < 0 || bin >= ax.Bins() {
				t.Errorf("Clamp(%v) = %v lands in bin %d", tt.x, got, bin)
			}
		})
	}
}

func TestAxisBracket(t *testing.T) {
	ax := Axis{Edges: []float64{0, 1, 2, 3}}
	tests := []struct {
		x        float64
		wantLo   int
		wantFrac float64
	}{
		{0.1, 0, 0},
		{0.5, 0, 0},
		{1.0, 0, 0.5},
		{1.5, 1, 0},
		{2.0, 1, 0.5},
		{2.9, 2, 0},
	}
	for _, tt := range tests {
		lo, frac := ax.bracket(tt.x)
		if lo != tt.wantLo || math.Abs(frac-tt.wantFrac) > 1e-12 {
			t.Errorf("bracket(%v) = (%d, %v), want (%d, %v)", tt.x, lo, frac, tt.wantLo, tt.wantFrac)
		}
	}

	single := Axis{Edges: []float64{0, 10}}
	if lo, frac := single.bracket(7); lo != 0 || frac != 0 {
		t.Errorf("single-bin bracket = (%d, %v), want (0, 0)", lo, frac)
	}
}
