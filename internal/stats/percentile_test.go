package stats

import (
	"math"
	"testing"
)

func TestPercentile_Empty(t *testing.T) {
	for _, p := range []float64{0, 50, 95, 100} {
		if got := Percentile(nil, p); got != 0 {
			t.Errorf("Percentile(nil, %v) = %v, want 0", p, got)
		}
		if got := Percentile([]float64{}, p); got != 0 {
			t.Errorf("Percentile([], %v) = %v, want 0", p, got)
		}
	}
}

func TestPercentile_Bounds(t *testing.T) {
	cases := [][]float64{
		{7},
		{3, 1, 2},
		{10, -4, 2.5, 9, 9, 0.1},
		{100, 4, 3, 2, 1},
	}

	for _, values := range cases {
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, v := range values {
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
		if got := Percentile(values, 0); got != minV {
			t.Errorf("Percentile(%v, 0) = %v, want min %v", values, got, minV)
		}
		if got := Percentile(values, 100); got != maxV {
			t.Errorf("Percentile(%v, 100) = %v, want max %v", values, got, maxV)
		}
	}
}

func TestPercentile_Constant(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5, 5, 5}
	for _, p := range []float64{0, 1, 25, 50, 95, 99, 100} {
		if got := Percentile(values, p); got != 5 {
			t.Errorf("Percentile(const, %v) = %v, want 5", p, got)
		}
	}
}

func TestPercentile_NearestRank(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		// round(0.95*4) = round(3.8) = 4
		{"p95 over five picks the outlier", []float64{1, 2, 3, 4, 100}, 95, 100},
		{"p50 over five", []float64{5, 1, 4, 2, 3}, 50, 3},
		// 0.5*3 = 1.5 rounds to even index 2
		{"half rounds to even upward", []float64{10, 20, 30, 40}, 50, 30},
		// 0.25*2 = 0.5 rounds to even index 0
		{"half rounds to even downward", []float64{10, 20, 30}, 25, 10},
		{"p above 100 clamps", []float64{1, 2, 3}, 250, 3},
		{"negative p clamps", []float64{1, 2, 3}, -10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentile(tt.values, tt.p); got != tt.want {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.values, tt.p, got, tt.want)
			}
		})
	}
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Percentile(values, 95)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input was reordered: %v", values)
	}
}

func TestAverage(t *testing.T) {
	if got := Average(nil); got != 0 {
		t.Errorf("Average(nil) = %v, want 0", got)
	}
	if got := Average([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("Average = %v, want 2.5", got)
	}
	if got := Average([]float64{0.5}); got != 0.5 {
		t.Errorf("Average = %v, want 0.5", got)
	}
}
