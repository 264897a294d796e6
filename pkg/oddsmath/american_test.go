package oddsmath_test

import (
	"math"
	"testing"

	"github.com/oddsdesk/oddsdesk/pkg/oddsmath"
)

func TestImpliedProbability(t *testing.T) {
	tests := []struct {
		name     string
		american int
		want     float64
	}{
		{"Even odds +100", 100, 0.50},
		{"Favorite -110", -110, 0.5238},
		{"Heavy favorite -200", -200, 0.6667},
		{"Underdog +150", 150, 0.40},
		{"Heavy underdog +300", 300, 0.25},
		{"Big favorite -10000", -10000, 0.9901},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oddsmath.ImpliedProbability(tt.american)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if math.Abs(got-tt.want) > 0.0001 {
				t.Errorf("ImpliedProbability(%d) = %f, want %f", tt.american, got, tt.want)
			}
		})
	}
}

func TestImpliedProbabilityBounds(t *testing.T) {
	// Any non-zero American odds must imply a probability strictly in (0, 1)
	for _, american := range []int{-100000, -5000, -110, -101, 100, 101, 110, 5000, 100000} {
		got, err := oddsmath.ImpliedProbability(american)
		if err != nil {
			t.Fatalf("unexpected error for %d: %v", american, err)
		}
		if got <= 0 || got >= 1 {
			t.Errorf("ImpliedProbability(%d) = %f, want value in (0, 1)", american, got)
		}
	}
}

func TestImpliedProbabilityZeroOdds(t *testing.T) {
	if _, err := oddsmath.ImpliedProbability(0); err == nil {
		t.Error("expected error for zero odds")
	}
}

func TestAmericanToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		american int
		want     float64
	}{
		{"Positive odds +150", 150, 2.5},
		{"Positive odds +200", 200, 3.0},
		{"Negative odds -110", -110, 1.909090909},
		{"Negative odds -150", -150, 1.666666667},
		{"Even odds +100", 100, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oddsmath.AmericanToDecimal(tt.american)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if math.Abs(got-tt.want) > 0.0001 {
				t.Errorf("AmericanToDecimal(%d) = %f, want %f", tt.american, got, tt.want)
			}
		})
	}
}

func TestProbabilityToAmerican(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		wantMin     int
		wantMax     int
	}{
		{"50% (even odds)", 0.50, 95, 105},
		{"52.38% (-110)", 0.5238, -115, -105},
		{"40% (+150)", 0.40, 145, 155},
		{"25% (+300)", 0.25, 290, 310},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oddsmath.ProbabilityToAmerican(tt.probability)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("ProbabilityToAmerican(%f) = %d, want between %d and %d", tt.probability, got, tt.wantMin, tt.wantMax)
			}
		})
	}
}
