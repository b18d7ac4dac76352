package attenuation

import (
	"math"
	"testing"
)

func TestSplitScenarios(t *testing.T) {
	cases := []struct {
		atten, max float64
		src, cmb   float64
	}{
		{40.0, 31.5, 31.5, 8.5},
		{10.0, 31.5, 10.0, 0.0},
		{31.5, 31.5, 31.5, 0.0},
		{0.0, 31.5, 0.0, 0.0},
		{63.0, 31.5, 63.0, 0.0},
	}
	for _, tc := range cases {
		src, cmb := Split(tc.atten, tc.max)
		if math.Abs(src-tc.src) > 1e-9 || math.Abs(cmb-tc.cmb) > 1e-9 {
			t.Fatalf("Split(%v, %v) = (%v, %v), want (%v, %v)", tc.atten, tc.max, src, cmb, tc.src, tc.cmb)
		}
	}
}

func TestSplitConservation(t *testing.T) {
	for _, max := range []float64{0.5, 10, 15.5, 31.5} {
		for atten := 0.0; atten <= 100; atten += 0.25 {
			src, cmb := Split(atten, max)
			if math.Abs(src+cmb-atten) > 1e-9 {
				t.Fatalf("Split(%v, %v): %v + %v != %v", atten, max, src, cmb, atten)
			}
			if src < 0 || cmb < 0 {
				t.Fatalf("Split(%v, %v) produced a negative share (%v, %v)", atten, max, src, cmb)
			}
			if atten >= max && atten < 2*max && src > max+1e-9 {
				t.Fatalf("Split(%v, %v): source share %v above max", atten, max, src)
			}
		}
	}
}

func TestStep(t *testing.T) {
	cases := []struct {
		atten float64
		step  uint32
	}{
		{0, 0},
		{0.5, 1},
		{0.7, 1},
		{10, 20},
		{31.5, 63},
		{-3, 0},
	}
	for _, tc := range cases {
		if got := Step(tc.atten); got != tc.step {
			t.Fatalf("Step(%v) = %d, want %d", tc.atten, got, tc.step)
		}
	}

	if q := Quantize(10.3); q != 10.0 {
		t.Fatalf("Quantize(10.3) = %v", q)
	}
	if !Equal(FromStep(Step(8.5)), 8.5) {
		t.Fatalf("8.5 dB does not survive a step round trip")
	}
}
