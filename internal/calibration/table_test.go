package calibration

import (
	"errors"
	"math"
	"testing"

	"github.com/KevinKickass/OpenMTS/internal/types"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	var samples []Sample
	for i := 0; i <= 80; i++ {
		atten := float64(i) * 0.5
		samples = append(samples, Sample{
			Attenuation: atten,
			Voltage:     2.0 - atten*0.04,
			Power:       -20 - atten,
		})
	}
	table, err := NewTable("ucs noise", samples)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return table
}

func TestAttenuationForExactRow(t *testing.T) {
	table := testTable(t)

	for _, s := range table.Samples() {
		atten, err := table.AttenuationFor(s.Power)
		if err != nil {
			t.Fatalf("AttenuationFor(%v): %v", s.Power, err)
		}
		if atten != s.Attenuation {
			t.Fatalf("AttenuationFor(%v) = %v, want %v", s.Power, atten, s.Attenuation)
		}
	}

	atten, err := table.AttenuationFor(-30.2)
	if err != nil || atten != 10 {
		t.Fatalf("AttenuationFor(-30.2) = %v, %v", atten, err)
	}
}

func TestAttenuationForRange(t *testing.T) {
	table := testTable(t)
	lo, hi := table.PowerRange()
	if lo != -60 || hi != -20 {
		t.Fatalf("PowerRange = %v, %v", lo, hi)
	}

	for _, p := range []float64{-19.9, 0, -60.01, -100, math.Inf(1), math.Inf(-1), math.NaN()} {
		_, err := table.AttenuationFor(p)
		var rerr *types.RangeError
		if !errors.As(err, &rerr) {
			t.Fatalf("AttenuationFor(%v): expected RangeError, got %v", p, err)
		}
		sameRequest := rerr.Requested == p || (math.IsNaN(p) && math.IsNaN(rerr.Requested))
		if rerr.Min != lo || rerr.Max != hi || !sameRequest {
			t.Fatalf("unexpected range details %+v", rerr)
		}
	}
}

func TestPowerFor(t *testing.T) {
	table := testTable(t)

	if p := table.PowerFor(1.6); p != -30 {
		t.Fatalf("PowerFor(1.6) = %v", p)
	}
	// out of range readings map to the nearest end
	if p := table.PowerFor(5); p != -20 {
		t.Fatalf("PowerFor(5) = %v", p)
	}
	if p := table.PowerFor(-5); p != -60 {
		t.Fatalf("PowerFor(-5) = %v", p)
	}
}

func TestNewTable(t *testing.T) {
	if _, err := NewTable("empty", nil); err == nil {
		t.Fatalf("empty table accepted")
	}

	table, err := NewTable("unsorted", []Sample{
		{Attenuation: 2, Power: -12},
		{Attenuation: 0, Power: -10},
		{Attenuation: 1, Power: -11},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	samples := table.Samples()
	for i, s := range samples {
		if s.Attenuation != float64(i) {
			t.Fatalf("row %d has attenuation %v", i, s.Attenuation)
		}
	}

	samples[0].Power = 99
	if table.Samples()[0].Power != -10 {
		t.Fatalf("table mutated through Samples")
	}
}
