package calibration

import (
	"fmt"
	"math"
	"sort"

	"github.com/KevinKickass/OpenMTS/internal/types"
	"gonum.org/v1/gonum/floats"
)

// Sample is one calibration point of a signal path.
type Sample struct {
	Attenuation float64 `json:"attenuation_db"`
	Voltage     float64 `json:"voltage"`
	Power       float64 `json:"power_dbm"`
}

// Table is the calibration of one signal path, ordered by attenuation.
// It is immutable once built and safe for concurrent readers.
type Table struct {
	name    string
	samples []Sample
	power   []float64
	voltage []float64
}

// NewTable copies samples, orders them by attenuation and indexes them.
func NewTable(name string, samples []Sample) (*Table, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("calibration table %s is empty", name)
	}

	t := &Table{
		name:    name,
		samples: make([]Sample, len(samples)),
		power:   make([]float64, len(samples)),
		voltage: make([]float64, len(samples)),
	}
	copy(t.samples, samples)
	sort.SliceStable(t.samples, func(i, j int) bool {
		return t.samples[i].Attenuation < t.samples[j].Attenuation
	})

	for i, s := range t.samples {
		if math.IsNaN(s.Attenuation) || math.IsNaN(s.Voltage) || math.IsNaN(s.Power) {
			return nil, fmt.Errorf("calibration table %s: row %d is not a number", name, i)
		}
		t.power[i] = s.Power
		t.voltage[i] = s.Voltage
	}

	return t, nil
}

func (t *Table) Name() string { return t.name }

func (t *Table) Len() int { return len(t.samples) }

// Samples returns a copy of the table rows.
func (t *Table) Samples() []Sample {
	out := make([]Sample, len(t.samples))
	copy(out, t.samples)
	return out
}

// PowerRange is the calibrated output envelope in dBm.
func (t *Table) PowerRange() (lo, hi float64) {
	return floats.Min(t.power), floats.Max(t.power)
}

// AttenuationFor returns the attenuation of the row whose measured power is
// closest to the request. Requests outside the table, and NaN, fail with a
// RangeError.
func (t *Table) AttenuationFor(powerDBm float64) (float64, error) {
	lo, hi := t.PowerRange()
	if math.IsNaN(powerDBm) || powerDBm < lo || powerDBm > hi {
		return 0, &types.RangeError{
			Quantity:  t.name + " power (dBm)",
			Requested: powerDBm,
			Min:       lo,
			Max:       hi,
		}
	}

	return t.samples[nearest(t.power, powerDBm)].Attenuation, nil
}

// PowerFor maps a detector voltage to the power of the closest row. Readings
// outside the table map to the nearest end.
func (t *Table) PowerFor(voltage float64) float64 {
	return t.samples[nearest(t.voltage, voltage)].Power
}

// nearest returns the first index with minimum |values[i] - target|.
func nearest(values []float64, target float64) int {
	dist := make([]float64, len(values))
	for i, v := range values {
		dist[i] = math.Abs(v - target)
	}
	return floats.MinIdx(dist)
}
