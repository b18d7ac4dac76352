package calibration

import (
	"math"
	"strconv"
	"strings"
	"testing"
)

func TestBuildNoise(t *testing.T) {
	var raw strings.Builder
	raw.WriteString("Attenuation, Power, Voltage\n")
	for i := 0; i < 20; i++ {
		pwr := -20 - float64(i)
		if i == 10 {
			pwr = 5 // detector glitch
		}
		volt := 2 - float64(i)*0.0625
		raw.WriteString(strings.Join([]string{
			ftoa(float64(i)), ftoa(pwr), ftoa(volt),
		}, ",") + "\n")
	}

	samples, err := ReadNoiseMeasurements(strings.NewReader(raw.String()))
	if err != nil {
		t.Fatalf("ReadNoiseMeasurements: %v", err)
	}
	if samples[10].Power != 5 {
		t.Fatalf("columns swapped: %+v", samples[10])
	}

	// median of -27, -28, -29, -31, -32, -33
	built := BuildNoise(samples)
	if built[10].Power != -30 {
		t.Fatalf("glitch not repaired: %v", built[10].Power)
	}
	if built[10].Attenuation != 10 {
		t.Fatalf("attenuation column altered")
	}
	for i, s := range built {
		if s.Voltage != samples[i].Voltage {
			t.Fatalf("clean voltage column modified at row %d", i)
		}
	}
}

func TestBuildCW(t *testing.T) {
	var measurements []CWMeasurement
	for _, freq := range []float64{1000, 1500, 2000} {
		for i := 0; i < 12; i++ {
			measurements = append(measurements, CWMeasurement{
				FrequencyMHz: freq,
				Sample: Sample{
					Attenuation: float64(i),
					Power:       -10 - float64(i) - freq/1000,
					Voltage:     1,
				},
			})
		}
	}

	samples, err := BuildCW(measurements)
	if err != nil {
		t.Fatalf("BuildCW: %v", err)
	}
	if len(samples) != 12 {
		t.Fatalf("got %d rows", len(samples))
	}
	// the median across 1, 1.5 and 2 GHz is the 1.5 GHz curve
	for i, s := range samples {
		want := -10 - float64(i) - 1.5
		if math.Abs(s.Power-want) > 1e-12 || s.Attenuation != float64(i) {
			t.Fatalf("row %d = %+v, want power %v", i, s, want)
		}
	}

	if _, err := BuildCW(measurements[:20]); err == nil {
		t.Fatalf("ragged groups accepted")
	}
	if _, err := BuildCW(nil); err == nil {
		t.Fatalf("empty input accepted")
	}
}

func TestReadCWMeasurements(t *testing.T) {
	doc := "Frequency, Attenuation, Power, Voltage\n1000, 0.5, -11, 1.2\n"
	m, err := ReadCWMeasurements(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadCWMeasurements: %v", err)
	}
	if m[0].FrequencyMHz != 1000 || m[0].Attenuation != 0.5 || m[0].Power != -11 || m[0].Voltage != 1.2 {
		t.Fatalf("unexpected row %+v", m[0])
	}
}

func TestAverage(t *testing.T) {
	a := []Sample{{0, 1.0, -20}, {1, 0.9, -21}}
	b := []Sample{{0.1, 3.0, -22}, {1.1, 1.1, -23}}

	avg, err := Average(a, b)
	if err != nil {
		t.Fatalf("Average: %v", err)
	}
	if avg[0] != (Sample{0, 2.0, -21}) || avg[1] != (Sample{1, 1.0, -22}) {
		t.Fatalf("Average = %+v", avg)
	}

	if _, err := Average(a, b[:1]); err == nil {
		t.Fatalf("length mismatch accepted")
	}
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
