package calibration

import (
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/stat"
)

// CWMeasurement is one raw CW calibration row.
type CWMeasurement struct {
	FrequencyMHz float64
	Sample
}

// ReadNoiseMeasurements parses a raw noise measurement file: a header line,
// then rows of attenuation, power, voltage.
func ReadNoiseMeasurements(r io.Reader) ([]Sample, error) {
	rows, err := readRows(r, 3)
	if err != nil {
		return nil, fmt.Errorf("noise measurements: %w", err)
	}

	samples := make([]Sample, len(rows))
	for i, row := range rows {
		samples[i] = Sample{Attenuation: row[0], Power: row[1], Voltage: row[2]}
	}
	return samples, nil
}

// ReadCWMeasurements parses a raw CW measurement file: a header line, then
// rows of frequency, attenuation, power, voltage.
func ReadCWMeasurements(r io.Reader) ([]CWMeasurement, error) {
	rows, err := readRows(r, 4)
	if err != nil {
		return nil, fmt.Errorf("cw measurements: %w", err)
	}

	measurements := make([]CWMeasurement, len(rows))
	for i, row := range rows {
		measurements[i] = CWMeasurement{
			FrequencyMHz: row[0],
			Sample:       Sample{Attenuation: row[1], Power: row[2], Voltage: row[3]},
		}
	}
	return measurements, nil
}

func columns(samples []Sample) (atten, volt, pwr []float64) {
	atten = make([]float64, len(samples))
	volt = make([]float64, len(samples))
	pwr = make([]float64, len(samples))
	for i, s := range samples {
		atten[i] = s.Attenuation
		volt[i] = s.Voltage
		pwr[i] = s.Power
	}
	return atten, volt, pwr
}

func toSamples(atten, volt, pwr []float64) []Sample {
	samples := make([]Sample, len(atten))
	for i := range atten {
		samples[i] = Sample{Attenuation: atten[i], Voltage: volt[i], Power: pwr[i]}
	}
	return samples
}

// BuildNoise smooths the voltage and power columns of a single-frequency
// measurement run independently.
func BuildNoise(samples []Sample) []Sample {
	atten, volt, pwr := columns(samples)
	return toSamples(atten, Smooth(volt), Smooth(pwr))
}

// BuildCW groups a multi-frequency run by exact frequency, smooths every
// group, then collapses the groups into one table by taking the per-row
// median across frequencies. All groups must have the same number of rows.
func BuildCW(measurements []CWMeasurement) ([]Sample, error) {
	if len(measurements) == 0 {
		return nil, fmt.Errorf("no cw measurements")
	}

	var order []float64
	groups := make(map[float64][]Sample)
	for _, m := range measurements {
		if _, ok := groups[m.FrequencyMHz]; !ok {
			order = append(order, m.FrequencyMHz)
		}
		groups[m.FrequencyMHz] = append(groups[m.FrequencyMHz], m.Sample)
	}

	n := len(groups[order[0]])
	var attens, volts, pwrs [][]float64
	for _, freq := range order {
		group := groups[freq]
		if len(group) != n {
			return nil, fmt.Errorf("frequency %g MHz has %d rows, %g MHz has %d",
				freq, len(group), order[0], n)
		}
		atten, volt, pwr := columns(group)
		attens = append(attens, atten)
		volts = append(volts, Smooth(volt))
		pwrs = append(pwrs, Smooth(pwr))
	}

	return toSamples(medianAcross(attens), medianAcross(volts), medianAcross(pwrs)), nil
}

// medianAcross returns the element-wise median of equally long vectors.
func medianAcross(vectors [][]float64) []float64 {
	out := make([]float64, len(vectors[0]))
	column := make([]float64, len(vectors))
	for i := range out {
		for j, v := range vectors {
			column[j] = v[i]
		}
		out[i] = median(column)
	}
	return out
}

// Average merges the measurements of two combiners taken over the same
// attenuation sweep. Voltage and power are averaged row by row; attenuation
// is taken from a.
func Average(a, b []Sample) ([]Sample, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("cannot average %d rows with %d rows", len(a), len(b))
	}

	out := make([]Sample, len(a))
	for i := range a {
		out[i] = Sample{
			Attenuation: a[i].Attenuation,
			Voltage:     stat.Mean([]float64{a[i].Voltage, b[i].Voltage}, nil),
			Power:       stat.Mean([]float64{a[i].Power, b[i].Power}, nil),
		}
	}
	return out, nil
}

// LoadNoiseMeasurements reads and smooths a raw noise measurement file.
func LoadNoiseMeasurements(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	samples, err := ReadNoiseMeasurements(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return BuildNoise(samples), nil
}

// LoadCWMeasurements reads, groups and smooths a raw CW measurement file.
func LoadCWMeasurements(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	measurements, err := ReadCWMeasurements(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return BuildCW(measurements)
}
