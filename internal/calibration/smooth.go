// Package calibration converts between requested output power, attenuator
// setting and power-detector voltage using measured tables.
package calibration

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// OutlierSigma is the threshold, in standard deviations of the first
// differences, above which a step is treated as a glitch.
const OutlierSigma = 3.0

// Outliers returns the indices of defective samples in ascending order.
//
// A step is flagged when its first difference deviates from the mean
// difference by more than OutlierSigma population standard deviations. A
// rising step blames the sample after it, a falling step the sample before.
func Outliers(vector []float64) []int {
	if len(vector) < 2 {
		return nil
	}

	diff := make([]float64, len(vector)-1)
	floats.SubTo(diff, vector[1:], vector[:len(vector)-1])

	mean, std := stat.PopMeanStdDev(diff, nil)
	floats.AddConst(-mean, diff)
	threshold := OutlierSigma * std

	seen := make(map[int]bool)
	var idx []int
	for i, d := range diff {
		if math.Abs(d) <= threshold {
			continue
		}
		target := i
		if d > 0 {
			target = i + 1
		}
		if !seen[target] {
			seen[target] = true
			idx = append(idx, target)
		}
	}
	sort.Ints(idx)

	return idx
}

// Smooth returns a copy of vector with every outlier replaced. Repairs run
// in index order on the copy, so a later repair sees earlier ones:
//   - the first three samples take the value of the fourth,
//   - the last three take the value three positions back,
//   - everything else takes the median of the three samples on either side,
//     leaving the defective sample itself out of the window.
//
// A single pass; the input is never modified.
func Smooth(vector []float64) []float64 {
	out := make([]float64, len(vector))
	copy(out, vector)

	n := len(out)
	for _, idx := range Outliers(vector) {
		switch {
		case idx < 3:
			if n > 3 {
				out[idx] = out[3]
			}
		case idx >= n-3:
			out[idx] = out[idx-3]
		default:
			window := make([]float64, 0, 6)
			window = append(window, out[idx-3:idx]...)
			window = append(window, out[idx+1:idx+4]...)
			out[idx] = median(window)
		}
	}

	return out
}

// median of values, averaging the two middle samples for even lengths.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
