// Package attenuation holds the step arithmetic shared by the source and
// combiner attenuators.
package attenuation

import "math"

// StepDB is the hardware resolution of every attenuator.
const StepDB = 0.5

// Epsilon is the tolerance used when comparing a read-back attenuation with
// its quantized target.
const Epsilon = 1e-9

// Step converts an attenuation in dB to the integer step the hardware takes.
// Values are truncated toward zero.
func Step(atten float64) uint32 {
	if atten <= 0 {
		return 0
	}
	return uint32(math.Floor(atten / StepDB))
}

// FromStep converts a hardware step back to dB.
func FromStep(step uint32) float64 {
	return float64(step) * StepDB
}

// Quantize returns the attenuation the hardware will actually apply for a
// requested value.
func Quantize(atten float64) float64 {
	return FromStep(Step(atten))
}

// Equal compares two attenuations within Epsilon.
func Equal(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

// Split divides a total attenuation between a source attenuator and the
// combiner attenuator behind it. The source takes the largest multiple of
// maxAtten that is not above atten; the combiner takes the remainder. Below
// maxAtten everything goes to the source.
//
// Neither share is clamped to its attenuator's range.
func Split(atten, maxAtten float64) (src, cmb float64) {
	if maxAtten <= 0 {
		return atten, 0
	}

	remainder := math.Mod(atten, maxAtten)
	if atten-remainder > 0 {
		src = atten - remainder
		cmb = atten - src
		return src, cmb
	}

	return atten, 0
}
