package synth

import (
	"context"
	"fmt"
	"sync"
)

// Mock is an in-memory synthesizer with a VCO range.
type Mock struct {
	mu      sync.Mutex
	freqMHz float64
	minMHz  float64
	maxMHz  float64
	locked  bool
	calls   int
	// Offset is added to every reported frequency, to emulate a synthesizer
	// that lands next to the requested value.
	Offset float64
}

func NewMock(minMHz, maxMHz float64) *Mock {
	return &Mock{
		freqMHz: minMHz,
		minMHz:  minMHz,
		maxMHz:  maxMHz,
		locked:  true,
	}
}

func (m *Mock) SetFrequency(ctx context.Context, freqMHz float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if freqMHz < m.minMHz || freqMHz > m.maxMHz {
		return fmt.Errorf("frequency %g MHz outside VCO range [%g, %g]", freqMHz, m.minMHz, m.maxMHz)
	}
	m.freqMHz = freqMHz
	return nil
}

func (m *Mock) Frequency(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.freqMHz + m.Offset, nil
}

func (m *Mock) LockStatus(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.locked, nil
}

// SetLocked changes the reported lock state.
func (m *Mock) SetLocked(locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = locked
}

// Calls counts all calls made on the mock.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
