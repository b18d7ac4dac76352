// Package synth defines the frequency-synthesizer service the generator
// consumes for its CW sources.
package synth

import (
	"context"
	"fmt"
	"time"
)

// Synthesizer sets and reports a CW frequency in MHz.
type Synthesizer interface {
	SetFrequency(ctx context.Context, freqMHz float64) error
	Frequency(ctx context.Context) (float64, error)
	LockStatus(ctx context.Context) (bool, error)
}

// WithTimeout bounds every call on s. The wrapped synthesizer sees a
// context that expires after d.
func WithTimeout(s Synthesizer, d time.Duration) Synthesizer {
	if d <= 0 {
		return s
	}
	return &timeoutSynth{inner: s, timeout: d}
}

type timeoutSynth struct {
	inner   Synthesizer
	timeout time.Duration
}

func (t *timeoutSynth) SetFrequency(ctx context.Context, freqMHz float64) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return call(ctx, func(ctx context.Context) error {
		return t.inner.SetFrequency(ctx, freqMHz)
	})
}

func (t *timeoutSynth) Frequency(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	var freq float64
	err := call(ctx, func(ctx context.Context) error {
		var err error
		freq, err = t.inner.Frequency(ctx)
		return err
	})
	return freq, err
}

func (t *timeoutSynth) LockStatus(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	var locked bool
	err := call(ctx, func(ctx context.Context) error {
		var err error
		locked, err = t.inner.LockStatus(ctx)
		return err
	})
	return locked, err
}

// call runs fn and gives up when ctx expires, even if fn ignores ctx.
func call(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("synthesizer did not answer: %w", ctx.Err())
	}
}
