package synth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type slowSynth struct {
	Mock
	delay time.Duration
}

func (s *slowSynth) Frequency(ctx context.Context) (float64, error) {
	time.Sleep(s.delay)
	return 100, nil
}

func TestMockRange(t *testing.T) {
	m := NewMock(100, 500)
	ctx := context.Background()

	if err := m.SetFrequency(ctx, 220); err != nil {
		t.Fatalf("set: %v", err)
	}
	freq, err := m.Frequency(ctx)
	if err != nil || freq != 220 {
		t.Fatalf("frequency = %v, %v", freq, err)
	}
	if err := m.SetFrequency(ctx, 600); err == nil {
		t.Fatalf("out of range frequency accepted")
	}
}

func TestWithTimeout(t *testing.T) {
	s := WithTimeout(&slowSynth{delay: 200 * time.Millisecond}, 20*time.Millisecond)
	_, err := s.Frequency(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	fast := WithTimeout(NewMock(100, 500), time.Second)
	if err := fast.SetFrequency(context.Background(), 300); err != nil {
		t.Fatalf("set: %v", err)
	}
	locked, err := fast.LockStatus(context.Background())
	if err != nil || !locked {
		t.Fatalf("lock = %v, %v", locked, err)
	}
}
