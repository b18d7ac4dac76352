package devices

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/KevinKickass/OpenMTS/internal/synth"
	"github.com/KevinKickass/OpenMTS/internal/transport"
	"github.com/KevinKickass/OpenMTS/internal/types"
	"go.uber.org/zap"
)

func newTestModule(t *testing.T, number uint8, role Role, opts ...ModuleOption) (*Module, *transport.MockController) {
	t.Helper()
	mock := transport.NewMockController()
	client := transport.NewClient(mock, zap.NewNop())
	m, err := NewModule("test", number, role, client, zap.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	return m, mock
}

func expectWrites(t *testing.T, got []transport.WriteRecord, want []transport.WriteRecord) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d writes, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("write %d = {%s 0x%08x}, want {%s 0x%08x}",
				i, got[i].Address, got[i].Data, want[i].Address, want[i].Data)
		}
	}
}

func TestNewModuleRejectsNumber(t *testing.T) {
	for _, n := range []uint8{0, 16} {
		if _, err := NewModule("bad", n, RoleSource, nil, zap.NewNop()); err == nil {
			t.Fatalf("module number %d accepted", n)
		}
	}
}

func TestNoiseSourceSequence(t *testing.T) {
	m, mock := newTestModule(t, 1, RoleSource)

	if err := m.EnableNoiseSource(context.Background(), true); err != nil {
		t.Fatalf("EnableNoiseSource: %v", err)
	}

	expectWrites(t, mock.Writes(), []transport.WriteRecord{
		{Address: 0x1000, Data: 1},
		{Address: 0x1002, Data: 0x00012601},
		{Address: 0x1002, Data: 0x00002601},
		{Address: 0x1002, Data: 0x00012401},
		{Address: 0x1002, Data: 0x00002401},
		{Address: 0x1002, Data: 0x00013f01},
		{Address: 0x1002, Data: 0x00003f01},
	})

	// every write is read back
	if reads := len(mock.Reads()); reads != 7 {
		t.Fatalf("got %d reads, want 7", reads)
	}
}

func TestOutputSwitchesAreInverted(t *testing.T) {
	m, mock := newTestModule(t, 2, RoleSource)
	ctx := context.Background()

	if err := m.EnableNoiseOutput(ctx, true); err != nil {
		t.Fatalf("EnableNoiseOutput: %v", err)
	}
	expectWrites(t, mock.Writes(), []transport.WriteRecord{
		{Address: 0x2000, Data: 1},
		{Address: 0x2002, Data: 0x00012500},
		{Address: 0x2002, Data: 0x00002500},
	})

	mock.Reset()
	if err := m.EnableCWOutput(ctx, false); err != nil {
		t.Fatalf("EnableCWOutput: %v", err)
	}
	expectWrites(t, mock.Writes(), []transport.WriteRecord{
		{Address: 0x2000, Data: 1},
		{Address: 0x2002, Data: 0x00013e01},
		{Address: 0x2002, Data: 0x00003e01},
	})
}

func TestAttenuators(t *testing.T) {
	ctx := context.Background()

	t.Run("noise", func(t *testing.T) {
		m, mock := newTestModule(t, 1, RoleSource)
		if err := m.SetNoiseAtten(ctx, 10.5); err != nil {
			t.Fatalf("SetNoiseAtten: %v", err)
		}
		expectWrites(t, mock.Writes(), []transport.WriteRecord{
			{Address: 0x1000, Data: 2},
			{Address: 0x1003, Data: 0x100 + 21},
			{Address: 0x1003, Data: 21},
		})

		got, err := m.NoiseAtten(ctx)
		if err != nil {
			t.Fatalf("NoiseAtten: %v", err)
		}
		if got != 10.5 {
			t.Fatalf("NoiseAtten = %v, want 10.5", got)
		}
	})

	t.Run("cw", func(t *testing.T) {
		m, mock := newTestModule(t, 3, RoleSource)
		if err := m.SetCWAtten(ctx, 8.5); err != nil {
			t.Fatalf("SetCWAtten: %v", err)
		}
		expectWrites(t, mock.Writes(), []transport.WriteRecord{
			{Address: 0x3000, Data: 3},
			{Address: 0x3003, Data: 0x01000000 + 17<<16},
			{Address: 0x3003, Data: 17 << 16},
		})

		got, err := m.CWAtten(ctx)
		if err != nil {
			t.Fatalf("CWAtten: %v", err)
		}
		if got != 8.5 {
			t.Fatalf("CWAtten = %v, want 8.5", got)
		}
	})

	t.Run("combiner", func(t *testing.T) {
		m, _ := newTestModule(t, 4, RoleCombiner)
		if err := m.SetCombAtten(ctx, 0.7); err != nil {
			t.Fatalf("SetCombAtten: %v", err)
		}
		got, err := m.CombAtten(ctx)
		if err != nil {
			t.Fatalf("CombAtten: %v", err)
		}
		if got != 0.5 {
			t.Fatalf("CombAtten = %v, want the quantized 0.5", got)
		}
	})
}

func TestVerificationMismatchAborts(t *testing.T) {
	m, mock := newTestModule(t, 1, RoleSource)
	mock.Stick(transport.MustAddress(1, RegChannelSelect, false), 0)

	err := m.SetNoiseAtten(context.Background(), 5)
	var verr *types.VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	if verr.Address != 0x1000 || verr.Want != 2 || verr.Got != 0 {
		t.Fatalf("unexpected mismatch details: %+v", verr)
	}
	if n := len(mock.Writes()); n != 1 {
		t.Fatalf("sequence continued after mismatch: %d writes", n)
	}
}

func TestProtocolErrorAborts(t *testing.T) {
	m, mock := newTestModule(t, 1, RoleSource)
	mock.FailOn(transport.MustAddress(1, RegGPIO, false), transport.StatusBusError)

	err := m.EnableCWSource(context.Background(), true)
	var perr *types.ProtocolError
	if !errors.As(err, &perr) || perr.Kind != types.ProtocolBusError {
		t.Fatalf("expected bus error, got %v", err)
	}
	if n := len(mock.Writes()); n != 2 {
		t.Fatalf("got %d writes, want channel select plus the failed arm", n)
	}
}

func TestInit(t *testing.T) {
	m, mock := newTestModule(t, 5, RoleCombiner)

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	writes := mock.Writes()
	expectWrites(t, writes[:5], []transport.WriteRecord{
		{Address: 0x5000, Data: 0},
		{Address: 0x5001, Data: 0x00013000},
		{Address: 0x5001, Data: 0x00003000},
		{Address: 0x5001, Data: 0x00010800},
		{Address: 0x5001, Data: 0x00000800},
	})
	if len(writes) != 14 {
		t.Fatalf("got %d init writes, want 14", len(writes))
	}
	if last := writes[len(writes)-1]; last.Address != 0x5002 || last.Data != 0xf55 {
		t.Fatalf("last init write = {%s 0x%x}", last.Address, last.Data)
	}
}

func TestEnvironment(t *testing.T) {
	m, mock := newTestModule(t, 4, RoleCombiner)
	mock.QueueReads(transport.MustAddress(4, RegADC, true), 999, 1000, 2000)

	env, err := m.Environment(context.Background())
	if err != nil {
		t.Fatalf("Environment: %v", err)
	}
	if math.Abs(env.Temperature-1000*ADCVoltsPerCode) > 1e-12 {
		t.Fatalf("temperature = %v", env.Temperature)
	}
	if math.Abs(env.Power-2000*ADCVoltsPerCode) > 1e-12 {
		t.Fatalf("power = %v", env.Power)
	}

	expectWrites(t, mock.Writes(), []transport.WriteRecord{
		{Address: 0x4000, Data: 0},
		{Address: 0x4001, Data: 0x00013000},
		{Address: 0x4001, Data: 0x00003000},
		{Address: 0x4001, Data: 0x00010800},
		{Address: 0x4001, Data: 0x00000800},
		{Address: 0x4001, Data: 0x00010800},
		{Address: 0x4001, Data: 0x00000800},
	})
	reads := mock.Reads()
	if len(reads) != 4 || reads[0] != 0x4000 {
		t.Fatalf("reads = %v, want channel select read-back first", reads)
	}
	for _, addr := range reads[1:] {
		if addr != 0x4005 {
			t.Fatalf("unexpected read of %s", addr)
		}
	}
}

func TestEnvironmentChannelSelectMismatch(t *testing.T) {
	m, mock := newTestModule(t, 4, RoleCombiner)
	mock.Stick(transport.MustAddress(4, RegChannelSelect, false), 1)

	_, err := m.Environment(context.Background())
	var verr *types.VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	for _, w := range mock.Writes() {
		if w.Address == 0x4001 {
			t.Fatalf("ADC triggered after failed channel select")
		}
	}
	if n := len(mock.Reads()); n != 1 {
		t.Fatalf("%d reads, want only the channel select read-back", n)
	}
}

func TestSynthesizer(t *testing.T) {
	ctx := context.Background()

	t.Run("unavailable", func(t *testing.T) {
		m, mock := newTestModule(t, 1, RoleSource)
		if err := m.SetFrequency(ctx, 1000); !errors.Is(err, types.ErrSynthUnavailable) {
			t.Fatalf("expected ErrSynthUnavailable, got %v", err)
		}
		if _, err := m.Frequency(ctx); !errors.Is(err, types.ErrSynthUnavailable) {
			t.Fatalf("expected ErrSynthUnavailable, got %v", err)
		}
		if mock.Requests() != 0 {
			t.Fatalf("controller touched without a synthesizer")
		}
	})

	t.Run("select and set", func(t *testing.T) {
		s := synth.NewMock(137.5, 4400)
		m, mock := newTestModule(t, 3, RoleSource, WithSynthesizer(s))

		if err := m.SetFrequency(ctx, 1500); err != nil {
			t.Fatalf("SetFrequency: %v", err)
		}
		expectWrites(t, mock.Writes(), []transport.WriteRecord{
			{Address: 0x0000, Data: 3},
		})

		freq, err := m.Frequency(ctx)
		if err != nil {
			t.Fatalf("Frequency: %v", err)
		}
		if freq != 1500 {
			t.Fatalf("Frequency = %v", freq)
		}

		locked, err := m.LockStatus(ctx)
		if err != nil || !locked {
			t.Fatalf("LockStatus = %v, %v", locked, err)
		}
	})
}

func TestLockDetect(t *testing.T) {
	m, mock := newTestModule(t, 2, RoleSource)

	data, err := m.LockDetect(context.Background())
	if err != nil {
		t.Fatalf("LockDetect: %v", err)
	}
	if data != 0xa700 {
		t.Fatalf("LockDetect = 0x%x", data)
	}

	reads := mock.Reads()
	if last := reads[len(reads)-1]; last != 0x2006 {
		t.Fatalf("lock read from %s, want 0x2006", last)
	}
}
