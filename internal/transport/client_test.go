package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/KevinKickass/OpenMTS/internal/types"
	"go.uber.org/zap"
)

func newTestClient() (*Client, *MockController) {
	mock := NewMockController()
	return NewClient(mock, zap.NewNop()), mock
}

func TestPing(t *testing.T) {
	client, mock := newTestClient()
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	mock.SetPingReply(0x00)
	err := client.Ping(context.Background())
	var terr *types.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestWriteThenReadBack(t *testing.T) {
	client, _ := newTestClient()
	ctx := context.Background()

	values := []uint32{0, 1, 0x00010000, 0x01000040, 0xDEADBEEF, 0xFFFFFFFF}
	for module := uint8(0); module <= MaxModule; module += 5 {
		for _, register := range []uint16{0, 1, 2, 3} {
			addr := MustAddress(module, register, false)
			for _, v := range values {
				if err := client.Write(ctx, addr, v); err != nil {
					t.Fatalf("write %s: %v", addr, err)
				}
				got, err := client.Read(ctx, addr)
				if err != nil {
					t.Fatalf("read %s: %v", addr, err)
				}
				if got != v {
					t.Fatalf("read %s = 0x%08x, want 0x%08x", addr, got, v)
				}
			}
		}
	}
}

func TestWriteStatusErrors(t *testing.T) {
	client, mock := newTestClient()
	ctx := context.Background()
	addr := MustAddress(1, 2, false)

	mock.FailNext(StatusBusError)
	err := client.Write(ctx, addr, 1)
	var perr *types.ProtocolError
	if !errors.As(err, &perr) || perr.Kind != types.ProtocolBusError {
		t.Fatalf("expected bus error, got %v", err)
	}

	mock.FailNext(StatusCmdError)
	err = client.Write(ctx, addr, 1)
	if !errors.As(err, &perr) || perr.Kind != types.ProtocolUnrecognized {
		t.Fatalf("expected unrecognized command, got %v", err)
	}

	// the transport stays usable after a protocol error
	if err := client.Write(ctx, addr, 7); err != nil {
		t.Fatalf("write after error: %v", err)
	}
}

func TestReadStatusErrors(t *testing.T) {
	client, mock := newTestClient()
	addr := MustAddress(2, 1, true)

	mock.FailNext(StatusOverflow)
	_, err := client.Read(context.Background(), addr)
	var perr *types.ProtocolError
	if !errors.As(err, &perr) || perr.Kind != types.ProtocolOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestNoResponseIsTransportError(t *testing.T) {
	client, mock := newTestClient()
	mock.Close()

	err := client.Write(context.Background(), MustAddress(1, 0, false), 1)
	var terr *types.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestClosedClient(t *testing.T) {
	client, _ := newTestClient()
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := client.Read(context.Background(), MustAddress(1, 0, false))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCancelledContextSendsNothing(t *testing.T) {
	client, mock := newTestClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.Write(ctx, MustAddress(1, 0, false), 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.Requests() != 0 {
		t.Fatalf("controller saw %d requests", mock.Requests())
	}
}
