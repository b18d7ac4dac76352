package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/KevinKickass/OpenMTS/internal/types"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("port closed")

// Client talks to the MTS controller board. Every call is one blocking
// request/response round trip; calls are serialised on the client mutex.
// Nothing is retried here.
type Client struct {
	port   io.ReadWriteCloser
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

func NewClient(port io.ReadWriteCloser, logger *zap.Logger) *Client {
	return &Client{
		port:   port,
		logger: logger,
	}
}

// Close releases the port
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.logger.Debug("Closing controller port")
	return c.port.Close()
}

// roundTrip sends a request and reads exactly respLen bytes back.
func (c *Client) roundTrip(ctx context.Context, op string, request *Frame, respLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, &types.TransportError{Op: op, Err: ErrClosed}
	}

	if _, err := c.port.Write(request.Encode()); err != nil {
		return nil, &types.TransportError{Op: op, Err: fmt.Errorf("write failed: %w", err)}
	}

	response := make([]byte, respLen)
	if _, err := io.ReadFull(c.port, response); err != nil {
		return nil, &types.TransportError{Op: op, Err: fmt.Errorf("read failed: %w", err)}
	}

	return response, nil
}

// Ping checks that the controller echoes the ping control byte.
func (c *Client) Ping(ctx context.Context) error {
	response, err := c.roundTrip(ctx, "ping", PingRequest(), 1)
	if err != nil {
		return err
	}

	if response[0] != CtrlPing {
		return &types.TransportError{
			Op:  "ping",
			Err: fmt.Errorf("could not ping controller: echoed 0x%02x", response[0]),
		}
	}

	return nil
}

// Write stores a 32-bit word at addr.
func (c *Client) Write(ctx context.Context, addr Address, data uint32) error {
	c.logger.Debug("Register write",
		zap.Stringer("address", addr),
		zap.String("data", fmt.Sprintf("0x%08x", data)))

	response, err := c.roundTrip(ctx, "write", WriteRequest(addr, data), writeResponseLen)
	if err != nil {
		return err
	}

	return CheckStatus("write", response[0])
}

// Read fetches the 32-bit word at addr.
func (c *Client) Read(ctx context.Context, addr Address) (uint32, error) {
	response, err := c.roundTrip(ctx, "read", ReadRequest(addr), readResponseLen)
	if err != nil {
		return 0, err
	}

	data, err := ParseReadResponse(response)
	if err != nil {
		return 0, err
	}

	c.logger.Debug("Register read",
		zap.Stringer("address", addr),
		zap.String("data", fmt.Sprintf("0x%08x", data)))

	return data, nil
}
