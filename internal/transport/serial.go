package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"
)

type SerialConfig struct {
	Port        string
	BaudRate    uint
	ReadTimeout time.Duration
}

// OpenSerial opens the controller's serial line as 8N1. The read timeout is
// handed to the driver as an inter-character timeout in 100 ms units.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	timeoutMs := uint(cfg.ReadTimeout / time.Millisecond)
	if timeoutMs > 0 {
		timeoutMs = ((timeoutMs + 99) / 100) * 100
	}
	if timeoutMs > 25500 {
		timeoutMs = 25500
	}

	options := serial.OpenOptions{
		PortName:              cfg.Port,
		BaudRate:              cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: timeoutMs,
		MinimumReadSize:       0,
	}
	if timeoutMs == 0 {
		options.MinimumReadSize = 1
	}

	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Port, err)
	}

	return port, nil
}

// Dial opens the serial port and wraps it in a Client.
func Dial(cfg SerialConfig, logger *zap.Logger) (*Client, error) {
	port, err := OpenSerial(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("Controller port open",
		zap.String("port", cfg.Port),
		zap.Uint("baud_rate", cfg.BaudRate))

	return NewClient(port, logger), nil
}
