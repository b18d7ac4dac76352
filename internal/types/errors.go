package types

import (
	"errors"
	"fmt"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

var (
	ErrSynthUnavailable = errors.New("no synthesizer bound to module")
	ErrUnknownOutput    = errors.New("output module not available")
	ErrUnknownModule    = errors.New("module not available")
)

// TransportError means the link to the controller itself is unusable
// (ping mismatch, short read, closed port). The session should be aborted.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport %s failed", e.Op)
	}
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type ProtocolErrorKind int

const (
	ProtocolOverflow ProtocolErrorKind = iota + 1
	ProtocolBusError
	ProtocolUnrecognized
	ProtocolUnknown
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case ProtocolOverflow:
		return "buffer overflow"
	case ProtocolBusError:
		return "internal bus error"
	case ProtocolUnrecognized:
		return "command not recognized"
	default:
		return "unknown return value"
	}
}

// ProtocolError is a non-success status byte returned by the controller.
type ProtocolError struct {
	Op   string
	Kind ProtocolErrorKind
	Code byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("controller %s failed: %s (0x%02x)", e.Op, e.Kind, e.Code)
}

// VerificationError is a register read-back that differs from what was just
// written.
type VerificationError struct {
	Address uint16
	Want    uint32
	Got     uint32
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("register 0x%04x read-back mismatch: wrote 0x%08x, read 0x%08x",
		e.Address, e.Want, e.Got)
}

// RangeError is a request outside the calibrated or configured envelope.
// It is raised before anything is written to the hardware.
type RangeError struct {
	Quantity  string
	Requested float64
	Min       float64
	Max       float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %g out of range [%g, %g]", e.Quantity, e.Requested, e.Min, e.Max)
}

// SetpointMismatch is an attenuator that reads back a different value than
// the one computed for it.
type SetpointMismatch struct {
	Attenuator string
	Want       float64
	Got        float64
}

func (e *SetpointMismatch) Error() string {
	return fmt.Sprintf("cannot set %s attenuation: want %g dB, read back %g dB",
		e.Attenuator, e.Want, e.Got)
}

// FrequencyMismatch is a synthesizer that reports a different frequency than
// requested.
type FrequencyMismatch struct {
	Want float64
	Got  float64
}

func (e *FrequencyMismatch) Error() string {
	return fmt.Sprintf("could not set requested frequency %g MHz (synthesizer reports %g MHz)",
		e.Want, e.Got)
}
