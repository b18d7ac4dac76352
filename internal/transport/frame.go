package transport

import (
	"encoding/binary"
	"fmt"

	"github.com/KevinKickass/OpenMTS/internal/types"
)

// Control codes
const (
	CtrlRead  byte = 0x01
	CtrlWrite byte = 0x02
	CtrlPing  byte = 0x08
)

// Return codes
const (
	StatusSuccess  byte = 0x01
	StatusOverflow byte = 0xFD // buffer overflow in the controller
	StatusBusError byte = 0xFE // internal bus error (slave timeout or other)
	StatusCmdError byte = 0xFF // command not recognized
)

// Address layout: module in bits 12-15, read flag in bit 2, register in the
// remaining low bits. A register with bit 2 set (4-7, 0xC-0xF, ...) would be
// indistinguishable from a read of register&^4 and cannot be addressed; the
// controller map only uses registers 0-3.
const (
	MaxModule    = 0x0F
	MaxRegister  = 0x0FFB
	readFlag     = 1 << 2
	moduleShift  = 12
	registerMask = 0x0FFF &^ readFlag
)

const (
	writeFrameLen    = 7
	readFrameLen     = 3
	readResponseLen  = 5
	writeResponseLen = 1
)

// Address is a packed register address as sent on the wire.
type Address uint16

// NewAddress packs module, register and read flag. The register must leave
// bit 2 clear since that bit carries the read flag.
func NewAddress(module uint8, register uint16, read bool) (Address, error) {
	if module > MaxModule {
		return 0, fmt.Errorf("module %d exceeds 4-bit range", module)
	}
	if register > MaxRegister || register&readFlag != 0 {
		return 0, fmt.Errorf("register 0x%x does not fit the register field", register)
	}
	addr := uint16(module)<<moduleShift | register
	if read {
		addr |= readFlag
	}
	return Address(addr), nil
}

// MustAddress is NewAddress for compile-time register maps.
func MustAddress(module uint8, register uint16, read bool) Address {
	addr, err := NewAddress(module, register, read)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) Module() uint8 { return uint8(a >> moduleShift) }

func (a Address) Register() uint16 { return uint16(a) & registerMask }

func (a Address) IsRead() bool { return uint16(a)&readFlag != 0 }

// WriteAddress returns the same register with the read flag cleared.
func (a Address) WriteAddress() Address { return a &^ readFlag }

func (a Address) String() string { return fmt.Sprintf("0x%04x", uint16(a)) }

// Frame is a single request to the controller.
type Frame struct {
	Control byte
	Address Address
	Data    uint32
}

// Encode serialises the request; address and data are little-endian.
func (f *Frame) Encode() []byte {
	switch f.Control {
	case CtrlWrite:
		frame := make([]byte, writeFrameLen)
		frame[0] = CtrlWrite
		binary.LittleEndian.PutUint16(frame[1:3], uint16(f.Address))
		binary.LittleEndian.PutUint32(frame[3:7], f.Data)
		return frame
	case CtrlRead:
		frame := make([]byte, readFrameLen)
		frame[0] = CtrlRead
		binary.LittleEndian.PutUint16(frame[1:3], uint16(f.Address))
		return frame
	default:
		return []byte{f.Control}
	}
}

// FrameLen returns the full request length implied by a control byte, or 0
// for an unknown control byte.
func FrameLen(control byte) int {
	switch control {
	case CtrlWrite:
		return writeFrameLen
	case CtrlRead:
		return readFrameLen
	case CtrlPing:
		return 1
	default:
		return 0
	}
}

// DecodeFrame parses a request as seen by the controller.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("frame too short: %d bytes", len(data))
	}

	want := FrameLen(data[0])
	if want == 0 {
		return nil, fmt.Errorf("invalid control byte: 0x%02x", data[0])
	}
	if len(data) < want {
		return nil, fmt.Errorf("frame too short: %d bytes, want %d", len(data), want)
	}

	frame := &Frame{Control: data[0]}
	if want > 1 {
		frame.Address = Address(binary.LittleEndian.Uint16(data[1:3]))
	}
	if frame.Control == CtrlWrite {
		frame.Data = binary.LittleEndian.Uint32(data[3:7])
	}

	return frame, nil
}

func PingRequest() *Frame {
	return &Frame{Control: CtrlPing}
}

func WriteRequest(addr Address, data uint32) *Frame {
	return &Frame{Control: CtrlWrite, Address: addr, Data: data}
}

func ReadRequest(addr Address) *Frame {
	return &Frame{Control: CtrlRead, Address: addr}
}

// CheckStatus maps a controller return code onto the error taxonomy.
func CheckStatus(op string, status byte) error {
	if status == StatusSuccess {
		return nil
	}

	kind := types.ProtocolUnknown
	switch status {
	case StatusOverflow:
		kind = types.ProtocolOverflow
	case StatusBusError:
		kind = types.ProtocolBusError
	case StatusCmdError:
		kind = types.ProtocolUnrecognized
	}

	return &types.ProtocolError{Op: op, Kind: kind, Code: status}
}

// ParseReadResponse checks the status byte and extracts the little-endian
// data word.
func ParseReadResponse(resp []byte) (uint32, error) {
	if len(resp) < readResponseLen {
		return 0, fmt.Errorf("incomplete read response: %d bytes", len(resp))
	}
	if err := CheckStatus("read", resp[0]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(resp[1:5]), nil
}
