package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// WriteRecord is one write as seen by the controller emulator.
type WriteRecord struct {
	Address Address
	Data    uint32
}

// MockController emulates the MTS controller board behind a serial port. It
// decodes request frames, keeps a register file keyed by write address and
// answers with the controller's response layout. Used by tests and by the
// daemon's simulation mode.
type MockController struct {
	mu sync.Mutex

	in  bytes.Buffer
	out bytes.Buffer

	registers  map[Address]uint32
	readQueues map[Address][]uint32
	stuck      map[Address]uint32
	failOn     map[Address]byte
	failNext   byte
	pingReply  byte

	writes []WriteRecord
	reads  []Address
	pings  int
	closed bool
}

func NewMockController() *MockController {
	return &MockController{
		registers:  make(map[Address]uint32),
		readQueues: make(map[Address][]uint32),
		stuck:      make(map[Address]uint32),
		failOn:     make(map[Address]byte),
		pingReply:  CtrlPing,
	}
}

// Write receives request bytes from the host.
func (m *MockController) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.New("mock controller closed")
	}

	m.in.Write(p)
	m.process()
	return len(p), nil
}

// Read hands response bytes to the host. An empty response buffer reads as
// io.EOF, the same way a timed-out serial read surfaces.
func (m *MockController) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.out.Len() == 0 {
		return 0, io.EOF
	}
	return m.out.Read(p)
}

func (m *MockController) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockController) process() {
	for m.in.Len() > 0 {
		pending := m.in.Bytes()
		want := FrameLen(pending[0])
		if want == 0 {
			m.in.Next(1)
			m.out.WriteByte(StatusCmdError)
			continue
		}
		if len(pending) < want {
			return
		}

		frame, _ := DecodeFrame(m.in.Next(want))
		m.handle(frame)
	}
}

func (m *MockController) handle(frame *Frame) {
	switch frame.Control {
	case CtrlPing:
		m.pings++
		m.out.WriteByte(m.pingReply)

	case CtrlWrite:
		m.writes = append(m.writes, WriteRecord{Address: frame.Address, Data: frame.Data})
		if status := m.takeFailure(frame.Address); status != StatusSuccess {
			m.out.WriteByte(status)
			return
		}
		if value, ok := m.stuck[frame.Address]; ok {
			m.registers[frame.Address] = value
		} else {
			m.registers[frame.Address] = frame.Data
		}
		m.out.WriteByte(StatusSuccess)

	case CtrlRead:
		m.reads = append(m.reads, frame.Address)
		response := make([]byte, readResponseLen)
		if status := m.takeFailure(frame.Address); status != StatusSuccess {
			response[0] = status
			m.out.Write(response)
			return
		}
		response[0] = StatusSuccess
		binary.LittleEndian.PutUint32(response[1:], m.readValue(frame.Address))
		m.out.Write(response)
	}
}

func (m *MockController) takeFailure(addr Address) byte {
	if m.failNext != 0 {
		status := m.failNext
		m.failNext = 0
		return status
	}
	if status, ok := m.failOn[addr]; ok {
		return status
	}
	return StatusSuccess
}

func (m *MockController) readValue(addr Address) uint32 {
	if queue := m.readQueues[addr]; len(queue) > 0 {
		m.readQueues[addr] = queue[1:]
		return queue[0]
	}
	if value, ok := m.registers[addr]; ok {
		return value
	}
	return m.registers[addr.WriteAddress()]
}

// SetRegister presets a register value.
func (m *MockController) SetRegister(addr Address, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registers[addr] = value
}

// Register returns the current register value.
func (m *MockController) Register(addr Address) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registers[addr]
}

// QueueReads makes the next reads of addr return values in order.
func (m *MockController) QueueReads(addr Address, values ...uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readQueues[addr] = append(m.readQueues[addr], values...)
}

// Stick makes writes to addr latch value instead of the written data.
func (m *MockController) Stick(addr Address, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stuck[addr] = value
}

// FailNext answers the next read or write with status.
func (m *MockController) FailNext(status byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = status
}

// FailOn answers every read and write of addr with status.
func (m *MockController) FailOn(addr Address, status byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[addr] = status
}

// SetPingReply changes the byte echoed to a ping.
func (m *MockController) SetPingReply(b byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingReply = b
}

// Writes returns a copy of all writes received so far.
func (m *MockController) Writes() []WriteRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WriteRecord(nil), m.writes...)
}

// Reads returns a copy of all read addresses received so far.
func (m *MockController) Reads() []Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Address(nil), m.reads...)
}

// Requests counts every frame received, pings included.
func (m *MockController) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes) + len(m.reads) + m.pings
}

// Reset forgets the request history but keeps register contents.
func (m *MockController) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
	m.reads = nil
	m.pings = 0
}
