package devices

import (
	"context"
	"fmt"

	"github.com/KevinKickass/OpenMTS/internal/attenuation"
	"github.com/KevinKickass/OpenMTS/internal/synth"
	"github.com/KevinKickass/OpenMTS/internal/transport"
	"github.com/KevinKickass/OpenMTS/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterBus is the part of the transport a module sequences over.
type RegisterBus interface {
	Write(ctx context.Context, addr transport.Address, data uint32) error
	Read(ctx context.Context, addr transport.Address) (uint32, error)
}

type Role int

const (
	RoleSource Role = iota + 1
	RoleCombiner
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleCombiner:
		return "combiner"
	default:
		return "unknown"
	}
}

// Module is one addressable register bank on the controller. Every logical
// action is a sequence of verified writes; a failure stops the sequence and
// leaves the hardware wherever the last successful write put it.
//
// Module is not safe for concurrent use. The caller serializes access.
type Module struct {
	ID        uuid.UUID
	Name      string
	Number    uint8
	Role      Role
	Available bool
	Bounds    types.Bounds

	bus    RegisterBus
	synth  synth.Synthesizer
	logger *zap.Logger
}

type ModuleOption func(*Module)

// WithSynthesizer binds a frequency synthesizer to the module.
func WithSynthesizer(s synth.Synthesizer) ModuleOption {
	return func(m *Module) { m.synth = s }
}

func WithBounds(b types.Bounds) ModuleOption {
	return func(m *Module) { m.Bounds = b }
}

func NewModule(name string, number uint8, role Role, bus RegisterBus, logger *zap.Logger, opts ...ModuleOption) (*Module, error) {
	if number == 0 || number > transport.MaxModule {
		return nil, fmt.Errorf("module %s: number %d out of range [1, %d]", name, number, transport.MaxModule)
	}

	m := &Module{
		ID:        uuid.New(),
		Name:      name,
		Number:    number,
		Role:      role,
		Available: true,
		bus:       bus,
		logger:    logger.With(zap.String("module", name), zap.Uint8("number", number)),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// HasSynthesizer reports whether frequency operations are possible.
func (m *Module) HasSynthesizer() bool {
	return m.synth != nil
}

func (m *Module) address(register uint16, read bool) transport.Address {
	// Module numbers are validated in NewModule and registers come from the
	// catalogue, so packing cannot fail here.
	return transport.MustAddress(m.Number, register, read)
}

// writeVerify writes data and reads the same address back.
func (m *Module) writeVerify(ctx context.Context, addr transport.Address, data uint32) error {
	if err := m.bus.Write(ctx, addr, data); err != nil {
		return err
	}

	got, err := m.bus.Read(ctx, addr)
	if err != nil {
		return err
	}
	if got != data {
		m.logger.Warn("Register read-back mismatch",
			zap.Stringer("address", addr),
			zap.String("wrote", fmt.Sprintf("0x%08x", data)),
			zap.String("read", fmt.Sprintf("0x%08x", got)))
		return &types.VerificationError{Address: uint16(addr), Want: data, Got: got}
	}

	return nil
}

// ChannelSelect points the module's internal mux at a sub-device.
func (m *Module) ChannelSelect(ctx context.Context, channel uint32) error {
	return m.writeVerify(ctx, m.address(RegChannelSelect, false), channel)
}

// runCommands arms and commits every command in order. The arm write carries
// the set mask, the commit write drops it so the toggle bit is pulsed.
func (m *Module) runCommands(ctx context.Context, register uint16, mask uint32, commands []uint32, bit uint32) error {
	addr := m.address(register, false)
	for _, cmd := range commands {
		if err := m.writeVerify(ctx, addr, mask|cmd|bit); err != nil {
			return fmt.Errorf("arm command 0x%04x: %w", cmd, err)
		}
		if err := m.writeVerify(ctx, addr, cmd|bit); err != nil {
			return fmt.Errorf("commit command 0x%04x: %w", cmd, err)
		}
	}
	return nil
}

// Init brings the ADC and the GPIO expander out of reset.
func (m *Module) Init(ctx context.Context) error {
	for _, dev := range Devices {
		m.logger.Debug("Initialising device", zap.String("device", dev.Name))

		if err := m.ChannelSelect(ctx, dev.Channel); err != nil {
			return fmt.Errorf("init %s on %s: %w", dev.Name, m.Name, err)
		}
		if err := m.runCommands(ctx, dev.Register, dev.SetMask, dev.Init, 0); err != nil {
			return fmt.Errorf("init %s on %s: %w", dev.Name, m.Name, err)
		}
	}
	return nil
}

func (m *Module) setSwitch(ctx context.Context, spec types.ComponentSpec, level bool) error {
	var bit uint32
	if level {
		bit = 1
	}

	m.logger.Debug("Switching component",
		zap.String("component", spec.Name),
		zap.Bool("level", level))

	if err := m.ChannelSelect(ctx, spec.Channel); err != nil {
		return fmt.Errorf("%s on %s: %w", spec.Name, m.Name, err)
	}
	if err := m.runCommands(ctx, spec.Register, spec.SetMask, spec.Commands, bit); err != nil {
		return fmt.Errorf("%s on %s: %w", spec.Name, m.Name, err)
	}
	return nil
}

// EnableNoiseSource powers the noise diode on or off.
func (m *Module) EnableNoiseSource(ctx context.Context, enable bool) error {
	return m.setSwitch(ctx, NoiseSource, enable)
}

// EnableNoiseOutput opens or closes the noise path. The switch blocks the
// signal when driven high, so the level is the inverse of enable.
func (m *Module) EnableNoiseOutput(ctx context.Context, enable bool) error {
	return m.setSwitch(ctx, NoiseSwitch, !enable)
}

func (m *Module) EnableCWSource(ctx context.Context, enable bool) error {
	return m.setSwitch(ctx, CWSource, enable)
}

// EnableCWOutput opens or closes the CW path. Inverted like the noise switch.
func (m *Module) EnableCWOutput(ctx context.Context, enable bool) error {
	return m.setSwitch(ctx, CWSwitch, !enable)
}

// EnablePowerSensor powers the combiner's power/temperature detector.
func (m *Module) EnablePowerSensor(ctx context.Context, enable bool) error {
	return m.setSwitch(ctx, PowerSwitch, enable)
}

// LockDetect latches the synthesizer lock-detect line into the GPIO
// expander and returns the raw expander read-back.
func (m *Module) LockDetect(ctx context.Context) (uint32, error) {
	if err := m.setSwitch(ctx, LockDetect, false); err != nil {
		return 0, err
	}
	return m.bus.Read(ctx, m.address(LockDetect.Register, true))
}

func (m *Module) setAttenuator(ctx context.Context, spec types.ComponentSpec, atten float64) error {
	step := attenuation.Step(atten)
	value := step << spec.Placement.Shift()

	m.logger.Debug("Setting attenuator",
		zap.String("component", spec.Name),
		zap.Float64("atten_db", atten),
		zap.Uint32("step", step))

	if err := m.ChannelSelect(ctx, spec.Channel); err != nil {
		return fmt.Errorf("%s on %s: %w", spec.Name, m.Name, err)
	}

	addr := m.address(spec.Register, false)
	if err := m.writeVerify(ctx, addr, spec.SetMask+value); err != nil {
		return fmt.Errorf("%s on %s: %w", spec.Name, m.Name, err)
	}
	if err := m.writeVerify(ctx, addr, value); err != nil {
		return fmt.Errorf("%s on %s: %w", spec.Name, m.Name, err)
	}
	return nil
}

// getAttenuator reads the attenuator register without selecting a channel.
func (m *Module) getAttenuator(ctx context.Context, spec types.ComponentSpec) (float64, error) {
	data, err := m.bus.Read(ctx, m.address(spec.Register, false))
	if err != nil {
		return 0, fmt.Errorf("%s on %s: %w", spec.Name, m.Name, err)
	}
	return attenuation.FromStep(data >> spec.Placement.Shift()), nil
}

func (m *Module) SetNoiseAtten(ctx context.Context, atten float64) error {
	return m.setAttenuator(ctx, NoiseAttenuator, atten)
}

func (m *Module) NoiseAtten(ctx context.Context) (float64, error) {
	return m.getAttenuator(ctx, NoiseAttenuator)
}

func (m *Module) SetCWAtten(ctx context.Context, atten float64) error {
	return m.setAttenuator(ctx, CWAttenuator, atten)
}

func (m *Module) CWAtten(ctx context.Context) (float64, error) {
	return m.getAttenuator(ctx, CWAttenuator)
}

// SetCombAtten drives a combiner's output attenuator, which sits on the noise
// attenuator channel.
func (m *Module) SetCombAtten(ctx context.Context, atten float64) error {
	return m.setAttenuator(ctx, NoiseAttenuator, atten)
}

func (m *Module) CombAtten(ctx context.Context) (float64, error) {
	return m.getAttenuator(ctx, NoiseAttenuator)
}

// Environment is one detector reading, in volts.
type Environment struct {
	Power       float64 `json:"power_v"`
	Temperature float64 `json:"temperature_v"`
}

// Environment samples the combiner's power and temperature detector. The ADC
// conversion is triggered by pulsing commands; those writes are not read back
// because the register returns conversion data, not the command.
func (m *Module) Environment(ctx context.Context) (Environment, error) {
	write := m.address(ADC.Register, false)
	read := m.address(ADC.Register, true)

	convert := func(cmd uint32) error {
		if err := m.bus.Write(ctx, write, ADC.SetMask|cmd); err != nil {
			return err
		}
		return m.bus.Write(ctx, write, cmd)
	}

	if err := m.ChannelSelect(ctx, ADC.Channel); err != nil {
		return Environment{}, fmt.Errorf("environment on %s: %w", m.Name, err)
	}

	// Run bit toggle; the first conversion is stale.
	if err := convert(ADC.Init[0]); err != nil {
		return Environment{}, fmt.Errorf("environment on %s: %w", m.Name, err)
	}
	if _, err := m.bus.Read(ctx, read); err != nil {
		return Environment{}, fmt.Errorf("environment on %s: %w", m.Name, err)
	}

	if err := convert(ADC.Init[1]); err != nil {
		return Environment{}, fmt.Errorf("environment on %s: %w", m.Name, err)
	}
	temp, err := m.bus.Read(ctx, read)
	if err != nil {
		return Environment{}, fmt.Errorf("environment on %s: %w", m.Name, err)
	}

	if err := convert(ADC.Init[1]); err != nil {
		return Environment{}, fmt.Errorf("environment on %s: %w", m.Name, err)
	}
	pwr, err := m.bus.Read(ctx, read)
	if err != nil {
		return Environment{}, fmt.Errorf("environment on %s: %w", m.Name, err)
	}

	env := Environment{
		Power:       float64(pwr) * ADCVoltsPerCode,
		Temperature: float64(temp) * ADCVoltsPerCode,
	}

	m.logger.Debug("Environment read",
		zap.Float64("power_v", env.Power),
		zap.Float64("temperature_v", env.Temperature))

	return env, nil
}

// SelectSynth routes the shared synthesizer control line to this module.
// The selector lives in the channel-select register of module 0.
func (m *Module) SelectSynth(ctx context.Context) error {
	if m.synth == nil {
		return fmt.Errorf("%s: %w", m.Name, types.ErrSynthUnavailable)
	}

	addr := transport.MustAddress(0, RegChannelSelect, false)
	if err := m.writeVerify(ctx, addr, uint32(m.Number)); err != nil {
		return fmt.Errorf("select synthesizer for %s: %w", m.Name, err)
	}
	return nil
}

func (m *Module) SetFrequency(ctx context.Context, freqMHz float64) error {
	if err := m.SelectSynth(ctx); err != nil {
		return err
	}
	if err := m.synth.SetFrequency(ctx, freqMHz); err != nil {
		return fmt.Errorf("set %s frequency: %w", m.Name, err)
	}

	m.logger.Debug("CW frequency set", zap.Float64("freq_mhz", freqMHz))
	return nil
}

func (m *Module) Frequency(ctx context.Context) (float64, error) {
	if err := m.SelectSynth(ctx); err != nil {
		return 0, err
	}
	freq, err := m.synth.Frequency(ctx)
	if err != nil {
		return 0, fmt.Errorf("read %s frequency: %w", m.Name, err)
	}
	return freq, nil
}

func (m *Module) LockStatus(ctx context.Context) (bool, error) {
	if err := m.SelectSynth(ctx); err != nil {
		return false, err
	}
	locked, err := m.synth.LockStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("read %s lock status: %w", m.Name, err)
	}
	return locked, nil
}
