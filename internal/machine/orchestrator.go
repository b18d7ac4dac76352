package machine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/OpenMTS/internal/calibration"
	"github.com/KevinKickass/OpenMTS/internal/config"
	"github.com/KevinKickass/OpenMTS/internal/devices"
	"github.com/KevinKickass/OpenMTS/internal/synth"
	"github.com/KevinKickass/OpenMTS/internal/transport"
	"github.com/KevinKickass/OpenMTS/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotReady is returned for operations before Start or after Exit.
var ErrNotReady = errors.New("generator not ready")

// FrequencyToleranceMHz is how far a synthesizer may report from the
// requested CW frequency.
const FrequencyToleranceMHz = 0.001

// Bus is the controller link the orchestrator owns.
type Bus interface {
	devices.RegisterBus
	Close() error
}

// Tables holds the four calibration tables of a session.
type Tables struct {
	Noise *calibration.Pair
	CW    *calibration.Pair
}

func (t Tables) lookup(signal Signal, path Path) (*calibration.Table, error) {
	var pair *calibration.Pair
	switch signal {
	case SignalNoise:
		pair = t.Noise
	case SignalCW:
		pair = t.CW
	default:
		return nil, fmt.Errorf("unknown signal %q", signal)
	}
	if pair == nil {
		return nil, fmt.Errorf("no %s calibration loaded", signal)
	}

	switch path {
	case PathUncorrelated:
		return pair.Uncorrelated, nil
	case PathCorrelated:
		return pair.Correlated, nil
	default:
		return nil, fmt.Errorf("unknown path %q", path)
	}
}

type Options struct {
	Composition *types.Composition
	Params      *config.Params
	Tables      Tables
	// Synths binds synthesizers to source modules by name.
	Synths map[string]synth.Synthesizer
}

// Orchestrator composes the generator's modules into outputs and runs every
// power and frequency operation against them. One operation is in flight at
// a time; the controller's channel select is shared state.
type Orchestrator struct {
	logger   *zap.Logger
	bus      Bus
	registry *devices.Registry
	tables   Tables

	minBaseMHz float64
	maxBaseMHz float64

	// op serializes hardware sequences
	op sync.Mutex

	mu              sync.RWMutex
	state           State
	errorMessage    string
	sessionID       uuid.UUID
	operations      int
	lastStateChange time.Time
}

// New builds the module registry from the composition and hardware
// parameters. No hardware is touched until Start.
func New(bus Bus, opts Options, logger *zap.Logger) (*Orchestrator, error) {
	if opts.Composition == nil || opts.Params == nil {
		return nil, errors.New("composition and hardware params are required")
	}

	o := &Orchestrator{
		logger:          logger,
		bus:             bus,
		registry:        devices.NewRegistry(logger),
		tables:          opts.Tables,
		state:           StateStopped,
		sessionID:       uuid.New(),
		lastStateChange: time.Now(),
	}

	var err error
	if o.minBaseMHz, err = opts.Params.GetFloat("kat7", "min_base_freq_mhz"); err != nil {
		return nil, err
	}
	if o.maxBaseMHz, err = opts.Params.GetFloat("kat7", "max_base_freq_mhz"); err != nil {
		return nil, err
	}

	sources := make(map[string]bool)
	for _, src := range opts.Composition.Sources {
		var moduleOpts []devices.ModuleOption
		if s, ok := opts.Synths[src.Name]; ok && s != nil {
			moduleOpts = append(moduleOpts, devices.WithSynthesizer(s))
		}
		if err := o.addModule(src.Name, src.Module, devices.RoleSource, src.Available, opts.Params, moduleOpts...); err != nil {
			return nil, err
		}
		sources[src.Name] = true
	}

	for _, cmb := range opts.Composition.Combiners {
		if err := o.addModule(cmb.Name, cmb.Module, devices.RoleCombiner, cmb.Available, opts.Params); err != nil {
			return nil, err
		}
		if !cmb.Available {
			continue
		}

		link := devices.Link{
			Uncorrelated: sourceName(cmb.Uncorrelated, cmb.Name, "ucs", opts.Params),
			Correlated:   sourceName(cmb.Correlated, cmb.Name, "cs", opts.Params),
		}
		if !sources[link.Uncorrelated] || !sources[link.Correlated] {
			logger.Warn("Combiner has no complete source link",
				zap.String("combiner", cmb.Name),
				zap.String("ucs", link.Uncorrelated),
				zap.String("cs", link.Correlated))
			continue
		}
		if err := o.registry.Link(cmb.Name, link); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// sourceName prefers the composition entry and falls back to the hardware
// parameter file.
func sourceName(explicit, combiner, key string, params *config.Params) string {
	if explicit != "" {
		return explicit
	}
	name, err := params.GetString(combiner, key)
	if err != nil {
		return ""
	}
	return name
}

func (o *Orchestrator) addModule(name string, number int, role devices.Role, available bool, params *config.Params, opts ...devices.ModuleOption) error {
	// Checked before narrowing so 257 cannot wrap onto module 1.
	if number < 1 || number > transport.MaxModule {
		return fmt.Errorf("module %s: number %d out of range [1, %d]", name, number, transport.MaxModule)
	}

	if available {
		bounds, err := params.Bounds(name)
		if err != nil {
			return fmt.Errorf("module %s: %w", name, err)
		}
		opts = append(opts, devices.WithBounds(bounds))
	}

	m, err := devices.NewModule(name, uint8(number), role, o.bus, o.logger, opts...)
	if err != nil {
		return err
	}
	m.Available = available

	return o.registry.Add(m)
}

// Registry exposes the module registry for read-only inspection.
func (o *Orchestrator) Registry() *devices.Registry {
	return o.registry
}

// Start initialises every available module and leaves the generator
// quiescent: sources running with output switches blocked and attenuators at
// maximum, combiner detectors on with the output attenuator at minimum.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.op.Lock()
	defer o.op.Unlock()

	if state := o.State(); state != StateStopped && state != StateError {
		return fmt.Errorf("cannot start: generator is %s", state)
	}
	o.setState(StateInitializing, "")

	for _, m := range o.registry.List(0) {
		if !m.Available {
			o.logger.Info("Skipping unavailable module", zap.String("module", m.Name))
			continue
		}

		o.logger.Info("Initiating module",
			zap.String("module", m.Name),
			zap.Uint8("number", m.Number),
			zap.Stringer("role", m.Role))

		if err := o.quiesce(ctx, m); err != nil {
			o.setState(StateError, err.Error())
			return fmt.Errorf("initialise %s: %w", m.Name, err)
		}
	}

	o.setState(StateReady, "")
	return nil
}

func (o *Orchestrator) quiesce(ctx context.Context, m *devices.Module) error {
	if err := m.Init(ctx); err != nil {
		return err
	}

	switch m.Role {
	case devices.RoleSource:
		steps := []func(context.Context) error{
			func(ctx context.Context) error { return m.EnableNoiseOutput(ctx, false) },
			func(ctx context.Context) error { return m.EnableCWOutput(ctx, false) },
			func(ctx context.Context) error { return m.EnableNoiseSource(ctx, true) },
			func(ctx context.Context) error { return m.EnableCWSource(ctx, true) },
			func(ctx context.Context) error { return m.SetNoiseAtten(ctx, m.Bounds.MaxAtten) },
			func(ctx context.Context) error { return m.SetCWAtten(ctx, m.Bounds.MaxAtten) },
		}
		for _, step := range steps {
			if err := step(ctx); err != nil {
				return err
			}
		}

	case devices.RoleCombiner:
		if err := m.EnablePowerSensor(ctx, true); err != nil {
			return err
		}
		if err := m.SetCombAtten(ctx, m.Bounds.MinAtten); err != nil {
			return err
		}
	}

	return nil
}

// Exit disables every source, closes the output switches and releases the
// controller link. Modules that fail are logged and skipped so the rest
// still reach the low-power state; the joined errors are returned.
func (o *Orchestrator) Exit(ctx context.Context) error {
	o.op.Lock()
	defer o.op.Unlock()

	if o.State() == StateExited {
		return nil
	}

	var errs []error
	if o.State() != StateStopped {
		for _, m := range o.registry.List(devices.RoleSource) {
			if !m.Available {
				continue
			}
			if err := o.shutdownSource(ctx, m); err != nil {
				o.logger.Error("Failed to shut down source",
					zap.String("module", m.Name),
					zap.Error(err))
				errs = append(errs, err)
			}
		}
	}

	if err := o.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close controller link: %w", err))
	}

	o.setState(StateExited, "")
	o.logger.Info("Generator exited")

	return errors.Join(errs...)
}

func (o *Orchestrator) shutdownSource(ctx context.Context, m *devices.Module) error {
	if err := m.EnableNoiseSource(ctx, false); err != nil {
		return err
	}
	if err := m.EnableCWSource(ctx, false); err != nil {
		return err
	}
	// "enabled" switches are closed: the lowest power draw
	if err := m.EnableNoiseOutput(ctx, true); err != nil {
		return err
	}
	return m.EnableCWOutput(ctx, true)
}

// begin takes the operation lock for a hardware sequence. The returned
// function releases it and records transport failures.
func (o *Orchestrator) begin() (func(error), error) {
	o.op.Lock()

	state := o.State()
	if state != StateReady && state != StateError {
		o.op.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, state)
	}

	return func(err error) {
		o.mu.Lock()
		o.operations++
		o.mu.Unlock()

		var terr *types.TransportError
		if errors.As(err, &terr) {
			o.setState(StateError, err.Error())
		}
		o.op.Unlock()
	}, nil
}

func (o *Orchestrator) setState(state State, errorMsg string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = state
	o.errorMessage = errorMsg
	o.lastStateChange = time.Now()

	o.logger.Info("Generator state changed",
		zap.String("state", string(state)),
		zap.String("error", errorMsg))
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) GetStatus() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var outputs []string
	for _, m := range o.registry.List(devices.RoleCombiner) {
		if m.Available {
			outputs = append(outputs, m.Name)
		}
	}

	return Status{
		State:           o.state,
		SessionID:       o.sessionID.String(),
		ErrorMessage:    o.errorMessage,
		Outputs:         outputs,
		Operations:      o.operations,
		LastStateChange: o.lastStateChange,
	}
}

// Outputs lists every combiner with its linked sources.
func (o *Orchestrator) Outputs() []OutputInfo {
	var outputs []OutputInfo
	for _, m := range o.registry.List(devices.RoleCombiner) {
		info := OutputInfo{Name: m.Name, Module: m.Number, Available: m.Available}
		if link, ok := o.registry.LinkOf(m.Name); ok {
			info.Uncorrelated = link.Uncorrelated
			info.Correlated = link.Correlated
		}
		outputs = append(outputs, info)
	}
	return outputs
}

// SelectCombiner returns the named output module.
func (o *Orchestrator) SelectCombiner(name string) (*devices.Module, error) {
	return o.registry.Combiner(name)
}

// BaseFrequencyRange is the receiver base band from the kat7 parameters.
func (o *Orchestrator) BaseFrequencyRange() (minMHz, maxMHz float64) {
	return o.minBaseMHz, o.maxBaseMHz
}
