package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/OpenMTS/internal/api/rest"
	"github.com/KevinKickass/OpenMTS/internal/calibration"
	"github.com/KevinKickass/OpenMTS/internal/config"
	"github.com/KevinKickass/OpenMTS/internal/devices"
	"github.com/KevinKickass/OpenMTS/internal/interfaces"
	"github.com/KevinKickass/OpenMTS/internal/machine"
	"github.com/KevinKickass/OpenMTS/internal/synth"
	"github.com/KevinKickass/OpenMTS/internal/transport"
	"github.com/KevinKickass/OpenMTS/internal/types"
	"go.uber.org/zap"
)

// simulatedADCCode is what the emulated detectors report, about 1.25 V.
const simulatedADCCode = 2048

type LifecycleManager struct {
	config *config.Config
	logger *zap.Logger

	client       *transport.Client
	simulator    *transport.MockController
	generator    *machine.Orchestrator
	restServer   *rest.Server
	startedAt    time.Time
	stateMu      sync.RWMutex
	currentState SystemState
	lastError    string

	shutdownOnce sync.Once
}

func NewLifecycleManager(cfg *config.Config, logger *zap.Logger) *LifecycleManager {
	return &LifecycleManager{
		config:       cfg,
		logger:       logger,
		currentState: StateInitializing,
	}
}

// Start loads the hardware description and calibration, opens the
// controller link, brings the generator to its quiescent state and starts
// the REST API.
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.logger.Info("Starting OpenMTS", zap.Bool("simulate", lm.config.Serial.Simulate))
	lm.startedAt = time.Now()

	if err := lm.start(ctx); err != nil {
		lm.setError(err)
		return err
	}

	lm.setState(StateRunning)

	lm.logger.Info("System started successfully",
		zap.Bool("rest_enabled", lm.config.Server.Enabled),
		zap.Int("http_port", lm.config.Server.HTTPPort))

	return nil
}

func (lm *LifecycleManager) start(ctx context.Context) error {
	params, err := config.LoadParams(lm.config.Hardware.ParamsFile)
	if err != nil {
		return err
	}

	composition, err := devices.LoadComposition(lm.config.Hardware.CompositionFile)
	if err != nil {
		return err
	}

	tables, err := lm.loadTables()
	if err != nil {
		return err
	}

	if err := lm.openTransport(ctx); err != nil {
		return err
	}

	generator, err := machine.New(lm.client, machine.Options{
		Composition: composition,
		Params:      params,
		Tables:      tables,
		Synths:      lm.buildSynths(composition),
	}, lm.logger)
	if err != nil {
		lm.client.Close()
		lm.client = nil
		return fmt.Errorf("failed to compose generator: %w", err)
	}
	lm.generator = generator

	if err := generator.Start(ctx); err != nil {
		return fmt.Errorf("failed to initialise generator: %w", err)
	}

	if lm.simulator != nil {
		lm.seedSimulator(composition)
	}

	if lm.config.Server.Enabled {
		if err := lm.startRESTServer(); err != nil {
			return fmt.Errorf("failed to start REST API: %w", err)
		}
	}

	return nil
}

func (lm *LifecycleManager) loadTables() (machine.Tables, error) {
	noise, err := calibration.LoadPair(lm.config.Calibration.NoiseTable, "noise")
	if err != nil {
		return machine.Tables{}, fmt.Errorf("failed to load noise calibration: %w", err)
	}

	cw, err := calibration.LoadPair(lm.config.Calibration.CWTable, "cw")
	if err != nil {
		return machine.Tables{}, fmt.Errorf("failed to load cw calibration: %w", err)
	}

	lm.logger.Info("Calibration loaded",
		zap.String("noise_table", lm.config.Calibration.NoiseTable),
		zap.String("cw_table", lm.config.Calibration.CWTable))

	return machine.Tables{Noise: noise, CW: cw}, nil
}

// openTransport connects to the controller, or to the emulator in
// simulation mode, and checks it answers a ping.
func (lm *LifecycleManager) openTransport(ctx context.Context) error {
	if lm.config.Serial.Simulate {
		lm.simulator = transport.NewMockController()
		lm.client = transport.NewClient(lm.simulator, lm.logger)
		lm.logger.Info("Using simulated controller")
	} else {
		client, err := transport.Dial(transport.SerialConfig{
			Port:        lm.config.Serial.Port,
			BaudRate:    lm.config.Serial.BaudRate,
			ReadTimeout: lm.config.Serial.ReadTimeout,
		}, lm.logger)
		if err != nil {
			return &types.TransportError{Op: "open", Err: err}
		}
		lm.client = client
	}

	if err := lm.client.Ping(ctx); err != nil {
		lm.client.Close()
		lm.client = nil
		return fmt.Errorf("controller not responding: %w", err)
	}

	return nil
}

// buildSynths binds synthesizers to the configured source modules. An empty
// module list binds every source.
func (lm *LifecycleManager) buildSynths(composition *types.Composition) map[string]synth.Synthesizer {
	driver := lm.config.Synth.Driver
	if lm.config.Serial.Simulate {
		driver = "mock"
	}
	if driver != "mock" {
		return nil
	}

	names := lm.config.Synth.Modules
	if len(names) == 0 {
		for _, src := range composition.Sources {
			names = append(names, src.Name)
		}
	}

	synths := make(map[string]synth.Synthesizer, len(names))
	for _, name := range names {
		s := synth.NewMock(lm.config.Synth.MinMHz, lm.config.Synth.MaxMHz)
		synths[name] = synth.WithTimeout(s, lm.config.Synth.Timeout)
	}

	lm.logger.Info("Synthesizers bound",
		zap.String("driver", driver),
		zap.Strings("modules", names))

	return synths
}

// seedSimulator gives the emulated combiner detectors a reading.
func (lm *LifecycleManager) seedSimulator(composition *types.Composition) {
	for _, cmb := range composition.Combiners {
		if !cmb.Available {
			continue
		}
		addr := transport.MustAddress(uint8(cmb.Module), devices.RegADC, true)
		lm.simulator.SetRegister(addr, simulatedADCCode)
	}
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger)
	return lm.restServer.Start()
}

// Shutdown stops the API, then takes the generator to its low-power state
// and releases the controller link.
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		if shutdownErr != nil {
			lm.setError(shutdownErr)
			return
		}
		lm.setState(StateStopped)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var errs []error

	if lm.restServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, lm.config.Server.ShutdownTimeout)
		if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("rest api shutdown failed: %w", err))
		}
		cancel()
	}

	if lm.generator != nil {
		if err := lm.generator.Exit(ctx); err != nil {
			errs = append(errs, fmt.Errorf("generator exit failed: %w", err))
		}
	} else if lm.client != nil {
		if err := lm.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close controller link: %w", err))
		}
	}

	if len(errs) == 0 {
		lm.logger.Info("Graceful shutdown completed")
	}
	return errors.Join(errs...)
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Unexpected state change", zap.Error(err))
	}
	lm.currentState = state
}

func (lm *LifecycleManager) setError(err error) {
	lm.logger.Error("System error", zap.Error(err))

	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.currentState = StateError
	lm.lastError = err.Error()
}

// State returns the daemon state.
func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	status := interfaces.SystemStatus{
		State:     lm.currentState.String(),
		Simulated: lm.config.Serial.Simulate,
		Error:     lm.lastError,
	}
	if !lm.config.Serial.Simulate {
		status.Port = lm.config.Serial.Port
	}
	if !lm.startedAt.IsZero() {
		status.UptimeSeconds = int64(time.Since(lm.startedAt).Seconds())
	}

	if lm.generator != nil {
		status.ModuleCount = len(lm.generator.Registry().List(0))
		for _, out := range lm.generator.Outputs() {
			if out.Available {
				status.OutputCount++
			}
		}
	}

	return status
}

// Generator returns the orchestrator, nil before Start.
func (lm *LifecycleManager) Generator() *machine.Orchestrator {
	return lm.generator
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}
