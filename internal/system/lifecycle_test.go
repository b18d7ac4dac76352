package system

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KevinKickass/OpenMTS/internal/calibration"
	"github.com/KevinKickass/OpenMTS/internal/config"
	"github.com/KevinKickass/OpenMTS/internal/devices"
	"github.com/KevinKickass/OpenMTS/internal/machine"
	"go.uber.org/zap"
)

const testParams = `
kat7:
  min_base_freq_mhz: 0
  max_base_freq_mhz: 400
ucs1: &module
  min_atten: 0
  max_atten: 31.5
  min_noise_freq_mhz: 10
  max_noise_freq_mhz: 3000
  min_cw_freq_mhz: 137.5
  max_cw_freq_mhz: 4400
ucs2: *module
cs1: *module
comb1:
  <<: *module
  ucs: "'ucs1'"
  cs: "'cs1'"
comb2:
  <<: *module
  ucs: "'ucs2'"
  cs: "'cs1'"
`

func writeCalibration(t *testing.T, path string, offset float64) {
	t.Helper()
	var samples []calibration.Sample
	for i := 0; i <= 126; i++ {
		atten := float64(i) * 0.5
		samples = append(samples, calibration.Sample{
			Attenuation: atten,
			Voltage:     2 - atten*0.04,
			Power:       offset - atten,
		})
	}
	if err := calibration.SavePair(path, samples, samples); err != nil {
		t.Fatal(err)
	}
}

func simulatedConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	params := filepath.Join(dir, "mts_params.yaml")
	if err := os.WriteFile(params, []byte(testParams), 0o644); err != nil {
		t.Fatal(err)
	}
	noise := filepath.Join(dir, "noise_calib_table.data")
	cw := filepath.Join(dir, "cw_calib_table.data")
	writeCalibration(t, noise, -20)
	writeCalibration(t, cw, 0)

	return &config.Config{
		Serial: config.SerialConfig{Simulate: true, BaudRate: 115200},
		Synth: config.SynthConfig{
			Driver:  "none",
			Timeout: time.Second,
			MinMHz:  137.5,
			MaxMHz:  4400,
		},
		Calibration: config.CalibrationConfig{NoiseTable: noise, CWTable: cw},
		Hardware:    config.HardwareConfig{ParamsFile: params},
		Server:      config.ServerConfig{Enabled: false, ShutdownTimeout: time.Second},
	}
}

func TestSimulatedLifecycle(t *testing.T) {
	lm := NewLifecycleManager(simulatedConfig(t), zap.NewNop())
	ctx := context.Background()

	if err := lm.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if lm.State() != StateRunning {
		t.Fatalf("state = %s", lm.State())
	}

	status := lm.GetCurrentStatus()
	if !status.Simulated || status.ModuleCount != 5 || status.OutputCount != 2 {
		t.Fatalf("status = %+v", status)
	}

	gen := lm.Generator()
	if gen.State() != machine.StateReady {
		t.Fatalf("generator state = %s", gen.State())
	}

	ucs := -30.0
	if err := gen.SetNoise(ctx, "comb1", &ucs, nil); err != nil {
		t.Fatalf("SetNoise: %v", err)
	}

	// simulation binds a synthesizer to every source
	freq := 1000.0
	if err := gen.SetFrequency(ctx, "comb2", machine.PathCorrelated, freq); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}

	env, err := gen.Environment(ctx, "comb2")
	if err != nil {
		t.Fatalf("Environment: %v", err)
	}
	if math.Abs(env.Power-simulatedADCCode*devices.ADCVoltsPerCode) > 1e-12 {
		t.Fatalf("Environment = %+v", env)
	}

	if err := lm.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if lm.State() != StateStopped || gen.State() != machine.StateExited {
		t.Fatalf("after shutdown: system %s, generator %s", lm.State(), gen.State())
	}

	// second call is a no-op
	if err := lm.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"missing params", func(cfg *config.Config) { cfg.Hardware.ParamsFile = "/nonexistent/mts_params.yaml" }},
		{"missing noise table", func(cfg *config.Config) { cfg.Calibration.NoiseTable = "/nonexistent/noise.data" }},
		{"missing composition", func(cfg *config.Config) { cfg.Hardware.CompositionFile = "/nonexistent/composition.yaml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := simulatedConfig(t)
			tt.mutate(cfg)

			lm := NewLifecycleManager(cfg, zap.NewNop())
			if err := lm.Start(context.Background()); err == nil {
				t.Fatal("expected error")
			}
			if lm.State() != StateError || lm.GetCurrentStatus().Error == "" {
				t.Fatalf("status = %+v", lm.GetCurrentStatus())
			}
			if lm.Generator() != nil {
				t.Fatal("generator composed despite failure")
			}
			if err := lm.Shutdown(context.Background()); err != nil {
				t.Fatalf("Shutdown: %v", err)
			}
		})
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to SystemState
		ok       bool
	}{
		{StateInitializing, StateRunning, true},
		{StateRunning, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateStopped, StateRunning, false},
		{StateRunning, StateInitializing, false},
	}
	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Fatalf("%s -> %s: err = %v", tt.from, tt.to, err)
		}
	}
}
