package machine

import (
	"context"
	"fmt"
	"math"

	"github.com/KevinKickass/OpenMTS/internal/attenuation"
	"github.com/KevinKickass/OpenMTS/internal/devices"
	"github.com/KevinKickass/OpenMTS/internal/types"
	"go.uber.org/zap"
)

// route resolves an output and one of its sources.
func (o *Orchestrator) route(output string, path Path) (comb, src *devices.Module, err error) {
	comb, err = o.registry.Combiner(output)
	if err != nil {
		return nil, nil, err
	}

	ucs, cs, err := o.registry.SourcesOf(output)
	if err != nil {
		return nil, nil, err
	}

	switch path {
	case PathUncorrelated:
		src = ucs
	case PathCorrelated:
		src = cs
	default:
		return nil, nil, fmt.Errorf("unknown path %q", path)
	}
	if !src.Available {
		return nil, nil, fmt.Errorf("%s source %s: %w", path, src.Name, types.ErrUnknownModule)
	}

	return comb, src, nil
}

// setPower converts a requested power to attenuation, splits it between the
// source and combiner attenuators, applies both and reads them back. The
// range check runs before any register is touched.
func (o *Orchestrator) setPower(ctx context.Context, comb, src *devices.Module, table attenuatorTable, signal Signal, powerDBm float64) error {
	atten, err := table.AttenuationFor(powerDBm)
	if err != nil {
		return err
	}

	srcAtten, cmbAtten := attenuation.Split(atten, src.Bounds.MaxAtten)

	o.logger.Debug("Setting output power",
		zap.String("combiner", comb.Name),
		zap.String("source", src.Name),
		zap.String("signal", string(signal)),
		zap.Float64("power_dbm", powerDBm),
		zap.Float64("atten_db", atten),
		zap.Float64("src_atten_db", srcAtten),
		zap.Float64("cmb_atten_db", cmbAtten))

	var (
		set  func(context.Context, float64) error
		get  func(context.Context) (float64, error)
		name string
	)
	if signal == SignalCW {
		set, get, name = src.SetCWAtten, src.CWAtten, src.Name+" cw"
	} else {
		set, get, name = src.SetNoiseAtten, src.NoiseAtten, src.Name+" noise"
	}

	if err := applyAttenuation(ctx, name, set, get, srcAtten); err != nil {
		return err
	}
	return applyAttenuation(ctx, comb.Name+" output", comb.SetCombAtten, comb.CombAtten, cmbAtten)
}

type attenuatorTable interface {
	AttenuationFor(powerDBm float64) (float64, error)
}

func applyAttenuation(ctx context.Context, name string,
	set func(context.Context, float64) error,
	get func(context.Context) (float64, error),
	atten float64,
) error {
	if err := set(ctx, atten); err != nil {
		return err
	}

	got, err := get(ctx)
	if err != nil {
		return err
	}

	want := attenuation.Quantize(atten)
	if !attenuation.Equal(got, want) {
		return &types.SetpointMismatch{Attenuator: name, Want: want, Got: got}
	}
	return nil
}

// SetPower sets the attenuators of one path for a requested output power
// without touching the source or output switches.
func (o *Orchestrator) SetPower(ctx context.Context, output string, path Path, signal Signal, powerDBm float64) (err error) {
	done, err := o.begin()
	if err != nil {
		return err
	}
	defer func() { done(err) }()

	comb, src, err := o.route(output, path)
	if err != nil {
		return err
	}
	table, err := o.tables.lookup(signal, path)
	if err != nil {
		return err
	}
	return o.setPower(ctx, comb, src, table, signal, powerDBm)
}

// GetPower reads the output detector and converts the voltage with the
// table of the given signal and path.
func (o *Orchestrator) GetPower(ctx context.Context, output string, signal Signal, path Path) (_ float64, err error) {
	done, err := o.begin()
	if err != nil {
		return 0, err
	}
	defer func() { done(err) }()

	comb, err := o.registry.Combiner(output)
	if err != nil {
		return 0, err
	}
	table, err := o.tables.lookup(signal, path)
	if err != nil {
		return 0, err
	}

	env, err := comb.Environment(ctx)
	if err != nil {
		return 0, err
	}
	return table.PowerFor(env.Power), nil
}

// enable sets power, then switches the source on and opens its output.
func (o *Orchestrator) enable(ctx context.Context, output string, path Path, signal Signal, powerDBm float64) (*devices.Module, error) {
	comb, src, err := o.route(output, path)
	if err != nil {
		return nil, err
	}
	table, err := o.tables.lookup(signal, path)
	if err != nil {
		return nil, err
	}

	if err := o.setPower(ctx, comb, src, table, signal, powerDBm); err != nil {
		return nil, err
	}

	if signal == SignalCW {
		if err := src.EnableCWSource(ctx, true); err != nil {
			return nil, err
		}
		return src, src.EnableCWOutput(ctx, true)
	}

	if err := src.EnableNoiseSource(ctx, true); err != nil {
		return nil, err
	}
	return src, src.EnableNoiseOutput(ctx, true)
}

// SetNoise enables the uncorrelated and/or correlated noise of an output at
// the requested powers. A nil power leaves that path alone.
func (o *Orchestrator) SetNoise(ctx context.Context, output string, ucsDBm, csDBm *float64) (err error) {
	done, err := o.begin()
	if err != nil {
		return err
	}
	defer func() { done(err) }()

	if _, err := o.registry.Combiner(output); err != nil {
		return err
	}

	if ucsDBm != nil {
		if _, err := o.enable(ctx, output, PathUncorrelated, SignalNoise, *ucsDBm); err != nil {
			return err
		}
	}
	if csDBm != nil {
		if _, err := o.enable(ctx, output, PathCorrelated, SignalNoise, *csDBm); err != nil {
			return err
		}
	}
	return nil
}

// GetNoise reads the noise power at an output using the table of path.
func (o *Orchestrator) GetNoise(ctx context.Context, output string, path Path) (float64, error) {
	return o.GetPower(ctx, output, SignalNoise, path)
}

// DisableNoise blocks the noise output of the selected sources.
func (o *Orchestrator) DisableNoise(ctx context.Context, output string, ucs, cs bool) (err error) {
	return o.disable(ctx, output, ucs, cs, SignalNoise)
}

// DisableCW blocks the CW output of the selected sources.
func (o *Orchestrator) DisableCW(ctx context.Context, output string, ucs, cs bool) (err error) {
	return o.disable(ctx, output, ucs, cs, SignalCW)
}

func (o *Orchestrator) disable(ctx context.Context, output string, ucs, cs bool, signal Signal) (err error) {
	done, err := o.begin()
	if err != nil {
		return err
	}
	defer func() { done(err) }()

	if _, err := o.registry.Combiner(output); err != nil {
		return err
	}

	for _, sel := range []struct {
		on   bool
		path Path
	}{{ucs, PathUncorrelated}, {cs, PathCorrelated}} {
		if !sel.on {
			continue
		}
		_, src, err := o.route(output, sel.path)
		if err != nil {
			return err
		}
		if signal == SignalCW {
			err = src.EnableCWOutput(ctx, false)
		} else {
			err = src.EnableNoiseOutput(ctx, false)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CWRequest is one SetCW call. Nil fields leave that setting alone; a
// frequency is only applied together with a power for the same path.
type CWRequest struct {
	UncorrelatedDBm *float64 `json:"ucs_power_dbm,omitempty"`
	UncorrelatedMHz *float64 `json:"ucs_freq_mhz,omitempty"`
	CorrelatedDBm   *float64 `json:"cs_power_dbm,omitempty"`
	CorrelatedMHz   *float64 `json:"cs_freq_mhz,omitempty"`
}

// SetCW enables CW on the selected paths, then tunes their synthesizers and
// checks the reported frequency.
func (o *Orchestrator) SetCW(ctx context.Context, output string, req CWRequest) (err error) {
	done, err := o.begin()
	if err != nil {
		return err
	}
	defer func() { done(err) }()

	if _, err := o.registry.Combiner(output); err != nil {
		return err
	}

	type leg struct {
		path Path
		pwr  *float64
		freq *float64
	}
	legs := []leg{
		{PathUncorrelated, req.UncorrelatedDBm, req.UncorrelatedMHz},
		{PathCorrelated, req.CorrelatedDBm, req.CorrelatedMHz},
	}

	// Reject bad frequencies before anything is written.
	for _, l := range legs {
		if l.pwr == nil || l.freq == nil {
			continue
		}
		_, src, err := o.route(output, l.path)
		if err != nil {
			return err
		}
		if err := checkCWFrequency(src, *l.freq); err != nil {
			return err
		}
	}

	for _, l := range legs {
		if l.pwr == nil {
			continue
		}
		src, err := o.enable(ctx, output, l.path, SignalCW, *l.pwr)
		if err != nil {
			return err
		}
		if l.freq != nil {
			if err := tune(ctx, src, *l.freq); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkCWFrequency rejects non-finite frequencies always and, when the
// module has CW bounds, anything outside them.
func checkCWFrequency(src *devices.Module, freqMHz float64) error {
	b := src.Bounds
	bounded := b.MaxCWMHz > b.MinCWMHz
	if math.IsNaN(freqMHz) || math.IsInf(freqMHz, 0) ||
		(bounded && (freqMHz < b.MinCWMHz || freqMHz > b.MaxCWMHz)) {
		return &types.RangeError{
			Quantity:  src.Name + " cw frequency (MHz)",
			Requested: freqMHz,
			Min:       b.MinCWMHz,
			Max:       b.MaxCWMHz,
		}
	}
	return nil
}

func tune(ctx context.Context, src *devices.Module, freqMHz float64) error {
	if err := src.SetFrequency(ctx, freqMHz); err != nil {
		return err
	}
	got, err := src.Frequency(ctx)
	if err != nil {
		return err
	}
	if math.Abs(got-freqMHz) > FrequencyToleranceMHz {
		return &types.FrequencyMismatch{Want: freqMHz, Got: got}
	}
	return nil
}

// GetCW reads the CW power at an output using the table of path.
func (o *Orchestrator) GetCW(ctx context.Context, output string, path Path) (float64, error) {
	return o.GetPower(ctx, output, SignalCW, path)
}

// SetFrequency tunes the synthesizer of one source without touching power
// or switches.
func (o *Orchestrator) SetFrequency(ctx context.Context, output string, path Path, freqMHz float64) (err error) {
	done, err := o.begin()
	if err != nil {
		return err
	}
	defer func() { done(err) }()

	_, src, err := o.route(output, path)
	if err != nil {
		return err
	}
	if err := checkCWFrequency(src, freqMHz); err != nil {
		return err
	}
	return src.SetFrequency(ctx, freqMHz)
}

func (o *Orchestrator) GetFrequency(ctx context.Context, output string, path Path) (_ float64, err error) {
	done, err := o.begin()
	if err != nil {
		return 0, err
	}
	defer func() { done(err) }()

	_, src, err := o.route(output, path)
	if err != nil {
		return 0, err
	}
	return src.Frequency(ctx)
}

// LockStatus reports whether the synthesizer behind a path is locked.
func (o *Orchestrator) LockStatus(ctx context.Context, output string, path Path) (_ bool, err error) {
	done, err := o.begin()
	if err != nil {
		return false, err
	}
	defer func() { done(err) }()

	_, src, err := o.route(output, path)
	if err != nil {
		return false, err
	}
	return src.LockStatus(ctx)
}

// Environment reads an output's detector voltages.
func (o *Orchestrator) Environment(ctx context.Context, output string) (_ devices.Environment, err error) {
	done, err := o.begin()
	if err != nil {
		return devices.Environment{}, err
	}
	defer func() { done(err) }()

	comb, err := o.registry.Combiner(output)
	if err != nil {
		return devices.Environment{}, err
	}
	return comb.Environment(ctx)
}
