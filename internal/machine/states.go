package machine

import "time"

type State string

const (
	StateStopped      State = "stopped"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateError        State = "error"
	StateExited       State = "exited"
)

// Signal selects the calibration set and attenuator of a source.
type Signal string

const (
	SignalNoise Signal = "noise"
	SignalCW    Signal = "cw"
)

// Path selects which source of a combiner an operation addresses.
type Path string

const (
	PathUncorrelated Path = "ucs"
	PathCorrelated   Path = "cs"
)

func ParseSignal(s string) (Signal, bool) {
	switch Signal(s) {
	case SignalNoise, SignalCW:
		return Signal(s), true
	}
	return "", false
}

func ParsePath(s string) (Path, bool) {
	switch Path(s) {
	case PathUncorrelated, PathCorrelated:
		return Path(s), true
	}
	return "", false
}

type Status struct {
	State           State     `json:"state"`
	SessionID       string    `json:"session_id"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Outputs         []string  `json:"outputs"`
	Operations      int       `json:"operations"`
	LastStateChange time.Time `json:"last_state_change"`
}

// OutputInfo describes a combiner output and the sources behind it.
type OutputInfo struct {
	Name         string `json:"name"`
	Module       uint8  `json:"module"`
	Available    bool   `json:"available"`
	Uncorrelated string `json:"ucs,omitempty"`
	Correlated   string `json:"cs,omitempty"`
}
