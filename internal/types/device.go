package types

// DeviceSpec describes a hardware sub-device behind a module's channel
// selector (ADC, GPIO expander). Init commands run once when the module is
// brought up.
type DeviceSpec struct {
	Name     string   `json:"name"`
	Channel  uint32   `json:"channel"`
	Register uint16   `json:"register"`
	Init     []uint32 `json:"init"`
	SetMask  uint32   `json:"set_mask"`
}

// AttenuatorPlacement tells which half-word of the target register holds the
// attenuator step.
type AttenuatorPlacement int

const (
	PlacementNone AttenuatorPlacement = iota
	PlacementLow
	PlacementHigh
)

func (p AttenuatorPlacement) String() string {
	switch p {
	case PlacementLow:
		return "low"
	case PlacementHigh:
		return "high"
	default:
		return "none"
	}
}

// Shift returns the bit offset of the step value inside the register.
func (p AttenuatorPlacement) Shift() uint {
	if p == PlacementHigh {
		return 16
	}
	return 0
}

// ComponentSpec describes a logical switch or step attenuator.
//
// Switches carry a command list and the enable level is OR-ed into bit 0 of
// every command. Attenuators have no commands; their value is a scaled step
// placed according to Placement.
type ComponentSpec struct {
	Name      string              `json:"name"`
	Channel   uint32              `json:"channel"`
	Register  uint16              `json:"register"`
	Commands  []uint32            `json:"cmd"`
	SetMask   uint32              `json:"set_mask"`
	Placement AttenuatorPlacement `json:"placement"`
}

// IsAttenuator reports whether the component is a step attenuator.
func (c ComponentSpec) IsAttenuator() bool {
	return c.Placement != PlacementNone
}

// Bounds carries the per-module limits read from the hardware parameters.
type Bounds struct {
	MinAtten    float64 `json:"min_atten"`
	MaxAtten    float64 `json:"max_atten"`
	MinNoiseMHz float64 `json:"min_noise_freq_mhz"`
	MaxNoiseMHz float64 `json:"max_noise_freq_mhz"`
	MinCWMHz    float64 `json:"min_cw_freq_mhz"`
	MaxCWMHz    float64 `json:"max_cw_freq_mhz"`
}
