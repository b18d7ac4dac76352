package devices

import "github.com/KevinKickass/OpenMTS/internal/types"

// Registers every module exposes.
const (
	RegChannelSelect uint16 = 0
	RegADC           uint16 = 1
	RegGPIO          uint16 = 2
	RegAttenuator    uint16 = 3
)

// ADCVoltsPerCode converts a raw AD7888 code to volts.
const ADCVoltsPerCode = 610.351e-6

// Sub-devices initialised on every module.
var (
	ADC = types.DeviceSpec{
		Name:     "ad7888",
		Channel:  0,
		Register: RegADC,
		Init:     []uint32{0x3000, 0x800},
		SetMask:  0x00010000,
	}

	GPIO = types.DeviceSpec{
		Name:     "max7301",
		Channel:  1,
		Register: RegGPIO,
		Init:     []uint32{0x401, 0x9d5, 0xa55, 0xf55},
		SetMask:  0x00010000,
	}
)

// Devices lists the sub-devices in initialisation order.
var Devices = []types.DeviceSpec{ADC, GPIO}

// Logical components. Switches live on the GPIO expander, the two step
// attenuators share the ZX76 register and are told apart by channel.
var (
	NoiseSource = types.ComponentSpec{
		Name:     "ns",
		Channel:  1,
		Register: RegGPIO,
		Commands: []uint32{0x2600, 0x2400, 0x3f00},
		SetMask:  0x00010000,
	}

	NoiseSwitch = types.ComponentSpec{
		Name:     "ns_switch",
		Channel:  1,
		Register: RegGPIO,
		Commands: []uint32{0x2500},
		SetMask:  0x00010000,
	}

	NoiseAttenuator = types.ComponentSpec{
		Name:      "ns_atten",
		Channel:   2,
		Register:  RegAttenuator,
		SetMask:   0x00000100,
		Placement: types.PlacementLow,
	}

	CWSource = types.ComponentSpec{
		Name:     "cw",
		Channel:  1,
		Register: RegGPIO,
		Commands: []uint32{0x3c00, 0x3d00},
		SetMask:  0x00010000,
	}

	CWSwitch = types.ComponentSpec{
		Name:     "cw_switch",
		Channel:  1,
		Register: RegGPIO,
		Commands: []uint32{0x3e00},
		SetMask:  0x00010000,
	}

	CWAttenuator = types.ComponentSpec{
		Name:      "cw_atten",
		Channel:   3,
		Register:  RegAttenuator,
		SetMask:   0x01000000,
		Placement: types.PlacementHigh,
	}

	LockDetect = types.ComponentSpec{
		Name:     "lock",
		Channel:  1,
		Register: RegGPIO,
		Commands: []uint32{0xa700},
		SetMask:  0x00010000,
	}

	PowerSwitch = types.ComponentSpec{
		Name:     "pwr_switch",
		Channel:  1,
		Register: RegGPIO,
		Commands: []uint32{0x3c00},
		SetMask:  0x00010000,
	}
)

// Components is the full catalogue keyed by name.
var Components = map[string]types.ComponentSpec{
	NoiseSource.Name:     NoiseSource,
	NoiseSwitch.Name:     NoiseSwitch,
	NoiseAttenuator.Name: NoiseAttenuator,
	CWSource.Name:        CWSource,
	CWSwitch.Name:        CWSwitch,
	CWAttenuator.Name:    CWAttenuator,
	LockDetect.Name:      LockDetect,
	PowerSwitch.Name:     PowerSwitch,
}
