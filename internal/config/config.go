package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Serial      SerialConfig      `mapstructure:"serial"`
	Synth       SynthConfig       `mapstructure:"synth"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Hardware    HardwareConfig    `mapstructure:"hardware"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
}

// SerialConfig is the link to the MTS controller board.
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    uint          `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// Simulate replaces the controller and synthesizer with in-memory
	// emulators.
	Simulate bool `mapstructure:"simulate"`
}

type SynthConfig struct {
	// Driver selects the synthesizer backend: "none" leaves modules without
	// frequency control, "mock" binds the in-memory synthesizer.
	Driver  string        `mapstructure:"driver"`
	Timeout time.Duration `mapstructure:"timeout"`
	MinMHz  float64       `mapstructure:"min_mhz"`
	MaxMHz  float64       `mapstructure:"max_mhz"`
	// Modules lists the source modules that carry a synthesizer.
	Modules []string `mapstructure:"modules"`
}

type CalibrationConfig struct {
	NoiseTable string `mapstructure:"noise_table"`
	CWTable    string `mapstructure:"cw_table"`
}

type HardwareConfig struct {
	ParamsFile      string `mapstructure:"params_file"`
	CompositionFile string `mapstructure:"composition_file"`
}

type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"port":      "serial.port",
	"baud":      "serial.baud_rate",
	"simulate":  "serial.simulate",
	"http-port": "server.http_port",
	"log-level": "log.level",
	"params":    "hardware.params_file",
}

// Load reads the YAML config at path. An empty path runs on defaults,
// environment (MTS_ prefix) and flags only. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults setzen
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.read_timeout", "1s")
	v.SetDefault("serial.simulate", false)
	v.SetDefault("synth.driver", "none")
	v.SetDefault("synth.timeout", "5s")
	v.SetDefault("synth.min_mhz", 137.5)
	v.SetDefault("synth.max_mhz", 4400.0)
	v.SetDefault("synth.modules", []string{})
	v.SetDefault("calibration.noise_table", "/etc/mts/noise_calib_table.data")
	v.SetDefault("calibration.cw_table", "/etc/mts/cw_calib_table.data")
	v.SetDefault("hardware.params_file", "/etc/mts/mts_params.yaml")
	v.SetDefault("hardware.composition_file", "")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetEnvPrefix("MTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Synth.Driver {
	case "none", "mock":
	default:
		return fmt.Errorf("unknown synth driver %q", c.Synth.Driver)
	}
	if !c.Serial.Simulate && c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required unless serial.simulate is set")
	}
	if c.Serial.BaudRate == 0 {
		return fmt.Errorf("serial.baud_rate must be positive")
	}
	return nil
}
