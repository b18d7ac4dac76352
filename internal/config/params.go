package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenMTS/internal/types"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Params is the hardware parameter file: one section per module plus the
// global kat7 section. Lookups fail on missing keys rather than returning
// zero values.
type Params struct {
	v    *viper.Viper
	path string
}

func LoadParams(path string) (*Params, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read hardware params: %w", err)
	}

	return &Params{v: v, path: path}, nil
}

// ParseParams reads hardware parameters from YAML bytes.
func ParseParams(data []byte) (*Params, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse hardware params: %w", err)
	}

	return &Params{v: v, path: "<memory>"}, nil
}

func (p *Params) get(section, key string) (interface{}, error) {
	full := section + "." + key
	if !p.v.IsSet(full) {
		return nil, fmt.Errorf("%s: missing parameter [%s] %s", p.path, section, key)
	}
	return p.v.Get(full), nil
}

// Has reports whether section.key is present.
func (p *Params) Has(section, key string) bool {
	return p.v.IsSet(section + "." + key)
}

func (p *Params) GetFloat(section, key string) (float64, error) {
	raw, err := p.get(section, key)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: [%s] %s: %w", p.path, section, key, err)
	}
	return f, nil
}

func (p *Params) GetInt(section, key string) (int, error) {
	raw, err := p.get(section, key)
	if err != nil {
		return 0, err
	}
	i, err := cast.ToIntE(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: [%s] %s: %w", p.path, section, key, err)
	}
	return i, nil
}

// GetString returns a string parameter with surrounding single quotes
// removed, so both ucs: ucs1 and ucs: "'ucs1'" read as ucs1.
func (p *Params) GetString(section, key string) (string, error) {
	raw, err := p.get(section, key)
	if err != nil {
		return "", err
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", fmt.Errorf("%s: [%s] %s: %w", p.path, section, key, err)
	}
	return strings.Trim(s, "'"), nil
}

// Bounds reads the attenuation and frequency limits of a module section.
func (p *Params) Bounds(section string) (types.Bounds, error) {
	var b types.Bounds
	fields := []struct {
		key string
		dst *float64
	}{
		{"min_atten", &b.MinAtten},
		{"max_atten", &b.MaxAtten},
		{"min_noise_freq_mhz", &b.MinNoiseMHz},
		{"max_noise_freq_mhz", &b.MaxNoiseMHz},
		{"min_cw_freq_mhz", &b.MinCWMHz},
		{"max_cw_freq_mhz", &b.MaxCWMHz},
	}

	for _, f := range fields {
		v, err := p.GetFloat(section, f.key)
		if err != nil {
			return types.Bounds{}, err
		}
		*f.dst = v
	}

	if b.MinAtten > b.MaxAtten {
		return types.Bounds{}, fmt.Errorf("[%s] min_atten %g above max_atten %g", section, b.MinAtten, b.MaxAtten)
	}

	return b, nil
}
