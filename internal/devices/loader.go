package devices

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/KevinKickass/OpenMTS/internal/types"
	"gopkg.in/yaml.v3"
)

// DefaultComposition is the wiring of the KAT-7 MTS: two uncorrelated
// sources, one correlated source and two combiner outputs.
func DefaultComposition() *types.Composition {
	return &types.Composition{
		Sources: []types.SourceConfig{
			{Name: "ucs1", Module: 1, Available: true},
			{Name: "ucs2", Module: 2, Available: true},
			{Name: "cs1", Module: 3, Available: true},
		},
		Combiners: []types.CombinerConfig{
			{Name: "comb1", Module: 4, Available: true},
			{Name: "comb2", Module: 5, Available: true},
		},
	}
}

// LoadComposition reads and validates a composition file. An empty path
// yields DefaultComposition.
func LoadComposition(path string) (*types.Composition, error) {
	if path == "" {
		return DefaultComposition(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read composition: %w", err)
	}

	return ParseComposition(data)
}

// ParseComposition decodes a YAML composition document. Entries without an
// explicit "available" key are available.
func ParseComposition(data []byte) (*types.Composition, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}

	// The schema sees the document as written, unknown keys included.
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal composition: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("composition is not representable as JSON: %w", err)
	}
	if err := validator.ValidateDocument(asJSON); err != nil {
		return nil, fmt.Errorf("invalid composition: %w", err)
	}

	var raw struct {
		Sources []struct {
			Name      string `yaml:"name"`
			Module    int    `yaml:"module"`
			Available *bool  `yaml:"available"`
		} `yaml:"sources"`
		Combiners []struct {
			Name      string `yaml:"name"`
			Module    int    `yaml:"module"`
			Available *bool  `yaml:"available"`
			UCS       string `yaml:"ucs"`
			CS        string `yaml:"cs"`
		} `yaml:"combiners"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal composition: %w", err)
	}

	available := func(b *bool) bool { return b == nil || *b }

	comp := &types.Composition{}
	for _, s := range raw.Sources {
		comp.Sources = append(comp.Sources, types.SourceConfig{
			Name:      s.Name,
			Module:    s.Module,
			Available: available(s.Available),
		})
	}
	for _, c := range raw.Combiners {
		comp.Combiners = append(comp.Combiners, types.CombinerConfig{
			Name:         c.Name,
			Module:       c.Module,
			Available:    available(c.Available),
			Uncorrelated: c.UCS,
			Correlated:   c.CS,
		})
	}

	if err := validator.ValidateComposition(comp); err != nil {
		return nil, fmt.Errorf("invalid composition: %w", err)
	}

	return comp, nil
}
