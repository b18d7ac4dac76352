package types

// Composition is the static wiring of the generator: which controller module
// carries which source, and which sources feed each combiner output.
type Composition struct {
	Sources   []SourceConfig   `yaml:"sources" json:"sources"`
	Combiners []CombinerConfig `yaml:"combiners" json:"combiners"`
}

type SourceConfig struct {
	Name      string `yaml:"name" json:"name"`
	Module    int    `yaml:"module" json:"module"`
	Available bool   `yaml:"available" json:"available"`
}

type CombinerConfig struct {
	Name      string `yaml:"name" json:"name"`
	Module    int    `yaml:"module" json:"module"`
	Available bool   `yaml:"available" json:"available"`
	// Uncorrelated and Correlated name the sources feeding this output.
	// Empty means the hardware parameter file decides.
	Uncorrelated string `yaml:"ucs,omitempty" json:"ucs,omitempty"`
	Correlated   string `yaml:"cs,omitempty" json:"cs,omitempty"`
}
