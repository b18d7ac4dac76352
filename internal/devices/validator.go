package devices

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenMTS/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/composition-v1.json
var compositionSchemaJSON string

type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("composition-v1.json",
		strings.NewReader(compositionSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("composition-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDocument checks a composition given as JSON.
func (v *Validator) ValidateDocument(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// ValidateComposition runs the schema and the cross-entry rules the schema
// cannot express: unique names, unique module numbers.
func (v *Validator) ValidateComposition(comp *types.Composition) error {
	data, err := json.Marshal(comp)
	if err != nil {
		return fmt.Errorf("failed to marshal composition: %w", err)
	}
	if err := v.ValidateDocument(data); err != nil {
		return err
	}

	names := make(map[string]bool)
	numbers := make(map[int]string)
	check := func(name string, module int) error {
		if names[name] {
			return fmt.Errorf("duplicate module name %s", name)
		}
		if other, ok := numbers[module]; ok {
			return fmt.Errorf("module number %d used by both %s and %s", module, other, name)
		}
		names[name] = true
		numbers[module] = name
		return nil
	}

	for _, src := range comp.Sources {
		if err := check(src.Name, src.Module); err != nil {
			return err
		}
	}
	for _, cmb := range comp.Combiners {
		if err := check(cmb.Name, cmb.Module); err != nil {
			return err
		}
	}

	return nil
}
