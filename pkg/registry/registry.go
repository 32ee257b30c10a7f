// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"shopping-assistant/internal/common/validation"
	"shopping-assistant/internal/models"
)

//go:embed modes.json
var defaultModes []byte

var registrySchema = validation.MustCompile(validation.ModeRegistrySchema)

// LoadRegistry reads and validates a mode table from path.
func LoadRegistry(path string) (*ModeRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the embedded mode table.
func Default() (*ModeRegistry, error) {
	return Parse(defaultModes)
}

// Load returns the table at path, or the embedded default when path is empty.
func Load(path string) (*ModeRegistry, error) {
	if path == "" {
		return Default()
	}
	return LoadRegistry(path)
}

// Parse decodes and structurally validates a mode table document.
func Parse(data []byte) (*ModeRegistry, error) {
	if result := registrySchema.ValidateBytes(data); !result.Valid {
		return nil, fmt.Errorf("invalid mode registry: %s", validation.FormatErrors(result.Errors))
	}

	var reg ModeRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode mode registry: %w", err)
	}

	reg.index = make(map[models.ResponseMode]ModeEntry, len(reg.Modes))
	for _, m := range reg.Modes {
		if !m.Mode.Valid() {
			return nil, fmt.Errorf("unknown mode %q", m.Mode)
		}
		if _, dup := reg.index[m.Mode]; dup {
			return nil, fmt.Errorf("duplicate mode %q", m.Mode)
		}
		reg.index[m.Mode] = m
	}
	return &reg, nil
}

// Validate checks that every mode is present and that each names one of
// knownProviders.
func (r *ModeRegistry) Validate(knownProviders []string) error {
	for _, mode := range models.AllModes() {
		if _, ok := r.index[mode]; !ok {
			return fmt.Errorf("mode %q missing from registry", mode)
		}
	}

	known := make(map[string]bool, len(knownProviders))
	for _, p := range knownProviders {
		known[p] = true
	}
	for _, m := range r.Modes {
		if !known[m.Provider] {
			return fmt.Errorf("mode %q uses unknown provider %q", m.Mode, m.Provider)
		}
	}
	return nil
}

// Lookup returns the entry for mode.
func (r *ModeRegistry) Lookup(mode models.ResponseMode) (ModeEntry, bool) {
	e, ok := r.index[mode]
	return e, ok
}

// WithProvider returns a copy of the registry with every mode routed to
// provider.
func (r *ModeRegistry) WithProvider(provider string) *ModeRegistry {
	out := &ModeRegistry{
		Version:     r.Version,
		LastUpdated: r.LastUpdated,
		Modes:       make([]ModeEntry, len(r.Modes)),
		index:       make(map[models.ResponseMode]ModeEntry, len(r.Modes)),
	}
	for i, m := range r.Modes {
		m.Provider = provider
		out.Modes[i] = m
		out.index[m.Mode] = m
	}
	return out
}
