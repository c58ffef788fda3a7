package chainspec

import (
	"fmt"
	"strings"
	"unicode"
)

// Profile selects the genesis configuration to materialize: a preset
// compiled into the node or a path to a spec file.
type Profile string

// Presets known to the node's chain_spec loader. Any other selector is
// treated by the node as a file path.
var Presets = []Profile{"dev", "local", "staging", "subsocial"}

// IsPreset reports whether p names a compiled-in preset.
func (p Profile) IsPreset() bool {
	for _, preset := range Presets {
		if p == preset {
			return true
		}
	}
	return false
}

// Validate rejects selectors the executable could misread: empty ones,
// ones that look like flags and ones containing whitespace or control
// characters.
func (p Profile) Validate() error {
	s := string(p)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("chain profile is empty")
	}
	if strings.HasPrefix(s, "-") {
		return fmt.Errorf("chain profile %q looks like a flag", s)
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("chain profile %q contains whitespace or control characters", s)
		}
	}
	return nil
}
