package gains

import "strings"

// Built-in preset names.
const (
	PresetFlat   = "flat"
	PresetBass   = "bass"
	PresetTreble = "treble"
	PresetVShape = "vshape"
)

var presetOrder = []string{PresetFlat, PresetBass, PresetTreble, PresetVShape}

var presets = map[string]Vector{
	PresetFlat:   {0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	PresetBass:   {4, 3, 2, 1, 0, 0, -1, -2, -3, -4},
	PresetTreble: {-4, -3, -2, -1, 0, 0, 1, 2, 3, 4},
	PresetVShape: {3, 2, 1, 0, -1, -2, 1, 2, 3, 4},
}

// PresetNames returns the preset names in display order.
func PresetNames() []string {
	out := make([]string, len(presetOrder))
	copy(out, presetOrder)
	return out
}

// IsPreset reports whether name (case-insensitive, trimmed) is a preset.
func IsPreset(name string) bool {
	_, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// ResolvePreset returns the vector for a preset name, ignoring case and
// surrounding whitespace.
func ResolvePreset(name string) (Vector, error) {
	v, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Vector{}, unknownPreset(name)
	}
	return v, nil
}
