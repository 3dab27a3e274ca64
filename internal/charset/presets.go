package charset

import (
	"fmt"
	"sort"
	"strings"
)

const (
	Digits  Alphabet = "0123456789"
	Lower   Alphabet = "abcdefghijklmnopqrstuvwxyz"
	Upper   Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Alnum            = Lower + Upper + Digits
	Complex          = Alnum + "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// PresetCustom selects the custom_charset value instead of a preset
const PresetCustom = "custom"

var presets = map[string]Alphabet{
	"digits":  Digits,
	"lower":   Lower,
	"upper":   Upper,
	"alnum":   Alnum,
	"complex": Complex,
}

// PresetNames returns the known preset names in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve turns a preset name (or "custom" plus the custom characters) into
// an alphabet. Names are case-insensitive.
func Resolve(name, custom string) (Alphabet, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == PresetCustom {
		a := Alphabet(custom)
		if err := a.Validate(); err != nil {
			return "", fmt.Errorf("custom charset: %w", err)
		}
		return a, nil
	}
	a, ok := presets[key]
	if !ok {
		return "", fmt.Errorf("%w %q (valid: %s, %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "), PresetCustom)
	}
	return a, nil
}

// HasDuplicates reports whether the alphabet repeats a character
func HasDuplicates(a Alphabet) bool {
	var seen [256]bool
	for i := 0; i < len(a); i++ {
		if seen[a[i]] {
			return true
		}
		seen[a[i]] = true
	}
	return false
}
