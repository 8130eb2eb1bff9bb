package document

import "fmt"

// Key identifies one logical document in the vault. The set is closed:
// every key maps to exactly one document type and one storage slot.
type Key string

// The logical keys the vault manages.
const (
	KeyNotes     Key = "notes"
	KeyNotebooks Key = "notebooks"
	KeySettings  Key = "settings"
	KeyTagColors Key = "tag-colors"
)

// allKeys is the enumeration order used by sweeps and CLI output.
var allKeys = []Key{KeyNotes, KeyNotebooks, KeySettings, KeyTagColors}

// Keys returns all logical keys in stable order. The slice is a copy.
func Keys() []Key {
	out := make([]Key, len(allKeys))
	copy(out, allKeys)

	return out
}

// Valid reports whether k is one of the known logical keys.
func (k Key) Valid() bool {
	switch k {
	case KeyNotes, KeyNotebooks, KeySettings, KeyTagColors:
		return true
	default:
		return false
	}
}

func (k Key) String() string {
	return string(k)
}

// ParseKey converts s to a [Key]. Returns [ErrUnknownKey] for anything
// outside the closed set.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}

	return k, nil
}
