// Package key derives namespaced ledger keys from an entity kind and its
// identifying attributes. Two distinct (kind, attrs) tuples never collide and
// derived keys sort lexicographically by kind, then by each attribute in
// order, which keeps per-kind range scans and history lookups stable.
package key

import (
	"strings"

	dErrors "veryphy/pkg/domain-errors"
)

// sep is U+0000, which cannot appear in a valid kind or attribute, so the
// joined form is unambiguous and preserves component-wise ordering.
const sep = "\x00"

// Key is the flat form written to the substrate.
type Key string

// Make derives a composite key. Empty kind, no attributes, or any empty or
// separator-containing attribute is malformed input.
func Make(kind string, attrs ...string) (Key, error) {
	if kind == "" {
		return "", dErrors.New(dErrors.CodeInvalidKey, "empty kind")
	}
	if strings.Contains(kind, sep) {
		return "", dErrors.New(dErrors.CodeInvalidKey, "kind contains reserved separator")
	}
	if len(attrs) == 0 {
		return "", dErrors.New(dErrors.CodeInvalidKey, "at least one attribute required")
	}
	var b strings.Builder
	b.WriteString(kind)
	for _, a := range attrs {
		if a == "" {
			return "", dErrors.New(dErrors.CodeInvalidKey, "empty attribute")
		}
		if strings.Contains(a, sep) {
			return "", dErrors.New(dErrors.CodeInvalidKey, "attribute contains reserved separator")
		}
		b.WriteString(sep)
		b.WriteString(a)
	}
	return Key(b.String()), nil
}

func (k Key) String() string { return string(k) }
