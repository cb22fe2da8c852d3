package cards

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Scheme identifies which lookup index a Key addresses.
type Scheme uint8

const (
	SchemeName Scheme = iota + 1
	SchemeID
	SchemeOracle
	SchemePrint
)

func (s Scheme) String() string {
	switch s {
	case SchemeName:
		return "name"
	case SchemeID:
		return "id"
	case SchemeOracle:
		return "oracle"
	case SchemePrint:
		return "print"
	default:
		return "unknown"
	}
}

// Key is a typed lookup key. The zero Key is invalid; construct keys with
// NameKey, IDKey, OracleKey, or PrintKey so normalization happens in one
// place. Keys are comparable and usable as map keys.
type Key struct {
	scheme Scheme
	value  string
	extra  string // collector number for print keys
}

// NameKey builds a case-folded name key.
func NameKey(name string) Key {
	return Key{scheme: SchemeName, value: Fold(name)}
}

// IDKey builds a key over the opaque print identifier.
func IDKey(id string) Key {
	return Key{scheme: SchemeID, value: strings.TrimSpace(id)}
}

// OracleKey builds a key over the identity shared by all printings.
func OracleKey(oracleID string) Key {
	return Key{scheme: SchemeOracle, value: strings.TrimSpace(oracleID)}
}

// PrintKey builds a composite set + collector-number key.
func PrintKey(setCode, collectorNumber string) Key {
	return Key{
		scheme: SchemePrint,
		value:  Fold(setCode),
		extra:  Fold(collectorNumber),
	}
}

// Scheme returns the index scheme the key addresses.
func (k Key) Scheme() Scheme { return k.scheme }

// Value returns the normalized primary value of the key.
func (k Key) Value() string { return k.value }

// IsZero reports whether the key was never constructed or normalized to empty.
func (k Key) IsZero() bool {
	return k.scheme == 0 || k.value == ""
}

// String renders the key in its on-disk form: "<scheme>:<value>", with print
// keys as "print:<set>:<number>".
func (k Key) String() string {
	if k.scheme == SchemePrint {
		return k.scheme.String() + ":" + k.value + ":" + k.extra
	}
	return k.scheme.String() + ":" + k.value
}

// ParseKey decodes the on-disk key-string form back into a typed Key.
func ParseKey(raw string) (Key, error) {
	scheme, rest, found := strings.Cut(raw, ":")
	if !found || rest == "" {
		return Key{}, fmt.Errorf("malformed cache key %q", raw)
	}
	switch scheme {
	case "name":
		return NameKey(rest), nil
	case "id":
		return IDKey(rest), nil
	case "oracle":
		return OracleKey(rest), nil
	case "print":
		set, number, ok := strings.Cut(rest, ":")
		if !ok || set == "" || number == "" {
			return Key{}, fmt.Errorf("malformed print key %q", raw)
		}
		return PrintKey(set, number), nil
	default:
		return Key{}, fmt.Errorf("unknown key scheme %q", scheme)
	}
}

// Fold normalizes a string for case-insensitive key comparison.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Keys derives every index key the record's fields support. A record always
// yields name and id keys; oracle and print keys are produced only when the
// backing fields are present.
func Keys(c Card) []Key {
	keys := make([]Key, 0, 4)
	if strings.TrimSpace(c.Name) != "" {
		keys = append(keys, NameKey(c.Name))
	}
	if strings.TrimSpace(c.ID) != "" {
		keys = append(keys, IDKey(c.ID))
	}
	if strings.TrimSpace(c.OracleID) != "" {
		keys = append(keys, OracleKey(c.OracleID))
	}
	if c.HasPrint() {
		keys = append(keys, PrintKey(c.SetCode, c.CollectorNumber))
	}
	return keys
}
