// Package normalization maps free-form strings such as YAML values or CLI
// flags onto enum values.
package normalization

import (
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

// Normalizer provides type-safe string-to-enum normalization with error handling.
type Normalizer[T comparable] struct {
	kind     string
	values   map[string]T
	fallback T
	keys     []string // sorted, for error messages
}

// New creates a normalizer. kind names the enum in error messages, e.g.
// "log level". Keys of values are matched case-insensitively.
func New[T comparable](kind string, values map[string]T, fallback T) *Normalizer[T] {
	n := &Normalizer[T]{
		kind:     kind,
		values:   make(map[string]T, len(values)),
		fallback: fallback,
		keys:     make([]string, 0, len(values)),
	}
	for k, v := range values {
		key := clean(k)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	sort.Strings(n.keys)
	return n
}

// Normalize returns the matching value, or the fallback when raw is unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[clean(raw)]; ok {
		return v
	}
	return n.fallback
}

// Parse is Normalize that rejects unknown input with a validation error.
// Blank input yields the fallback.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	key := clean(raw)
	if key == "" {
		return n.fallback, nil
	}
	if v, ok := n.values[key]; ok {
		return v, nil
	}
	var zero T
	return zero, ferrors.ValidationError("invalid "+n.kind).
		WithContext("value", raw).
		WithContext("valid", strings.Join(n.keys, ", ")).
		Build()
}

// Keys returns the accepted spellings in sorted order.
func (n *Normalizer[T]) Keys() []string {
	return append([]string(nil), n.keys...)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
