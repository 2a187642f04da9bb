package settings

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidSettings is matched by every *ValidationError.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrNotLoaded is returned when the document is used before Load.
	ErrNotLoaded = errors.New("settings not loaded")
)

// ValidationError lists the keys of a rejected submission and why each was rejected.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) add(key, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[key] = reason
}

// Error returns the offending keys in sorted order.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

// Is reports whether target is ErrInvalidSettings.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSettings
}
