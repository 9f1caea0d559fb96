package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel kinds for model errors.
var (
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidOrganizerType = errors.New("invalid organizer type")
	ErrValidation           = errors.New("invalid event draft")
)

// EnumError reports a value outside a closed enumeration.
type EnumError struct {
	Kind  error
	Value string
}

func (e *EnumError) Error() string {
	return fmt.Sprintf("%s: %q", e.Kind, e.Value)
}

func (e *EnumError) Unwrap() error { return e.Kind }

// ValidationError lists every draft field that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
}

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
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
