// Package shape classifies dynamically typed values at the boundary where
// untyped caller input (JSON, YAML, command lines) enters the module.
//
// The predicates are pure and only look at the value's structure.
package shape

import (
	"encoding/json"
	"reflect"
)

// IsLiteral reports whether x is an atomic name: a string or a type whose
// underlying kind is string. json.Number is a number, not a name.
func IsLiteral(x any) bool {
	if _, ok := x.(json.Number); ok {
		return false
	}
	return x != nil && reflect.TypeOf(x).Kind() == reflect.String
}

// IsMapping reports whether x is a map keyed by strings.
func IsMapping(x any) bool {
	if x == nil {
		return false
	}
	t := reflect.TypeOf(x)
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

// IsIterable reports whether x is an ordered collection that is neither a
// mapping nor string-like. Byte slices count as string-like.
func IsIterable(x any) bool {
	if x == nil {
		return false
	}
	t := reflect.TypeOf(x)
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

// Elements returns the elements of an iterable value as a []any.
// It returns nil, false when x is not iterable.
func Elements(x any) ([]any, bool) {
	if !IsIterable(x) {
		return nil, false
	}
	if s, ok := x.([]any); ok {
		return s, true
	}

	rv := reflect.ValueOf(x)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Mapping returns x as a map[string]any. Maps with other string-kinded key or
// value types are copied. It returns nil, false when x is not a mapping.
func Mapping(x any) (map[string]any, bool) {
	if !IsMapping(x) {
		return nil, false
	}
	if m, ok := x.(map[string]any); ok {
		return m, true
	}

	rv := reflect.ValueOf(x)
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// Name returns the string form of a literal. The second result is false when
// x is not a literal.
func Name(x any) (string, bool) {
	if !IsLiteral(x) {
		return "", false
	}
	return reflect.ValueOf(x).String(), true
}
