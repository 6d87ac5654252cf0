// Package broadcast expands a single value, or a length-1 list, into one
// value per entity.
//
// Any list given to the broadcaster must have length exactly 1 or exactly
// the entity count; other lengths are rejected with a ShapeMismatchError.
package broadcast

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrShapeMismatch matches every *ShapeMismatchError.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrTypeMismatch matches every *TypeMismatchError.
	ErrTypeMismatch = errors.New("type mismatch")
)

// ShapeMismatchError reports a list whose length is neither 1 nor the
// required entity count.
type ShapeMismatchError struct {
	Field    string
	Expected int
	Actual   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected a list of length 1 or %d, got length %d", e.Field, e.Expected, e.Actual)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// TypeMismatchError reports a value that is none of the types a field accepts.
type TypeMismatchError struct {
	Field   string
	Allowed []string
	Got     string
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("%s must be %s", e.Field, strings.Join(e.Allowed, " or "))
	if e.Got != "" {
		msg += ", got " + e.Got
	}
	return msg
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// Slice broadcasts values to exactly count elements. A single element is
// replicated; a list of length count is returned unchanged.
func Slice[T any](values []T, count int, field string) ([]T, error) {
	switch len(values) {
	case count:
		return values, nil
	case 1:
		out := make([]T, count)
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	default:
		return nil, &ShapeMismatchError{Field: field, Expected: count, Actual: len(values)}
	}
}

// Value broadcasts a dynamically typed value whose allowed type is T.
// It accepts a single T, a []T, or a []any whose elements are all T.
func Value[T any](value any, count int, field string) ([]T, error) {
	switch v := value.(type) {
	case T:
		return Slice([]T{v}, count, field)
	case []T:
		return Slice(v, count, field)
	case []any:
		out := make([]T, len(v))
		for i, el := range v {
			t, ok := el.(T)
			if !ok {
				return nil, typeMismatch[T](fmt.Sprintf("%s[%d]", field, i), el)
			}
			out[i] = t
		}
		return Slice(out, count, field)
	default:
		return nil, typeMismatch[T](field, value)
	}
}

func typeMismatch[T any](field string, got any) *TypeMismatchError {
	one, many := describe(reflect.TypeFor[T]())
	return &TypeMismatchError{
		Field:   field,
		Allowed: []string{one, many},
		Got:     fmt.Sprintf("%T", got),
	}
}

// describe names t for error messages. String-keyed maps read as
// dictionaries.
func describe(t reflect.Type) (one, many string) {
	if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		return "a dictionary", "a list of dictionaries"
	}
	return t.String(), "a list of " + t.String()
}
