package sli

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/germanamz/nestbridge/pkg/handles"
)

// ErrUnencodable is returned for values that have no SLI representation.
var ErrUnencodable = errors.New("sli: value cannot be encoded")

// Encode returns SLI source text that, when executed, pushes exactly v.
// Dictionary keys are written in sorted order.
func Encode(v any) (string, error) {
	var b strings.Builder
	if err := encodeTo(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Validate reports whether v can be encoded.
func Validate(v any) error {
	_, err := Encode(v)
	return err
}

func encodeTo(b *strings.Builder, v any) error {
	switch v := v.(type) {
	case nil:
		return fmt.Errorf("%w: nil", ErrUnencodable)
	case bool:
		b.WriteString(strconv.FormatBool(v))
		return nil
	case string:
		writeString(b, v)
		return nil
	case Literal:
		if !ValidName(string(v)) {
			return fmt.Errorf("%w: invalid literal name %q", ErrUnencodable, string(v))
		}
		b.WriteByte('/')
		b.WriteString(string(v))
		return nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			b.WriteString(strconv.FormatInt(n, 10))
			return nil
		}
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("%w: number %q", ErrUnencodable, v.String())
		}
		return writeFloat(b, f)
	case float64:
		return writeFloat(b, v)
	case float32:
		return writeFloat(b, float64(v))
	case handles.Nodes:
		b.WriteString("[")
		for _, id := range v {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatInt(id, 10))
		}
		b.WriteString(" ] cvnodecollection")
		return nil
	case handles.Connections:
		b.WriteString("[")
		for _, c := range v {
			b.WriteString(" [")
			for _, f := range c.Fields() {
				b.WriteByte(' ')
				b.WriteString(strconv.FormatInt(f, 10))
			}
			b.WriteString(" ]")
		}
		b.WriteString(" ] cvconnections")
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return fmt.Errorf("%w: %d overflows a 64-bit integer", ErrUnencodable, u)
		}
		b.WriteString(strconv.FormatUint(u, 10))
		return nil
	case reflect.String:
		writeString(b, rv.String())
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: dictionary keys must be names, got %s", ErrUnencodable, rv.Type().Key())
		}
		return encodeMap(b, rv)
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			writeString(b, string(rv.Bytes()))
			return nil
		}
		b.WriteString("[")
		for i := range rv.Len() {
			b.WriteByte(' ')
			if err := encodeTo(b, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		b.WriteString(" ]")
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnencodable, v)
	}
}

func encodeMap(b *strings.Builder, rv reflect.Value) error {
	keys := make([]string, 0, rv.Len())
	values := make(map[string]reflect.Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		if !ValidName(k) {
			return fmt.Errorf("%w: invalid dictionary key %q", ErrUnencodable, k)
		}
		keys = append(keys, k)
		values[k] = iter.Value()
	}
	slices.Sort(keys)

	b.WriteString("<<")
	for _, k := range keys {
		b.WriteString(" /")
		b.WriteString(k)
		b.WriteByte(' ')
		if err := encodeTo(b, values[k].Interface()); err != nil {
			return fmt.Errorf("/%s: %w", k, err)
		}
	}
	b.WriteString(" >>")
	return nil
}

func writeFloat(b *strings.Builder, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v", ErrUnencodable, f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	b.WriteString(s)
	return nil
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`(`, `\(`,
	`)`, `\)`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

func writeString(b *strings.Builder, s string) {
	b.WriteByte('(')
	b.WriteString(stringEscaper.Replace(s))
	b.WriteByte(')')
}
