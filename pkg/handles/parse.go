package handles

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var connectionKeys = [ConnectionFields]string{"source", "target", "target_thread", "synapse_modelid", "port"}

// Parse converts a dynamically typed value, typically decoded from JSON or
// YAML, into a Sequence.
//
// A list of integers is a node collection. A list whose elements are either
// five-integer lists or objects carrying the connection fields is a
// connection sequence. An empty list is an empty node collection.
func Parse(x any) (Sequence, error) {
	switch v := x.(type) {
	case Nodes:
		return v, nil
	case Connections:
		return v, nil
	case nil:
		return nil, ErrInvalid
	}

	rv := reflect.ValueOf(x)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w (got %T)", ErrInvalid, x)
	}

	n := rv.Len()
	if n == 0 {
		return Nodes{}, nil
	}

	if _, err := toInt(rv.Index(0).Interface()); err == nil {
		nodes := make(Nodes, n)
		for i := range n {
			id, err := toInt(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("handles: node %d: %w", i, err)
			}
			nodes[i] = id
		}
		return nodes, nil
	}

	conns := make(Connections, n)
	for i := range n {
		c, err := parseConnection(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("handles: connection %d: %w", i, err)
		}
		conns[i] = c
	}
	return conns, nil
}

func parseConnection(x any) (Connection, error) {
	if c, ok := x.(Connection); ok {
		return c, nil
	}

	var f [ConnectionFields]int64

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() != ConnectionFields {
			return Connection{}, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalid, ConnectionFields, rv.Len())
		}
		for i := range ConnectionFields {
			v, err := toInt(rv.Index(i).Interface())
			if err != nil {
				return Connection{}, err
			}
			f[i] = v
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Connection{}, fmt.Errorf("%w: connection object keys must be strings", ErrInvalid)
		}
		for i, key := range connectionKeys {
			mv := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
			if !mv.IsValid() {
				return Connection{}, fmt.Errorf("%w: missing %q", ErrInvalid, key)
			}
			v, err := toInt(mv.Interface())
			if err != nil {
				return Connection{}, fmt.Errorf("%q: %w", key, err)
			}
			f[i] = v
		}
	default:
		return Connection{}, fmt.Errorf("%w (got %T)", ErrInvalid, x)
	}

	return ConnectionFromFields(f), nil
}

func toInt(x any) (int64, error) {
	switch v := x.(type) {
	case json.Number:
		return strconv.ParseInt(v.String(), 10, 64)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case float32:
		return toInt(float64(v))
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	default:
		return 0, fmt.Errorf("%v (%T) is not an integer", x, x)
	}
}

// MaxListLen caps the number of node ids ParseList expands ranges into.
const MaxListLen = 1 << 20

// ParseList parses the compact textual form used on command lines.
//
// Node collections are written as comma-separated ids with optional ranges,
// e.g. "1,2,5-7". Connection sequences start with "c:" and list
// source-target pairs, optionally followed by thread, synapse model id and
// port, e.g. "c:1-2,3-4:0:0:1".
func ParseList(s string) (Sequence, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Nodes{}, nil
	}

	if rest, ok := strings.CutPrefix(s, "c:"); ok {
		var conns Connections
		for _, item := range strings.Split(rest, ",") {
			c, err := parseConnectionItem(item)
			if err != nil {
				return nil, err
			}
			conns = append(conns, c)
		}
		return conns, nil
	}

	var nodes Nodes
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		lo, hi, isRange := strings.Cut(item, "-")
		first, err := strconv.ParseInt(lo, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("handles: invalid node id %q", item)
		}
		last := first
		if isRange {
			last, err = strconv.ParseInt(hi, 10, 64)
			if err != nil || last < first {
				return nil, fmt.Errorf("handles: invalid node range %q", item)
			}
		}
		if last-first >= int64(MaxListLen-len(nodes)) {
			return nil, fmt.Errorf("handles: node range %q exceeds %d ids", item, MaxListLen)
		}
		for id := first; id <= last; id++ {
			nodes = append(nodes, id)
		}
	}
	return nodes, nil
}

func parseConnectionItem(item string) (Connection, error) {
	parts := strings.Split(strings.TrimSpace(item), ":")
	src, tgt, ok := strings.Cut(parts[0], "-")
	if !ok || len(parts) > 4 {
		return Connection{}, fmt.Errorf("handles: invalid connection %q", item)
	}

	var f [ConnectionFields]int64
	fields := append([]string{src, tgt}, parts[1:]...)
	for i, p := range fields {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return Connection{}, fmt.Errorf("handles: invalid connection %q", item)
		}
		f[i] = v
	}
	return ConnectionFromFields(f), nil
}
