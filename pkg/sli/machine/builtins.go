package machine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
)

var errStackUnderflow = errors.New("StackUnderflow")

func (m *Machine) builtin(name string) (func(context.Context) error, bool) {
	switch name {
	case "pop":
		return func(context.Context) error { _, err := m.pop(); return err }, true
	case "dup":
		return m.dup, true
	case "exch":
		return m.exch, true
	case "count":
		return func(context.Context) error { m.push(int64(len(m.stack))); return nil }, true
	case "clear":
		return func(context.Context) error { m.stack = m.stack[:0]; return nil }, true
	case "==":
		return m.print, true
	case "arraystore":
		return m.arraystore, true
	case "arrayload":
		return m.arrayload, true
	case "Transpose":
		return m.transpose, true
	case "forall":
		return m.forall, true
	case "Map":
		return m.mapProc, true
	case "get":
		return m.get, true
	case "GetStatus":
		return m.getStatus, true
	case "SetStatus":
		return m.setStatus, true
	case "cvnodecollection":
		return m.cvnodecollection, true
	case "cvconnections":
		return m.cvconnections, true
	default:
		return nil, false
	}
}

func (m *Machine) dup(context.Context) error {
	if len(m.stack) == 0 {
		return errStackUnderflow
	}
	m.push(m.stack[len(m.stack)-1])
	return nil
}

func (m *Machine) exch(context.Context) error {
	n := len(m.stack)
	if n < 2 {
		return errStackUnderflow
	}
	m.stack[n-1], m.stack[n-2] = m.stack[n-2], m.stack[n-1]
	return nil
}

func (m *Machine) print(context.Context) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	s, err := sli.Encode(v)
	if err != nil {
		return fmt.Errorf("ArgumentType: cannot print %T", v)
	}
	m.out = append(m.out, s)
	return nil
}

func (m *Machine) arraystore(context.Context) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	n, ok := v.(int64)
	if !ok || n < 0 {
		return fmt.Errorf("ArgumentType: expected a non-negative integer, got %T", v)
	}
	if int64(len(m.stack)) < n {
		return errStackUnderflow
	}
	at := len(m.stack) - int(n)
	arr := slices.Clone(m.stack[at:])
	if arr == nil {
		arr = sli.Array{}
	}
	m.stack = m.stack[:at]
	m.push(sli.Array(arr))
	return nil
}

func (m *Machine) arrayload(context.Context) error {
	arr, err := m.popArray()
	if err != nil {
		return err
	}
	for _, el := range arr {
		m.push(el)
	}
	m.push(int64(len(arr)))
	return nil
}

func (m *Machine) transpose(context.Context) error {
	arr, err := m.popArray()
	if err != nil {
		return err
	}
	if len(arr) == 0 {
		m.push(sli.Array{})
		return nil
	}

	rows := make([]sli.Array, len(arr))
	for i, r := range arr {
		row, err := asArray(r)
		if err != nil {
			return err
		}
		if i > 0 && len(row) != len(rows[0]) {
			return fmt.Errorf("RangeCheck: row %d has length %d, expected %d", i, len(row), len(rows[0]))
		}
		rows[i] = row
	}

	cols := make(sli.Array, len(rows[0]))
	for j := range cols {
		col := make(sli.Array, len(rows))
		for i := range rows {
			col[i] = rows[i][j]
		}
		cols[j] = col
	}
	m.push(cols)
	return nil
}

func (m *Machine) forall(ctx context.Context) error {
	proc, arr, err := m.popProcAndArray()
	if err != nil {
		return err
	}
	for _, el := range arr {
		m.push(el)
		if err := m.run(ctx, proc); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) mapProc(ctx context.Context) error {
	proc, arr, err := m.popProcAndArray()
	if err != nil {
		return err
	}
	out := make(sli.Array, len(arr))
	for i, el := range arr {
		depth := len(m.stack)
		m.push(el)
		if err := m.run(ctx, proc); err != nil {
			return err
		}
		if len(m.stack) != depth+1 {
			return fmt.Errorf("RangeCheck: procedure left %d results, expected 1", len(m.stack)-depth)
		}
		out[i], _ = m.pop()
	}
	m.push(out)
	return nil
}

func (m *Machine) get(context.Context) error {
	key, err := m.pop()
	if err != nil {
		return err
	}
	container, err := m.pop()
	if err != nil {
		return err
	}

	switch c := container.(type) {
	case sli.Dict:
		switch k := key.(type) {
		case sli.Literal:
			v, ok := c[string(k)]
			if !ok {
				return unknownKey(errUndefinedKey, string(k), c)
			}
			m.push(v)
			return nil
		case sli.Array:
			out := make(sli.Array, len(k))
			for i, el := range k {
				lit, ok := el.(sli.Literal)
				if !ok {
					return fmt.Errorf("ArgumentType: key %d must be a literal, got %T", i, el)
				}
				v, ok := c[string(lit)]
				if !ok {
					return unknownKey(errUndefinedKey, string(lit), c)
				}
				out[i] = v
			}
			m.push(out)
			return nil
		}
	default:
		arr, err := asArray(container)
		if err != nil {
			break
		}
		idx, ok := key.(int64)
		if !ok {
			break
		}
		if idx < 0 || idx >= int64(len(arr)) {
			return fmt.Errorf("RangeCheck: index %d out of range [0, %d)", idx, len(arr))
		}
		m.push(arr[idx])
		return nil
	}
	return fmt.Errorf("ArgumentType: cannot index %T with %T", container, key)
}

var errUndefinedKey = errors.New("UndefinedName: key")

func (m *Machine) getStatus(context.Context) error {
	target, err := m.pop()
	if err != nil {
		return err
	}

	switch t := target.(type) {
	case handles.Nodes, handles.Connections:
		arr, _ := asArray(t)
		out := make(sli.Array, len(arr))
		for i, el := range arr {
			st, err := m.kernel.GetStatus(el)
			if err != nil {
				return err
			}
			out[i] = st
		}
		m.push(out)
		return nil
	default:
		st, err := m.kernel.GetStatus(target)
		if err != nil {
			return err
		}
		m.push(st)
		return nil
	}
}

func (m *Machine) setStatus(context.Context) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	params, ok := v.(sli.Dict)
	if !ok {
		return fmt.Errorf("ArgumentType: expected a dictionary, got %T", v)
	}
	target, err := m.pop()
	if err != nil {
		return err
	}

	switch t := target.(type) {
	case handles.Nodes, handles.Connections:
		arr, _ := asArray(t)
		for _, el := range arr {
			if err := m.kernel.SetStatus(el, params); err != nil {
				return err
			}
		}
		return nil
	default:
		return m.kernel.SetStatus(target, params)
	}
}

func (m *Machine) cvnodecollection(context.Context) error {
	arr, err := m.popArray()
	if err != nil {
		return err
	}
	s, err := handles.Parse(arr)
	if err != nil || handles.IsSequenceOfConnections(s) {
		return errors.New("ArgumentType: expected an array of node ids")
	}
	m.push(s)
	return nil
}

func (m *Machine) cvconnections(context.Context) error {
	arr, err := m.popArray()
	if err != nil {
		return err
	}
	if len(arr) == 0 {
		m.push(handles.Connections{})
		return nil
	}
	s, err := handles.Parse(arr)
	if err != nil || !handles.IsSequenceOfConnections(s) {
		return errors.New("ArgumentType: expected an array of connection tuples")
	}
	m.push(s)
	return nil
}

func (m *Machine) popArray() (sli.Array, error) {
	v, err := m.pop()
	if err != nil {
		return nil, err
	}
	return asArray(v)
}

func (m *Machine) popProcAndArray() (procedure, sli.Array, error) {
	v, err := m.pop()
	if err != nil {
		return nil, nil, err
	}
	proc, ok := v.(procedure)
	if !ok {
		return nil, nil, fmt.Errorf("ArgumentType: expected a procedure, got %T", v)
	}
	arr, err := m.popArray()
	if err != nil {
		return nil, nil, err
	}
	return proc, arr, nil
}

// asArray views arrays and handle sequences as a plain array. Node
// collections yield node ids; connection sequences yield connection handles.
func asArray(v any) (sli.Array, error) {
	switch a := v.(type) {
	case sli.Array:
		return a, nil
	case handles.Nodes:
		out := make(sli.Array, len(a))
		for i, id := range a {
			out[i] = id
		}
		return out, nil
	case handles.Connections:
		out := make(sli.Array, len(a))
		for i, c := range a {
			out[i] = c
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ArgumentType: expected an array, got %T", v)
	}
}
