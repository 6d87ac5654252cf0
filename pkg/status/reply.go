package status

import (
	"fmt"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
)

// Reply is the result of GetStatus. Values holds one entry per handle whose
// shape follows Keys: a dictionary for AllKeys, a scalar for OneKey and an
// ordered list for KeyList. For an empty handle sequence Values is nil and
// Handles is the sequence that was passed in.
type Reply struct {
	Handles handles.Sequence
	Keys    Keys
	Values  []any
}

// Len returns the number of per-entity values.
func (r Reply) Len() int { return len(r.Values) }

// Dicts returns the values of an AllKeys query.
func (r Reply) Dicts() ([]sli.Dict, error) {
	if _, ok := r.Keys.(AllKeys); !ok {
		return nil, fmt.Errorf("status: reply holds %s, not dictionaries", describeKeys(r.Keys))
	}
	out := make([]sli.Dict, len(r.Values))
	for i, v := range r.Values {
		d, ok := v.(sli.Dict)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is %T, expected a dictionary", ErrUnexpectedReply, i, v)
		}
		out[i] = d
	}
	return out, nil
}

// Scalars returns the values of a OneKey query.
func (r Reply) Scalars() ([]any, error) {
	if _, ok := r.Keys.(OneKey); !ok {
		return nil, fmt.Errorf("status: reply holds %s, not scalars", describeKeys(r.Keys))
	}
	return r.Values, nil
}

// Tuples returns the values of a KeyList query.
func (r Reply) Tuples() ([][]any, error) {
	if _, ok := r.Keys.(KeyList); !ok {
		return nil, fmt.Errorf("status: reply holds %s, not tuples", describeKeys(r.Keys))
	}
	out := make([][]any, len(r.Values))
	for i, v := range r.Values {
		tuple, ok := v.(sli.Array)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is %T, expected a list", ErrUnexpectedReply, i, v)
		}
		out[i] = tuple
	}
	return out, nil
}

func describeKeys(k Keys) string {
	switch k.(type) {
	case AllKeys:
		return "dictionaries"
	case OneKey:
		return "scalars"
	case KeyList:
		return "tuples"
	default:
		return "no values"
	}
}

// decodeReply checks that the popped value has the shape k implies for n
// handles. The interpreter does all reshaping; nothing is transformed here.
func decodeReply(v any, n int, k Keys) ([]any, error) {
	arr, ok := v.(sli.Array)
	if !ok {
		return nil, fmt.Errorf("%w: expected an array, got %T", ErrUnexpectedReply, v)
	}
	if len(arr) != n {
		return nil, fmt.Errorf("%w: expected %d entries, got %d", ErrUnexpectedReply, n, len(arr))
	}

	for i, el := range arr {
		switch k := k.(type) {
		case AllKeys:
			if _, ok := el.(sli.Dict); !ok {
				return nil, fmt.Errorf("%w: entry %d is %T, expected a dictionary", ErrUnexpectedReply, i, el)
			}
		case KeyList:
			tuple, ok := el.(sli.Array)
			if !ok || len(tuple) != len(k) {
				return nil, fmt.Errorf("%w: entry %d is not a list of %d values", ErrUnexpectedReply, i, len(k))
			}
		}
	}
	return arr, nil
}
