package status

import (
	"fmt"

	"github.com/germanamz/nestbridge/pkg/broadcast"
	"github.com/germanamz/nestbridge/pkg/shape"
	"github.com/germanamz/nestbridge/pkg/sli"
)

// Params is a parameter specification for SetStatus. It is one of Single,
// PerEntity or Named.
type Params interface {
	isParams()
}

// Single applies one dictionary to every entity.
type Single struct {
	Dict sli.Dict
}

// PerEntity holds one dictionary per entity. A list of length 1 is applied
// to every entity.
type PerEntity struct {
	Dicts []sli.Dict
}

// Named sets one parameter. A scalar Value is applied to every entity; a
// list Value holds one value per entity.
type Named struct {
	Key   string
	Value any
}

func (Single) isParams()    {}
func (PerEntity) isParams() {}
func (Named) isParams()     {}

var paramsTypes = []string{"a dictionary", "a list of dictionaries", "a parameter name with val"}

// ParseParams classifies dynamically typed input. val is only consulted when
// params is a parameter name.
func ParseParams(params, val any) (Params, error) {
	if name, ok := shape.Name(params); ok {
		if val == nil {
			return nil, &TypeMismatchError{Field: "params", Allowed: paramsTypes, Got: "a parameter name without val"}
		}
		return Named{Key: name, Value: val}, nil
	}

	if d, ok := shape.Mapping(params); ok {
		return Single{Dict: d}, nil
	}

	if elems, ok := shape.Elements(params); ok {
		list := make([]any, len(elems))
		for i, el := range elems {
			list[i] = el
			if d, ok := shape.Mapping(el); ok {
				list[i] = d
			}
		}
		dicts, err := broadcast.Value[sli.Dict](list, len(list), "params")
		if err != nil {
			return nil, err
		}
		return PerEntity{Dicts: dicts}, nil
	}

	return nil, &TypeMismatchError{Field: "params", Allowed: paramsTypes, Got: fmt.Sprintf("%T", params)}
}

// Normalize broadcasts p to exactly n dictionaries, one per entity, in
// entity order.
func Normalize(p Params, n int) ([]sli.Dict, error) {
	var (
		dicts []sli.Dict
		err   error
	)

	switch p := p.(type) {
	case Single:
		dicts, err = broadcast.Slice([]sli.Dict{p.Dict}, n, "params")
	case PerEntity:
		dicts, err = broadcast.Slice(p.Dicts, n, "params")
	case Named:
		dicts, err = broadcast.Slice(p.dicts(), n, "val")
	case nil:
		return nil, &TypeMismatchError{Field: "params", Allowed: paramsTypes, Got: "nothing"}
	default:
		return nil, &TypeMismatchError{Field: "params", Allowed: paramsTypes, Got: fmt.Sprintf("%T", p)}
	}
	if err != nil {
		return nil, err
	}

	if len(dicts) != n {
		return nil, &TypeMismatchError{
			Field:   "params",
			Allowed: []string{"dictionaries", fmt.Sprintf("a list of exactly 1 or %d entries", n)},
			Got:     fmt.Sprintf("%d entries", len(dicts)),
		}
	}
	return dicts, nil
}

func (p Named) dicts() []sli.Dict {
	if shape.IsIterable(p.Value) {
		elems, _ := shape.Elements(p.Value)
		out := make([]sli.Dict, len(elems))
		for i, v := range elems {
			out[i] = sli.Dict{p.Key: v}
		}
		return out
	}
	return []sli.Dict{{p.Key: p.Value}}
}
