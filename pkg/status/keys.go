package status

import (
	"fmt"

	"github.com/germanamz/nestbridge/pkg/shape"
	"github.com/germanamz/nestbridge/pkg/sli"
)

// Keys selects what GetStatus returns per entity. It is one of AllKeys,
// OneKey or KeyList.
type Keys interface {
	isKeys()
}

// AllKeys requests the full status dictionary of every entity.
type AllKeys struct{}

// OneKey requests a single field of every entity.
type OneKey struct {
	Name string
}

// KeyList requests a tuple of fields of every entity, in the given order.
type KeyList []string

func (AllKeys) isKeys() {}
func (OneKey) isKeys()  {}
func (KeyList) isKeys() {}

// ParseKeys classifies dynamically typed input. nil selects AllKeys.
func ParseKeys(x any) (Keys, error) {
	if x == nil {
		return AllKeys{}, nil
	}
	if name, ok := shape.Name(x); ok {
		return OneKey{Name: name}, nil
	}
	if elems, ok := shape.Elements(x); ok {
		names := make(KeyList, len(elems))
		for i, el := range elems {
			name, ok := shape.Name(el)
			if !ok {
				return nil, fmt.Errorf("%w (keys[%d] is %T)", ErrKeySpecification, i, el)
			}
			names[i] = name
		}
		return names, nil
	}
	return nil, fmt.Errorf("%w (got %T)", ErrKeySpecification, x)
}

func validateKeys(k Keys) error {
	switch k := k.(type) {
	case AllKeys:
		return nil
	case OneKey:
		return validKey(k.Name)
	case KeyList:
		for _, name := range k {
			if err := validKey(name); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w (got %T)", ErrKeySpecification, k)
	}
}

func validKey(name string) error {
	if !sli.ValidName(name) {
		return fmt.Errorf("%w %q", ErrInvalidKey, name)
	}
	return nil
}
