package status

import (
	"errors"

	"github.com/germanamz/nestbridge/pkg/broadcast"
	"github.com/germanamz/nestbridge/pkg/handles"
)

var (
	// ErrInvalidHandles is returned when the handles argument is not a node
	// collection or a sequence of connection handles.
	ErrInvalidHandles = handles.ErrInvalid
	// ErrKeySpecification is returned when keys is neither a name nor a list
	// of names.
	ErrKeySpecification = errors.New("keys should be either a string or an iterable")
	// ErrInvalidKey is returned for key names that are not valid SLI names.
	ErrInvalidKey = errors.New("status: invalid key name")
	// ErrUnexpectedReply is returned when the interpreter's reply does not
	// have the shape the query implies.
	ErrUnexpectedReply = errors.New("status: unexpected reply shape")
	// ErrStackImbalance is returned by sessions with stack checking when an
	// operation changed the interpreter's stack depth.
	ErrStackImbalance = errors.New("status: operand stack depth changed")
	// ErrShapeMismatch matches errors for lists of the wrong length.
	ErrShapeMismatch = broadcast.ErrShapeMismatch
	// ErrTypeMismatch matches errors for params or values of the wrong type.
	ErrTypeMismatch = broadcast.ErrTypeMismatch
)

type (
	// ShapeMismatchError reports a list whose length is neither 1 nor the
	// number of handles.
	ShapeMismatchError = broadcast.ShapeMismatchError
	// TypeMismatchError reports a value of a type the field does not accept.
	TypeMismatchError = broadcast.TypeMismatchError
)
