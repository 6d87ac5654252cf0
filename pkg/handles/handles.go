// Package handles defines the opaque entity handle sequences that status
// operations act on: node collections and connection sequences.
//
// A Sequence is created by upstream entity-creation calls and is only ever
// read by this module. The two kinds are told apart structurally with
// IsSequenceOfConnections, never by asking the interpreter.
package handles

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned when a value is not a recognized handle sequence.
var ErrInvalid = errors.New("handles: not a node collection or a sequence of connection handles")

// Kind identifies what a handle sequence refers to.
type Kind int

const (
	// NodeKind handles are global node ids.
	NodeKind Kind = iota
	// ConnectionKind handles are fixed-size connection tuples.
	ConnectionKind
)

func (k Kind) String() string {
	switch k {
	case NodeKind:
		return "node"
	case ConnectionKind:
		return "connection"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sequence is an ordered, read-only collection of entity handles.
type Sequence interface {
	Len() int
	Kind() Kind
}

// Nodes is a node collection: an ordered sequence of global node ids.
type Nodes []int64

func (n Nodes) Len() int { return len(n) }
func (Nodes) Kind() Kind { return NodeKind }

// ConnectionFields is the number of integers that encode one connection handle.
const ConnectionFields = 5

// Connection is a connection handle. Its fields mirror the five integers the
// interpreter uses to address a single synapse.
type Connection struct {
	Source         int64
	Target         int64
	TargetThread   int64
	SynapseModelID int64
	Port           int64
}

// Fields returns the handle in its fixed-size wire order.
func (c Connection) Fields() [ConnectionFields]int64 {
	return [ConnectionFields]int64{c.Source, c.Target, c.TargetThread, c.SynapseModelID, c.Port}
}

// ConnectionFromFields builds a Connection from its wire order.
func ConnectionFromFields(f [ConnectionFields]int64) Connection {
	return Connection{
		Source:         f[0],
		Target:         f[1],
		TargetThread:   f[2],
		SynapseModelID: f[3],
		Port:           f[4],
	}
}

// Connections is a sequence of connection handles.
type Connections []Connection

func (c Connections) Len() int { return len(c) }
func (Connections) Kind() Kind { return ConnectionKind }

// IsSequenceOfConnections reports whether s is a connection sequence.
// It is a pure structural test on the concrete sequence type.
func IsSequenceOfConnections(s Sequence) bool {
	_, ok := s.(Connections)
	return ok
}

// Validate checks that s is one of the sequence types defined here and that
// its Kind agrees with its structure.
func Validate(s Sequence) error {
	switch v := s.(type) {
	case Nodes:
		return nil
	case Connections:
		return nil
	case nil:
		return ErrInvalid
	default:
		return fmt.Errorf("%w (got %T)", ErrInvalid, v)
	}
}
