package machine

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/agnivade/levenshtein"
	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
)

var (
	ErrUnknownNode       = errors.New("unknown node")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrUnknownParameter  = errors.New("unknown parameter")
	ErrReadOnly          = errors.New("read-only parameter")
)

// DefaultSynapse is the synapse model registered by every kernel.
const DefaultSynapse = "static_synapse"

var (
	nodeReadOnly       = []string{"global_id", "model"}
	connectionReadOnly = []string{"source", "target", "target_thread", "synapse_model", "synapse_modelid", "port"}
)

// Kernel holds the status dictionaries of nodes and connections. It has no
// dynamics: it only stores and returns parameters. A Kernel is not safe for
// concurrent use; a Machine serializes access to the kernel it owns.
type Kernel struct {
	strict   bool
	nodes    map[int64]sli.Dict
	conns    map[handles.Connection]sli.Dict
	order    []handles.Connection
	synapses []string
	nextID   int64
}

// KernelOption configures a Kernel.
type KernelOption func(*Kernel)

// Strict makes SetStatus reject parameter names the entity does not already
// have.
func Strict() KernelOption {
	return func(k *Kernel) { k.strict = true }
}

// NewKernel returns an empty kernel. Node ids start at 1.
func NewKernel(opts ...KernelOption) *Kernel {
	k := &Kernel{
		nodes:    make(map[int64]sli.Dict),
		conns:    make(map[handles.Connection]sli.Dict),
		synapses: []string{DefaultSynapse},
		nextID:   1,
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// CreateNodes adds n nodes of the given model, each starting from a copy of
// params, and returns their handles.
func (k *Kernel) CreateNodes(model string, n int, params sli.Dict) handles.Nodes {
	nodes := make(handles.Nodes, n)
	for i := range nodes {
		id := k.nextID
		k.nextID++

		st := maps.Clone(params)
		if st == nil {
			st = sli.Dict{}
		}
		st["global_id"] = id
		st["model"] = sli.Literal(model)
		k.nodes[id] = st
		nodes[i] = id
	}
	return nodes
}

// Connect creates a connection between two existing nodes. Ports count the
// connections of the same synapse model leaving source.
func (k *Kernel) Connect(source, target int64, synapse string, params sli.Dict) (handles.Connection, error) {
	for _, id := range []int64{source, target} {
		if _, ok := k.nodes[id]; !ok {
			return handles.Connection{}, fmt.Errorf("%w %d", ErrUnknownNode, id)
		}
	}
	if synapse == "" {
		synapse = DefaultSynapse
	}

	modelID := slices.Index(k.synapses, synapse)
	if modelID < 0 {
		modelID = len(k.synapses)
		k.synapses = append(k.synapses, synapse)
	}

	var port int64
	for _, c := range k.order {
		if c.Source == source && c.SynapseModelID == int64(modelID) {
			port++
		}
	}

	c := handles.Connection{Source: source, Target: target, SynapseModelID: int64(modelID), Port: port}
	st := sli.Dict{"weight": 1.0, "delay": 1.0}
	maps.Copy(st, params)
	st["source"] = c.Source
	st["target"] = c.Target
	st["target_thread"] = c.TargetThread
	st["synapse_model"] = sli.Literal(synapse)
	st["synapse_modelid"] = c.SynapseModelID
	st["port"] = c.Port

	k.conns[c] = st
	k.order = append(k.order, c)
	return c, nil
}

// Connections returns all connection handles in creation order.
func (k *Kernel) Connections() handles.Connections {
	return slices.Clone(handles.Connections(k.order))
}

// GetStatus returns a copy of the status dictionary of a node id or
// connection handle.
func (k *Kernel) GetStatus(target any) (sli.Dict, error) {
	st, err := k.lookup(target)
	if err != nil {
		return nil, err
	}
	return maps.Clone(st), nil
}

// SetStatus merges params into the status dictionary of target.
func (k *Kernel) SetStatus(target any, params sli.Dict) error {
	st, err := k.lookup(target)
	if err != nil {
		return err
	}

	readOnly := nodeReadOnly
	if _, ok := target.(handles.Connection); ok {
		readOnly = connectionReadOnly
	}

	for key := range params {
		if slices.Contains(readOnly, key) {
			return fmt.Errorf("%w /%s", ErrReadOnly, key)
		}
		if _, ok := st[key]; k.strict && !ok {
			return unknownKey(ErrUnknownParameter, key, st)
		}
	}
	maps.Copy(st, params)
	return nil
}

func (k *Kernel) lookup(target any) (sli.Dict, error) {
	switch t := target.(type) {
	case int64:
		st, ok := k.nodes[t]
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrUnknownNode, t)
		}
		return st, nil
	case handles.Connection:
		st, ok := k.conns[t]
		if !ok {
			return nil, fmt.Errorf("%w %v", ErrUnknownConnection, t.Fields())
		}
		return st, nil
	default:
		return nil, fmt.Errorf("cannot address status of %T", target)
	}
}

// unknownKey builds an error for a missing key, suggesting the closest
// existing key when one is near enough.
func unknownKey(base error, key string, d sli.Dict) error {
	best, bestDist := "", -1
	for k := range d {
		dist := levenshtein.ComputeDistance(key, k)
		if bestDist < 0 || dist < bestDist || (dist == bestDist && k < best) {
			best, bestDist = k, dist
		}
	}
	if bestDist >= 0 && bestDist <= max(2, len(key)/3) {
		return fmt.Errorf("%w /%s (did you mean /%s?)", base, key, best)
	}
	return fmt.Errorf("%w /%s", base, key)
}
