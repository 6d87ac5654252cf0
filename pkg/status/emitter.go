package status

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
)

// Command templates. Each consumes exactly the operands the emitter pushes:
// the update template takes the handles and the list of dictionaries, the
// query templates take the handles and leave one array of results.
const (
	updateTemplate   = "2 arraystore Transpose { arrayload pop SetStatus } forall"
	queryAllTemplate = "{ GetStatus } Map"
)

type pushRoutine func(ctx context.Context, ch sli.Channel, h handles.Sequence) error

// pushRoutines selects how a handle sequence is placed on the stack.
var pushRoutines = [...]pushRoutine{
	handles.NodeKind: func(ctx context.Context, ch sli.Channel, h handles.Sequence) error {
		return ch.PushNodes(ctx, h.(handles.Nodes))
	},
	handles.ConnectionKind: func(ctx context.Context, ch sli.Channel, h handles.Sequence) error {
		return ch.PushConnections(ctx, h.(handles.Connections))
	},
}

func kindOf(h handles.Sequence) handles.Kind {
	if handles.IsSequenceOfConnections(h) {
		return handles.ConnectionKind
	}
	return handles.NodeKind
}

func queryTemplate(k Keys) string {
	switch k := k.(type) {
	case OneKey:
		return "{ GetStatus /" + k.Name + " get } Map"
	case KeyList:
		var b strings.Builder
		b.WriteString(queryAllTemplate)
		b.WriteString(" { [")
		for _, name := range k {
			b.WriteString(" /")
			b.WriteString(name)
		}
		b.WriteString(" ] get } Map")
		return b.String()
	default:
		return queryAllTemplate
	}
}

// emitter performs one batched round trip. It counts the operands it has
// pushed so a failed round trip can take them off the stack again.
type emitter struct {
	ch     sli.Channel
	pushed int
}

func (e *emitter) pushHandles(ctx context.Context, h handles.Sequence) error {
	if err := pushRoutines[kindOf(h)](ctx, e.ch, h); err != nil {
		return err
	}
	e.pushed++
	return nil
}

func (e *emitter) push(ctx context.Context, v any) error {
	if err := e.ch.Push(ctx, v); err != nil {
		return err
	}
	e.pushed++
	return nil
}

// run executes the template, which consumes every pushed operand.
func (e *emitter) run(ctx context.Context, code string) error {
	if err := e.ch.Run(ctx, code); err != nil {
		return err
	}
	e.pushed = 0
	return nil
}

// fail pops whatever is still pushed and returns err, joined with any
// failure to unwind.
func (e *emitter) fail(ctx context.Context, err error) error {
	var unwind []error
	for ; e.pushed > 0; e.pushed-- {
		if _, perr := e.ch.Pop(ctx); perr != nil {
			unwind = append(unwind, perr)
			break
		}
	}
	if len(unwind) == 0 {
		return err
	}
	return errors.Join(err, fmt.Errorf("status: unwind operand stack: %w", errors.Join(unwind...)))
}

// update pushes the handles and one dictionary per handle, then pairs them
// and applies SetStatus to each pair in a single run.
func update(ctx context.Context, ch sli.Channel, h handles.Sequence, dicts []sli.Dict) error {
	e := &emitter{ch: ch}
	if err := e.pushHandles(ctx, h); err != nil {
		return e.fail(ctx, err)
	}
	if err := e.push(ctx, dicts); err != nil {
		return e.fail(ctx, err)
	}
	if err := e.run(ctx, updateTemplate); err != nil {
		return e.fail(ctx, err)
	}
	return nil
}

// query pushes the handles, runs the template selected by k and pops the
// single array it leaves.
func query(ctx context.Context, ch sli.Channel, h handles.Sequence, k Keys) (any, error) {
	e := &emitter{ch: ch}
	if err := e.pushHandles(ctx, h); err != nil {
		return nil, e.fail(ctx, err)
	}
	if err := e.run(ctx, queryTemplate(k)); err != nil {
		return nil, e.fail(ctx, err)
	}
	return ch.Pop(ctx)
}
