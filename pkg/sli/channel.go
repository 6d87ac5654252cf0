package sli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/germanamz/nestbridge/pkg/handles"
)

// ErrDepthUnsupported is returned by Depth when a channel cannot report its
// stack depth.
var ErrDepthUnsupported = errors.New("sli: channel does not report stack depth")

// ErrFault matches every *ExecutionError.
var ErrFault = errors.New("sli: interpreter fault")

// ExecutionError is a fault raised by the interpreter while running code.
// Its message is passed through unchanged.
type ExecutionError struct {
	Code    string
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("sli: interpreter fault: %s", e.Message)
}

func (e *ExecutionError) Is(target error) bool { return target == ErrFault }

// Channel is the capability the status layer uses to talk to an interpreter.
// Every method blocks until the interpreter has finished the step.
type Channel interface {
	// Push places one value on the operand stack.
	Push(ctx context.Context, v any) error
	// PushNodes places a node collection on the operand stack.
	PushNodes(ctx context.Context, nodes handles.Nodes) error
	// PushConnections places a connection sequence on the operand stack.
	PushConnections(ctx context.Context, conns handles.Connections) error
	// Run executes code against the current stack.
	Run(ctx context.Context, code string) error
	// Pop removes and returns the topmost value.
	Pop(ctx context.Context) (any, error)
}

// StackDepther is implemented by channels that can report their stack depth.
type StackDepther interface {
	Depth(ctx context.Context) (int, error)
}

// Depth returns the stack depth of ch, or ErrDepthUnsupported.
func Depth(ctx context.Context, ch Channel) (int, error) {
	d, ok := ch.(StackDepther)
	if !ok {
		return 0, ErrDepthUnsupported
	}
	return d.Depth(ctx)
}

// Executor runs one unit of SLI source text and returns whatever the == operator
// printed while it ran. Interpreter faults are reported as *ExecutionError;
// any other error is a transport failure.
type Executor interface {
	Exec(ctx context.Context, code string) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, code string) (string, error)

func (f ExecutorFunc) Exec(ctx context.Context, code string) (string, error) { return f(ctx, code) }

// TextChannel is a Channel that talks to an Executor in SLI source text.
type TextChannel struct {
	exec Executor
}

// NewChannel returns a Channel backed by exec.
func NewChannel(exec Executor) *TextChannel {
	return &TextChannel{exec: exec}
}

func (c *TextChannel) Push(ctx context.Context, v any) error {
	code, err := Encode(v)
	if err != nil {
		return err
	}
	return c.Run(ctx, code)
}

func (c *TextChannel) PushNodes(ctx context.Context, nodes handles.Nodes) error {
	return c.Push(ctx, nodes)
}

func (c *TextChannel) PushConnections(ctx context.Context, conns handles.Connections) error {
	return c.Push(ctx, conns)
}

func (c *TextChannel) Run(ctx context.Context, code string) error {
	_, err := c.exec.Exec(ctx, code)
	return err
}

func (c *TextChannel) Pop(ctx context.Context) (any, error) {
	out, err := c.exec.Exec(ctx, "==")
	if err != nil {
		return nil, err
	}
	v, err := Decode(out)
	if err != nil {
		return nil, fmt.Errorf("sli: decode reply: %w", err)
	}
	return v, nil
}

func (c *TextChannel) Depth(ctx context.Context) (int, error) {
	out, err := c.exec.Exec(ctx, "count ==")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("sli: decode stack depth %q: %w", out, err)
	}
	return n, nil
}
