package sli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/germanamz/nestbridge/pkg/handles"
)

// Middleware wraps a Channel, returning a new Channel with added behaviour.
type Middleware func(next Channel) Channel

// Chain composes multiple middleware into a single Middleware.
// The first middleware in the list is the outermost (runs first).
func Chain(mws ...Middleware) Middleware {
	return func(next Channel) Channel {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Apply wraps a channel with the given middleware. The first middleware
// in the list is the outermost (runs first).
func Apply(ch Channel, mws ...Middleware) Channel {
	return Chain(mws...)(ch)
}

// --- Logger middleware ---

type loggerChannel struct {
	next Channel
	log  *slog.Logger
}

func (c *loggerChannel) Push(ctx context.Context, v any) error {
	start := time.Now()
	err := c.next.Push(ctx, v)
	c.done(ctx, "push", start, err, "type", slog.StringValue(typeName(v)))
	return err
}

func (c *loggerChannel) PushNodes(ctx context.Context, nodes handles.Nodes) error {
	start := time.Now()
	err := c.next.PushNodes(ctx, nodes)
	c.done(ctx, "push nodes", start, err, "count", slog.IntValue(len(nodes)))
	return err
}

func (c *loggerChannel) PushConnections(ctx context.Context, conns handles.Connections) error {
	start := time.Now()
	err := c.next.PushConnections(ctx, conns)
	c.done(ctx, "push connections", start, err, "count", slog.IntValue(len(conns)))
	return err
}

func (c *loggerChannel) Run(ctx context.Context, code string) error {
	start := time.Now()
	err := c.next.Run(ctx, code)
	c.done(ctx, "run", start, err, "code", slog.StringValue(code))
	return err
}

func (c *loggerChannel) Pop(ctx context.Context) (any, error) {
	start := time.Now()
	v, err := c.next.Pop(ctx)
	c.done(ctx, "pop", start, err, "type", slog.StringValue(typeName(v)))
	return v, err
}

func (c *loggerChannel) Depth(ctx context.Context) (int, error) {
	return Depth(ctx, c.next)
}

func (c *loggerChannel) done(ctx context.Context, op string, start time.Time, err error, key string, val slog.Value) {
	duration := time.Since(start)
	if err != nil {
		c.log.ErrorContext(ctx, "sli channel step failed",
			"op", op,
			key, val,
			"duration", duration,
			"error", err,
		)
		return
	}
	c.log.DebugContext(ctx, "sli channel step",
		"op", op,
		key, val,
		"duration", duration,
	)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "none"
	case Dict:
		return "dict"
	case Array:
		return "array"
	case Literal:
		return "literal"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Logger returns a Middleware that logs every channel step with its
// duration. Successful steps are logged at debug level, failures at error.
func Logger(log *slog.Logger) Middleware {
	return func(next Channel) Channel {
		return &loggerChannel{next: next, log: log}
	}
}
