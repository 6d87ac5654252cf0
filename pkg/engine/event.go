package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventCommand EventKind = "command" // A command ran on the interpreter.
	EventFault   EventKind = "fault"   // The interpreter raised a fault.
	EventError   EventKind = "error"   // The channel to the interpreter failed.
)

// Event is an immutable notification of interpreter activity.
type Event struct {
	Kind      EventKind
	Code      string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *EventBus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all subscribers. If a subscriber's buffer is full
// the event is dropped for that subscriber so a slow consumer never stalls
// the interpreter channel.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// traceBuffer is the subscription buffer used by Engine tracing.
const traceBuffer = 256

// LogEvents logs the events received on sub until the subscription is
// closed or ctx is done. Commands log at info, faults and errors at warn.
func LogEvents(ctx context.Context, sub *Subscription, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			logEvent(ctx, log, ev)
		}
	}
}

func logEvent(ctx context.Context, log *slog.Logger, ev Event) {
	attrs := []slog.Attr{
		slog.String("kind", string(ev.Kind)),
		slog.String("code", ev.Code),
		slog.Duration("duration", ev.Duration),
	}
	if ev.Err != nil {
		attrs = append(attrs, slog.String("error", ev.Err.Error()))
		log.LogAttrs(ctx, slog.LevelWarn, "interpreter event", attrs...)
		return
	}
	log.LogAttrs(ctx, slog.LevelInfo, "interpreter event", attrs...)
}

// Observe returns channel middleware that publishes an event for every
// command run and every failed primitive.
func Observe(bus *EventBus) sli.Middleware {
	return func(next sli.Channel) sli.Channel {
		return &observedChannel{next: next, bus: bus}
	}
}

type observedChannel struct {
	next sli.Channel
	bus  *EventBus
}

func (c *observedChannel) Push(ctx context.Context, v any) error {
	return c.failed(time.Now(), "", c.next.Push(ctx, v))
}

func (c *observedChannel) PushNodes(ctx context.Context, nodes handles.Nodes) error {
	return c.failed(time.Now(), "", c.next.PushNodes(ctx, nodes))
}

func (c *observedChannel) PushConnections(ctx context.Context, conns handles.Connections) error {
	return c.failed(time.Now(), "", c.next.PushConnections(ctx, conns))
}

func (c *observedChannel) Run(ctx context.Context, code string) error {
	start := time.Now()
	err := c.next.Run(ctx, code)
	if err == nil {
		c.bus.Publish(Event{Kind: EventCommand, Code: code, Duration: time.Since(start), Timestamp: time.Now()})
		return nil
	}
	return c.failed(start, code, err)
}

func (c *observedChannel) Pop(ctx context.Context) (any, error) {
	start := time.Now()
	v, err := c.next.Pop(ctx)
	return v, c.failed(start, "==", err)
}

func (c *observedChannel) Depth(ctx context.Context) (int, error) {
	return sli.Depth(ctx, c.next)
}

func (c *observedChannel) failed(start time.Time, code string, err error) error {
	if err == nil {
		return nil
	}
	kind := EventError
	if errors.Is(err, sli.ErrFault) {
		kind = EventFault
	}
	c.bus.Publish(Event{Kind: kind, Code: code, Err: err, Duration: time.Since(start), Timestamp: time.Now()})
	return err
}
