package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/germanamz/nestbridge/pkg/sli"
	"github.com/germanamz/nestbridge/pkg/sli/machine"
	"github.com/germanamz/nestbridge/pkg/sli/process"
	"github.com/germanamz/nestbridge/pkg/sli/remote"
	"github.com/germanamz/nestbridge/pkg/status"
)

// Engine is the composition root that connects to the configured
// interpreter and exposes it as a status.Session.
type Engine struct {
	cfg     Config
	log     *slog.Logger
	events  *EventBus
	exec    sli.Executor
	kernel  *machine.Kernel
	closer  func() error
	session *status.Session
	stops   []func()
}

// New creates an Engine from the given configuration. It validates the
// config, starts or dials the backend and builds the status session on top
// of it. A nil log discards output.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		cfg:    cfg,
		log:    log,
		events: NewEventBus(),
		closer: func() error { return nil },
	}

	if err := e.connect(ctx); err != nil {
		return nil, fmt.Errorf("engine: %s backend: %w", cfg.BackendKind(), err)
	}
	log.Info("interpreter backend ready", "kind", cfg.BackendKind())

	if cfg.Log.Trace {
		e.Trace(ctx, log)
	}

	mws := []sli.Middleware{Observe(e.events)}
	if cfg.Log.Channel {
		mws = append(mws, sli.Logger(log))
	}
	ch := sli.Apply(sli.NewChannel(e.exec), mws...)

	opts := []status.Option{status.WithLogger(log)}
	if cfg.StackCheck {
		opts = append(opts, status.WithStackCheck())
	}
	e.session = status.New(ch, opts...)

	return e, nil
}

func (e *Engine) connect(ctx context.Context) error {
	switch e.cfg.BackendKind() {
	case BackendProcess:
		pc := e.cfg.Backend.Process
		p, err := process.Start(ctx, process.Options{
			Command: pc.Command,
			Args:    pc.Args,
			Env:     pc.Env,
			Dir:     pc.Dir,
			Stderr:  os.Stderr,
			Logger:  e.log,
		})
		if err != nil {
			return err
		}
		e.exec, e.closer = p, p.Close
		return nil

	case BackendRemote:
		rc := e.cfg.Backend.Remote
		headers := make(http.Header, len(rc.Headers))
		for k, v := range rc.Headers {
			headers.Set(k, v)
		}
		c, err := remote.Dial(ctx, rc.URL, headers)
		if err != nil {
			return err
		}
		e.exec, e.closer = c, c.Close
		return nil

	default:
		k, err := seedKernel(e.cfg.Backend.Memory)
		if err != nil {
			return err
		}
		e.kernel = k
		e.exec = machine.New(k)
		return nil
	}
}

func seedKernel(mc MemoryConfig) (*machine.Kernel, error) {
	var opts []machine.KernelOption
	if mc.Strict {
		opts = append(opts, machine.Strict())
	}
	k := machine.NewKernel(opts...)

	for _, g := range mc.Nodes {
		k.CreateNodes(g.Model, g.Count, g.Params)
	}
	for i, c := range mc.Connections {
		if _, err := k.Connect(c.Source, c.Target, c.Synapse, c.Params); err != nil {
			return nil, fmt.Errorf("connection %d: %w", i, err)
		}
	}
	return k, nil
}

// Session returns the status session bound to the backend.
func (e *Engine) Session() *status.Session { return e.session }

// Executor returns the raw backend executor, bypassing the status layer.
func (e *Engine) Executor() sli.Executor { return e.exec }

// Kernel returns the in-memory kernel, or nil for other backends.
func (e *Engine) Kernel() *machine.Kernel { return e.kernel }

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Trace logs every event on the engine's bus to log until Close. Events
// that arrive while the trace buffer is full are dropped.
func (e *Engine) Trace(ctx context.Context, log *slog.Logger) {
	sub := e.events.Subscribe(traceBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		LogEvents(ctx, sub, log)
	}()
	e.stops = append(e.stops, func() {
		e.events.Unsubscribe(sub)
		<-done
	})
}

// Close stops tracing and stops or disconnects the backend.
func (e *Engine) Close() error {
	for _, stop := range e.stops {
		stop()
	}
	e.stops = nil

	if err := e.closer(); err != nil {
		return fmt.Errorf("engine: close backend: %w", err)
	}
	return nil
}
