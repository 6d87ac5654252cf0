// Package status reads and writes the status of many simulation entities
// with one interpreter round trip per call.
//
// SetStatus normalizes a parameter specification to one dictionary per
// handle and emits a single batched update. GetStatus emits a single batched
// query whose command already produces the shape the key specification asks
// for. All validation happens before anything is pushed to the interpreter.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for operation summaries.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithStackCheck makes every operation compare the interpreter's stack
// depth before and after it runs. The channel must implement
// sli.StackDepther.
func WithStackCheck() Option {
	return func(s *Session) { s.stackCheck = true }
}

// Session issues status operations over one interpreter channel. The
// interpreter stack is shared state, so a Session serializes its callers.
type Session struct {
	mu         sync.Mutex
	ch         sli.Channel
	log        *slog.Logger
	stackCheck bool
}

// New returns a Session using ch.
func New(ch sli.Channel, opts ...Option) *Session {
	s := &Session{ch: ch}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// SetStatus applies p to every handle in h. An empty sequence is a no-op.
func (s *Session) SetStatus(ctx context.Context, h handles.Sequence, p Params) error {
	if err := handles.Validate(h); err != nil {
		return err
	}
	if h.Len() == 0 {
		return nil
	}

	dicts, err := Normalize(p, h.Len())
	if err != nil {
		return err
	}
	if err := sli.Validate(dicts); err != nil {
		return fmt.Errorf("status: params: %w", err)
	}

	return s.do(ctx, "set status", h, func() error {
		return update(ctx, s.ch, h, dicts)
	})
}

// SetStatusAny is SetStatus for dynamically typed params, as decoded from
// JSON or YAML. See ParseParams.
func (s *Session) SetStatusAny(ctx context.Context, h handles.Sequence, params, val any) error {
	if err := handles.Validate(h); err != nil {
		return err
	}
	if h.Len() == 0 {
		return nil
	}

	p, err := ParseParams(params, val)
	if err != nil {
		return err
	}
	return s.SetStatus(ctx, h, p)
}

// GetStatus returns the status of every handle in h, shaped by k. A nil k
// requests full dictionaries. For an empty sequence the reply carries h
// unchanged and no values.
func (s *Session) GetStatus(ctx context.Context, h handles.Sequence, k Keys) (Reply, error) {
	if err := handles.Validate(h); err != nil {
		return Reply{}, err
	}
	if k == nil {
		k = AllKeys{}
	}
	if h.Len() == 0 {
		return Reply{Handles: h, Keys: k}, nil
	}
	if err := validateKeys(k); err != nil {
		return Reply{}, err
	}

	var values []any
	err := s.do(ctx, "get status", h, func() error {
		v, err := query(ctx, s.ch, h, k)
		if err != nil {
			return err
		}
		values, err = decodeReply(v, h.Len(), k)
		return err
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Handles: h, Keys: k, Values: values}, nil
}

// GetStatusAny is GetStatus for dynamically typed keys. See ParseKeys.
func (s *Session) GetStatusAny(ctx context.Context, h handles.Sequence, keys any) (Reply, error) {
	if err := handles.Validate(h); err != nil {
		return Reply{}, err
	}
	if h.Len() == 0 {
		return Reply{Handles: h, Keys: AllKeys{}}, nil
	}

	k, err := ParseKeys(keys)
	if err != nil {
		return Reply{}, err
	}
	return s.GetStatus(ctx, h, k)
}

func (s *Session) do(ctx context.Context, op string, h handles.Sequence, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	err := s.checkStack(ctx, fn)
	attrs := []any{"op", op, "kind", h.Kind().String(), "count", h.Len(), "duration", time.Since(start)}
	if err != nil {
		s.log.Warn("status operation failed", append(attrs, "error", err)...)
		return err
	}
	s.log.Debug("status operation", attrs...)
	return nil
}

func (s *Session) checkStack(ctx context.Context, fn func() error) error {
	if !s.stackCheck {
		return fn()
	}

	before, err := sli.Depth(ctx, s.ch)
	if err != nil {
		return fmt.Errorf("status: stack check: %w", err)
	}
	opErr := fn()
	after, err := sli.Depth(ctx, s.ch)
	if err != nil {
		return errors.Join(opErr, fmt.Errorf("status: stack check: %w", err))
	}
	if after != before {
		return errors.Join(opErr, fmt.Errorf("%w: %d before, %d after", ErrStackImbalance, before, after))
	}
	return opErr
}
