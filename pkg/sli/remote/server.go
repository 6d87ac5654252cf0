package remote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/germanamz/nestbridge/pkg/sli"
)

// Server exposes an Executor over websocket. The interpreter has a single
// operand stack, so only one session is served at a time; further upgrade
// requests are refused with 409 Conflict until it ends.
type Server struct {
	exec   sli.Executor
	log    *slog.Logger
	active sync.Mutex
}

// NewServer returns a Server running requests on exec.
func NewServer(exec sli.Executor, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{exec: exec, log: log}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.active.TryLock() {
		http.Error(w, "interpreter session already active", http.StatusConflict)
		return
	}
	defer s.active.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(readLimit)

	session := uuid.NewString()
	log := s.log.With("session", session, "remote", r.RemoteAddr)
	log.Info("interpreter session opened")

	err = s.serve(r.Context(), conn, log)
	switch {
	case err == nil, websocket.CloseStatus(err) == websocket.StatusNormalClosure, errors.Is(err, context.Canceled):
		log.Info("interpreter session closed")
		_ = conn.Close(websocket.StatusNormalClosure, "")
	default:
		log.Warn("interpreter session failed", "error", err)
		_ = conn.Close(websocket.StatusInternalError, "session failed")
	}
}

func (s *Server) serve(ctx context.Context, conn *websocket.Conn, log *slog.Logger) error {
	for {
		var req request
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return err
		}

		resp := response{ID: req.ID}
		out, err := s.exec.Exec(ctx, req.Code)
		if err != nil {
			var fault *sli.ExecutionError
			if !errors.As(err, &fault) {
				return err
			}
			log.Debug("interpreter fault", "code", req.Code, "message", fault.Message)
			resp.Fault = fault.Message
		} else {
			resp.Output = out
		}

		if err := wsjson.Write(ctx, conn, resp); err != nil {
			return err
		}
	}
}
