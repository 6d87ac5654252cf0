// Package process runs an interpreter as a child process and talks to it
// with the sli line protocol over its stdin and stdout.
//
// The child must answer every request line with exactly one reply line (see
// [sli.FormatReply]). Its stderr is forwarded to the configured writer.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	osexec "os/exec"
	"sync"

	"github.com/germanamz/nestbridge/pkg/sli"
)

// ErrClosed is returned by Exec after the process has exited or was closed.
var ErrClosed = errors.New("process: interpreter closed")

// Options configures the child process.
type Options struct {
	Command string
	Args    []string
	Env     []string  // Appended to the parent environment.
	Dir     string    // Working directory (default: current).
	Stderr  io.Writer // Receives the child's stderr (default: discarded).
	Logger  *slog.Logger
}

// Process is an sli.Executor backed by a child process.
type Process struct {
	mu     sync.Mutex
	cmd    *osexec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	log    *slog.Logger
	closed bool
}

type readResult struct {
	line string
	err  error
}

// Start launches the interpreter. The process lives until Close is called
// or ctx is cancelled.
func Start(ctx context.Context, opts Options) (*Process, error) {
	if opts.Command == "" {
		return nil, errors.New("process: command is required")
	}

	cmd := osexec.CommandContext(ctx, opts.Command, opts.Args...) //nolint:gosec // command comes from operator configuration
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), opts.Env...)
	}
	cmd.Stderr = opts.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", opts.Command, err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log.Info("interpreter process started", "command", opts.Command, "pid", cmd.Process.Pid)

	return &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		log:    log,
	}, nil
}

// Exec sends code as one request line and waits for the reply line.
// Cancelling ctx while waiting kills the process, since the protocol cannot
// resynchronize after an abandoned request.
func (p *Process) Exec(ctx context.Context, code string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", ErrClosed
	}

	if _, err := io.WriteString(p.stdin, sli.RequestLine(code)+"\n"); err != nil {
		p.abort()
		return "", fmt.Errorf("process: write request: %w", err)
	}

	done := make(chan readResult, 1)
	go func() {
		line, err := p.stdout.ReadString('\n')
		done <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		p.abort()
		<-done
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			p.abort()
			if errors.Is(res.err, io.EOF) {
				return "", fmt.Errorf("process: read reply: %w", ErrClosed)
			}
			return "", fmt.Errorf("process: read reply: %w", res.err)
		}
		return sli.ParseReply(res.line, code)
	}
}

// Close ends the session by closing stdin and waits for the process to exit.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	_ = p.stdin.Close()
	err := p.cmd.Wait()
	p.log.Info("interpreter process exited", "error", err)
	if err != nil {
		return fmt.Errorf("process: wait: %w", err)
	}
	return nil
}

// abort kills the child after a protocol failure. The caller holds p.mu.
func (p *Process) abort() {
	if p.closed {
		return
	}
	p.closed = true
	_ = p.cmd.Process.Kill()
	_ = p.stdin.Close()
	_ = p.cmd.Wait()
	p.log.Warn("interpreter process aborted")
}
