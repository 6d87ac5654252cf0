package sli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// The line protocol spoken over byte streams: every request is one line of
// SLI source text and is answered by exactly one line:
//
//	ok                 the code ran and printed nothing
//	ok <output>        the code ran and == printed <output>
//	err <message>      the interpreter raised a fault
const (
	replyOK  = "ok"
	replyErr = "err"
)

// FormatReply renders the reply line (without newline) for one request.
func FormatReply(out string, err error) string {
	if err != nil {
		msg := err.Error()
		var fault *ExecutionError
		if errors.As(err, &fault) {
			msg = fault.Message
		}
		return replyErr + " " + oneLine(msg)
	}
	if out == "" {
		return replyOK
	}
	return replyOK + " " + oneLine(out)
}

// ParseReply decodes a reply line produced by FormatReply. code is the
// request the reply answers and is attached to faults.
func ParseReply(line, code string) (string, error) {
	line = strings.TrimRight(line, "\r\n")
	head, rest, _ := strings.Cut(line, " ")
	switch head {
	case replyOK:
		return rest, nil
	case replyErr:
		return "", &ExecutionError{Code: code, Message: rest}
	default:
		return "", fmt.Errorf("sli: malformed reply line %q", line)
	}
}

// RequestLine flattens code onto a single line. SLI treats newlines as plain
// whitespace and encoded strings escape theirs.
func RequestLine(code string) string {
	return oneLine(code)
}

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func oneLine(s string) string {
	return newlines.Replace(s)
}

const maxLineSize = 16 << 20

// Serve answers request lines read from r with reply lines written to w,
// running each request on exec. It returns when r is exhausted, ctx is
// cancelled or exec reports a transport failure.
func Serve(ctx context.Context, exec Executor, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	bw := bufio.NewWriter(w)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := exec.Exec(ctx, sc.Text())
		var fault *ExecutionError
		if err != nil && !errors.As(err, &fault) {
			return fmt.Errorf("sli: serve: %w", err)
		}
		if _, werr := fmt.Fprintln(bw, FormatReply(out, err)); werr != nil {
			return fmt.Errorf("sli: write reply: %w", werr)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("sli: write reply: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("sli: read request: %w", err)
	}
	return nil
}
