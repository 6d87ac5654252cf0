// Package remote carries sli executions over a websocket. A Server exposes
// an Executor on an HTTP endpoint; a Client dials it and is itself an
// Executor, so a sli.TextChannel can drive an interpreter on another host.
//
// Frames are JSON objects. A request carries an id and the code to run; the
// response repeats the id with either the printed output or a fault message.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/germanamz/nestbridge/pkg/sli"
)

// ErrClosed is returned by Exec after the connection was closed.
var ErrClosed = errors.New("remote: connection closed")

const readLimit = 16 << 20

type request struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

type response struct {
	ID     string `json:"id"`
	Output string `json:"output,omitempty"`
	Fault  string `json:"fault,omitempty"`
}

// Client is an sli.Executor speaking to a remote Server.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Dial connects to a Server at url (ws:// or wss://). headers are sent with
// the upgrade request.
func Dial(ctx context.Context, url string, headers http.Header) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimit)

	return &Client{conn: conn}, nil
}

// Exec sends code and waits for the matching response. Any transport
// failure closes the client.
func (c *Client) Exec(ctx context.Context, code string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	req := request{ID: uuid.NewString(), Code: code}
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		c.fail()
		return "", fmt.Errorf("remote: write request: %w", err)
	}

	var resp response
	if err := wsjson.Read(ctx, c.conn, &resp); err != nil {
		c.fail()
		return "", fmt.Errorf("remote: read response: %w", err)
	}
	if resp.ID != req.ID {
		c.fail()
		return "", fmt.Errorf("remote: response id %q does not match request %q", resp.ID, req.ID)
	}
	if resp.Fault != "" {
		return "", &sli.ExecutionError{Code: code, Message: resp.Fault}
	}
	return resp.Output, nil
}

// Close ends the session with a normal closure.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// fail drops the connection after a protocol error. The caller holds c.mu.
func (c *Client) fail() {
	c.closed = true
	_ = c.conn.CloseNow()
}
