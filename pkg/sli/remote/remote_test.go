package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/germanamz/nestbridge/pkg/sli"
	"github.com/germanamz/nestbridge/pkg/sli/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, exec sli.Executor) string {
	t.Helper()
	srv := httptest.NewServer(NewServer(exec, nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_ExecAgainstMachine(t *testing.T) {
	k := machine.NewKernel()
	k.CreateNodes("iaf_psc_alpha", 2, sli.Dict{"C_m": 250.0})
	c := dial(t, newServer(t, machine.New(k)))
	ctx := context.Background()

	out, err := c.Exec(ctx, "[ 1 2 ] cvnodecollection { GetStatus /C_m get } Map ==")
	require.NoError(t, err)
	assert.Equal(t, "[ 250.0 250.0 ]", out)

	out, err = c.Exec(ctx, "1 pop")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestClient_Fault(t *testing.T) {
	c := dial(t, newServer(t, machine.New(machine.NewKernel())))

	_, err := c.Exec(context.Background(), "pop")
	require.ErrorIs(t, err, sli.ErrFault)

	var fault *sli.ExecutionError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "pop", fault.Code)
	assert.Contains(t, fault.Message, "StackUnderflow")

	out, err := c.Exec(context.Background(), "(ok) ==")
	require.NoError(t, err)
	assert.Equal(t, "(ok)", out)
}

func TestClient_TransportErrorClosesSession(t *testing.T) {
	exec := sli.ExecutorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("engine crashed")
	})
	c := dial(t, newServer(t, exec))

	_, err := c.Exec(context.Background(), "1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, sli.ErrFault)

	_, err = c.Exec(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestServer_SingleSession(t *testing.T) {
	url := newServer(t, machine.New(machine.NewKernel()))
	first := dial(t, url)
	_, err := first.Exec(context.Background(), "1 pop")
	require.NoError(t, err)

	_, err = Dial(context.Background(), url, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")

	require.NoError(t, first.Close())
	_, err = first.Exec(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestServer_RejectsPlainHTTP(t *testing.T) {
	srv := httptest.NewServer(NewServer(machine.New(machine.NewKernel()), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL) //nolint:noctx // test
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
