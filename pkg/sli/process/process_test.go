package process

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/germanamz/nestbridge/pkg/sli"
	"github.com/germanamz/nestbridge/pkg/sli/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "NESTBRIDGE_PROCESS_HELPER"

// TestHelperProcess is not a real test. It runs the reference machine on
// stdin and stdout when the test binary is started by startHelper.
func TestHelperProcess(t *testing.T) {
	switch os.Getenv(helperEnv) {
	case "":
		return
	case "serve":
		k := machine.NewKernel()
		k.CreateNodes("iaf_psc_alpha", 2, sli.Dict{"V_m": -70.0})
		_ = machine.New(k).Serve(context.Background(), os.Stdin, os.Stdout)
	case "garbage":
		_, _ = os.Stdout.WriteString("hello\n")
		_, _ = os.Stdin.Read(make([]byte, 1))
	case "hang":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func startHelper(t *testing.T, mode string) *Process {
	t.Helper()
	p, err := Start(context.Background(), Options{
		Command: os.Args[0],
		Args:    []string{"-test.run=^TestHelperProcess$"},
		Env:     []string{helperEnv + "=" + mode},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestStart_RequiresCommand(t *testing.T) {
	_, err := Start(context.Background(), Options{})
	assert.ErrorContains(t, err, "command is required")
}

func TestExec_RoundTrip(t *testing.T) {
	p := startHelper(t, "serve")
	ctx := context.Background()

	out, err := p.Exec(ctx, "[ 1 2 ] cvnodecollection { GetStatus /V_m get } Map ==")
	require.NoError(t, err)
	assert.Equal(t, "[ -70.0 -70.0 ]", out)

	out, err = p.Exec(ctx, "1\n2 count ==")
	require.NoError(t, err)
	assert.Equal(t, "2", out)
}

func TestExec_FaultKeepsSession(t *testing.T) {
	p := startHelper(t, "serve")
	ctx := context.Background()

	_, err := p.Exec(ctx, "nope")
	require.ErrorIs(t, err, sli.ErrFault)

	var fault *sli.ExecutionError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "nope", fault.Code)
	assert.Equal(t, "UndefinedName: nope", fault.Message)

	out, err := p.Exec(ctx, "(still here) ==")
	require.NoError(t, err)
	assert.Equal(t, "(still here)", out)
}

func TestExec_ThroughChannel(t *testing.T) {
	p := startHelper(t, "serve")
	ch := sli.NewChannel(p)
	ctx := context.Background()

	require.NoError(t, ch.Push(ctx, sli.Dict{"a": int64(1)}))
	depth, err := sli.Depth(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	v, err := ch.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, sli.Dict{"a": int64(1)}, v)
}

func TestExec_MalformedReply(t *testing.T) {
	p := startHelper(t, "garbage")

	_, err := p.Exec(context.Background(), "1")
	assert.ErrorContains(t, err, "malformed reply line")
}

func TestExec_CancelKillsProcess(t *testing.T) {
	p := startHelper(t, "hang")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := p.Exec(ctx, "1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = p.Exec(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_Idempotent(t *testing.T) {
	p := startHelper(t, "serve")
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Exec(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)
}
