package sli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Dict(t *testing.T) {
	s, err := Encode(Dict{"tau_m": 10.0, "C_m": 250, "label": "exc (a)", "model": Literal("iaf")})
	require.NoError(t, err)
	assert.Equal(t, `<< /C_m 250 /label (exc \(a\)) /model /iaf /tau_m 10.0 >>`, s)
}

func TestEncode_NestedArrays(t *testing.T) {
	s, err := Encode([]any{Dict{"a": 1}, []int{1, 2}, true})
	require.NoError(t, err)
	assert.Equal(t, `[ << /a 1 >> [ 1 2 ] true ]`, s)
}

func TestEncode_Handles(t *testing.T) {
	s, err := Encode(handles.Nodes{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "[ 1 2 3 ] cvnodecollection", s)

	s, err = Encode(handles.Connections{{Source: 1, Target: 2, Port: 4}})
	require.NoError(t, err)
	assert.Equal(t, "[ [ 1 2 0 0 4 ] ] cvconnections", s)
}

func TestEncode_JSONNumber(t *testing.T) {
	s, err := Encode(json.Number("5"))
	require.NoError(t, err)
	assert.Equal(t, "5", s)

	s, err = Encode(json.Number("2.5"))
	require.NoError(t, err)
	assert.Equal(t, "2.5", s)
}

func TestEncode_FloatKeepsRealType(t *testing.T) {
	s, err := Encode(5.0)
	require.NoError(t, err)
	assert.Equal(t, "5.0", s)

	v, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestEncode_Rejects(t *testing.T) {
	for _, v := range []any{nil, math.NaN(), math.Inf(1), Literal("a b"), Dict{"bad key": 1}, map[int]any{1: 2}, struct{}{}, Dict{"a": nil}} {
		_, err := Encode(v)
		assert.ErrorIs(t, err, ErrUnencodable, "value %#v", v)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	in := Dict{
		"V_m":      -70.0,
		"n":        int64(3),
		"label":    "a\tb (c)\n",
		"frozen":   false,
		"model":    Literal("iaf_psc_alpha"),
		"spikes":   Array{1.5, 2.5},
		"children": Array{Dict{"x": int64(1)}},
	}
	s, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecode_HandleSequences(t *testing.T) {
	v, err := Decode("[ 4 5 ] cvnodecollection")
	require.NoError(t, err)
	assert.Equal(t, handles.Nodes{4, 5}, v)

	v, err = Decode("[ [ 1 2 0 0 0 ] ] cvconnections")
	require.NoError(t, err)
	assert.Equal(t, handles.Connections{{Source: 1, Target: 2}}, v)

	v, err = Decode("[ ] cvconnections")
	require.NoError(t, err)
	assert.Equal(t, handles.Connections{}, v)
}

func TestDecode_Errors(t *testing.T) {
	for _, in := range []string{"", "[ 1", "<< 1 2 >>", "1 2", "foo", "(abc", "<< /a >>", "[ 1 2 ] cvconnections", "< 1"} {
		_, err := Decode(in)
		var syn *SyntaxError
		assert.ErrorAs(t, err, &syn, "input %q", in)
	}
}

func TestScan_Tokens(t *testing.T) {
	toks, err := Scan("{ GetStatus /V_m get } Map % trailing comment\n-1.5 (s) << >>")
	require.NoError(t, err)

	kinds := make([]TokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []TokenKind{
		TokenProcOpen, TokenName, TokenLiteral, TokenName, TokenProcClose, TokenName,
		TokenFloat, TokenString, TokenDictOpen, TokenDictClose,
	}, kinds)
	assert.Equal(t, "V_m", toks[2].Text)
	assert.InDelta(t, -1.5, toks[6].Float, 0)
}

func TestScan_NestedParensInString(t *testing.T) {
	toks, err := Scan("(a (b) c)")
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, "a (b) c", toks[0].Text)
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("V_m"))
	assert.True(t, ValidName("=="))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("a b"))
	assert.False(t, ValidName("a/b"))
	assert.False(t, ValidName("x}"))
}

func TestReplyProtocol(t *testing.T) {
	assert.Equal(t, "ok", FormatReply("", nil))
	assert.Equal(t, "ok [ 1 2 ]", FormatReply("[ 1 2 ]", nil))
	assert.Equal(t, "err unknown node 7", FormatReply("", &ExecutionError{Code: "7 GetStatus", Message: "unknown node 7"}))
	assert.Equal(t, "err broken pipe", FormatReply("", errors.New("broken\npipe")))

	out, err := ParseReply("ok [ 1 2 ]\n", "==")
	require.NoError(t, err)
	assert.Equal(t, "[ 1 2 ]", out)

	_, err = ParseReply("err unknown node 7", "7 GetStatus")
	var fault *ExecutionError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "unknown node 7", fault.Message)
	assert.Equal(t, "7 GetStatus", fault.Code)
	assert.ErrorIs(t, err, ErrFault)

	_, err = ParseReply("garbage", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFault)
}

func TestRequestLine(t *testing.T) {
	assert.Equal(t, "a  b c", RequestLine("a  b\nc"))
}

// scriptedExecutor records requests and answers from a fixed map.
type scriptedExecutor struct {
	requests []string
	replies  map[string]string
	err      error
}

func (s *scriptedExecutor) Exec(_ context.Context, code string) (string, error) {
	s.requests = append(s.requests, code)
	if s.err != nil {
		return "", s.err
	}
	return s.replies[code], nil
}

func TestTextChannel(t *testing.T) {
	exec := &scriptedExecutor{replies: map[string]string{
		"==":       "<< /V_m -70.0 >>",
		"count ==": "3",
	}}
	ch := NewChannel(exec)
	ctx := context.Background()

	require.NoError(t, ch.PushNodes(ctx, handles.Nodes{1, 2}))
	require.NoError(t, ch.PushConnections(ctx, handles.Connections{{Source: 1, Target: 2}}))
	require.NoError(t, ch.Push(ctx, Dict{"a": 1}))
	require.NoError(t, ch.Run(ctx, "{ GetStatus } Map"))

	v, err := ch.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, Dict{"V_m": -70.0}, v)

	depth, err := Depth(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	assert.Equal(t, []string{
		"[ 1 2 ] cvnodecollection",
		"[ [ 1 2 0 0 0 ] ] cvconnections",
		"<< /a 1 >>",
		"{ GetStatus } Map",
		"==",
		"count ==",
	}, exec.requests)
}

func TestTextChannel_PushUnencodableSendsNothing(t *testing.T) {
	exec := &scriptedExecutor{}
	ch := NewChannel(exec)

	err := ch.Push(context.Background(), Dict{"a": nil})
	require.ErrorIs(t, err, ErrUnencodable)
	assert.Empty(t, exec.requests)
}

func TestTextChannel_PopBadReply(t *testing.T) {
	ch := NewChannel(&scriptedExecutor{replies: map[string]string{"==": "<<"}})
	_, err := ch.Pop(context.Background())
	assert.ErrorContains(t, err, "decode reply")
}

func TestDepth_Unsupported(t *testing.T) {
	_, err := Depth(context.Background(), depthless{})
	assert.ErrorIs(t, err, ErrDepthUnsupported)
}

type depthless struct{ Channel }

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	exec := &scriptedExecutor{replies: map[string]string{"==": "1", "count ==": "0"}}
	ch := Apply(NewChannel(exec), Logger(log))
	ctx := context.Background()

	require.NoError(t, ch.Run(ctx, "1"))
	_, err := ch.Pop(ctx)
	require.NoError(t, err)

	depth, err := Depth(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	out := buf.String()
	assert.Contains(t, out, "op=run")
	assert.Contains(t, out, "op=pop")
	assert.Contains(t, out, "type=int64")
}

func TestLoggerMiddleware_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	exec := &scriptedExecutor{err: &ExecutionError{Message: "boom"}}
	ch := Apply(NewChannel(exec), Logger(log))

	err := ch.Run(context.Background(), "boom")
	require.ErrorIs(t, err, ErrFault)
	assert.Contains(t, buf.String(), "sli channel step failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Channel) Channel {
			return &orderChannel{Channel: next, name: name, order: &order}
		}
	}

	ch := Apply(NewChannel(&scriptedExecutor{}), mw("outer"), mw("inner"))
	require.NoError(t, ch.Run(context.Background(), "x"))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type orderChannel struct {
	Channel
	name  string
	order *[]string
}

func (o *orderChannel) Run(ctx context.Context, code string) error {
	*o.order = append(*o.order, o.name)
	return o.Channel.Run(ctx, code)
}

func TestServe(t *testing.T) {
	exec := ExecutorFunc(func(_ context.Context, code string) (string, error) {
		switch code {
		case "bad":
			return "", &ExecutionError{Code: code, Message: "UndefinedName: bad"}
		case "crash":
			return "", errors.New("engine gone")
		default:
			return code, nil
		}
	})

	var out bytes.Buffer
	err := Serve(context.Background(), exec, bytes.NewBufferString("1\n\nbad\n(x)\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "ok 1\nok\nerr UndefinedName: bad\nok (x)\n", out.String())

	out.Reset()
	err = Serve(context.Background(), exec, bytes.NewBufferString("1\ncrash\n2\n"), &out)
	require.ErrorContains(t, err, "engine gone")
	assert.Equal(t, "ok 1\n", out.String())
}
