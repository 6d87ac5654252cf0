package main

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
	"github.com/germanamz/nestbridge/pkg/status"
)

func TestHandleLabel(t *testing.T) {
	assert.Equal(t, "7", handleLabel(handles.Nodes{5, 7}, 1))
	conns := handles.Connections{{Source: 1, Target: 2, TargetThread: 0, SynapseModelID: 3, Port: 4}}
	assert.Equal(t, "1-2:0:3:4", handleLabel(conns, 0))

	parsed, err := handles.ParseList("c:" + handleLabel(conns, 0))
	require.NoError(t, err)
	assert.Equal(t, conns, parsed)
}

func TestStatusRows_AllKeysUnion(t *testing.T) {
	reply := status.Reply{
		Handles: handles.Nodes{1, 2},
		Keys:    status.AllKeys{},
		Values:  []any{sli.Dict{"b": 1, "a": 2}, sli.Dict{"c": 3}},
	}
	columns, rows := statusRows(reply)
	assert.Equal(t, []string{"a", "b", "c"}, columns)
	assert.Nil(t, rows[1]["a"])
	assert.Equal(t, 3, rows[1]["c"])
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "text", formatCell("text"))
	assert.Equal(t, "iaf_psc_alpha", formatCell(sli.Literal("iaf_psc_alpha")))
	assert.Equal(t, "-70.0", formatCell(-70.0))
	assert.Equal(t, "[ 1 2 ]", formatCell(sli.Array{int64(1), int64(2)}))
}

func TestTruncateCell(t *testing.T) {
	assert.Equal(t, "short", truncateCell("short"))

	long := strings.Repeat("数", 40)
	got := truncateCell(long)
	assert.LessOrEqual(t, runewidth.StringWidth(got), maxCellWidth)
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestRenderYAML_Empty(t *testing.T) {
	out, err := renderYAML(status.Reply{Handles: handles.Nodes{}, Keys: status.AllKeys{}})
	require.NoError(t, err)
	assert.Equal(t, "{}\n", out)
}

func TestRenderYAML_Literals(t *testing.T) {
	out, err := renderYAML(status.Reply{
		Handles: handles.Nodes{1},
		Keys:    status.AllKeys{},
		Values:  []any{sli.Dict{"model": sli.Literal("iaf_psc_alpha"), "V_m": -70.5}},
	})
	require.NoError(t, err)
	assert.Equal(t, "\"1\":\n  V_m: -70.5\n  model: /iaf_psc_alpha\n", out)
}

func TestStatusDiff_NoChanges(t *testing.T) {
	reply := status.Reply{Handles: handles.Nodes{1}, Keys: status.OneKey{Name: "V_m"}, Values: []any{-70.0}}
	out, err := statusDiff(reply, reply)
	require.NoError(t, err)
	assert.Empty(t, out)
}
