package status

import (
	"testing"

	"github.com/germanamz/nestbridge/pkg/sli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	p, err := ParseParams(map[string]any{"a": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, Single{Dict: sli.Dict{"a": 1}}, p)

	p, err = ParseParams(map[string]any{"a": 1}, 5)
	require.NoError(t, err)
	assert.Equal(t, Single{Dict: sli.Dict{"a": 1}}, p, "val is ignored for dictionaries")

	p, err = ParseParams([]map[string]any{{"a": 1}, {"a": 2}}, nil)
	require.NoError(t, err)
	assert.Equal(t, PerEntity{Dicts: []sli.Dict{{"a": 1}, {"a": 2}}}, p)

	p, err = ParseParams(sli.Literal("rate"), []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, Named{Key: "rate", Value: []int{1, 2}}, p)

	_, err = ParseParams([]any{map[string]any{}, "x"}, nil)
	var typeErr *TypeMismatchError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "params[1]", typeErr.Field)
	assert.Equal(t, "params[1] must be a dictionary or a list of dictionaries, got string", err.Error())

	in := []any{map[string]float64{"a": 1}, sli.Dict{"b": 2}}
	p, err = ParseParams(in, nil)
	require.NoError(t, err)
	assert.Equal(t, PerEntity{Dicts: []sli.Dict{{"a": 1.0}, {"b": 2}}}, p)
	assert.IsType(t, map[string]float64{}, in[0], "input list is not modified")

	p, err = ParseParams([]any{}, nil)
	require.NoError(t, err)
	assert.Equal(t, PerEntity{Dicts: []sli.Dict{}}, p)

	_, err = ParseParams(nil, nil)
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "params must be a dictionary or a list of dictionaries or a parameter name with val, got <nil>", err.Error())
}

func TestNormalize(t *testing.T) {
	dicts, err := Normalize(Named{Key: "rate", Value: []any{5, 10}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []sli.Dict{{"rate": 5}, {"rate": 10}}, dicts)

	dicts, err = Normalize(Named{Key: "pos", Value: map[string]any{"x": 1}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []sli.Dict{{"pos": map[string]any{"x": 1}}, {"pos": map[string]any{"x": 1}}}, dicts)

	dicts, err = Normalize(Named{Key: "label", Value: "exc"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []sli.Dict{{"label": "exc"}}, dicts)

	dicts, err = Normalize(PerEntity{Dicts: []sli.Dict{{"a": 1}}}, 3)
	require.NoError(t, err)
	assert.Len(t, dicts, 3)

	_, err = Normalize(PerEntity{}, 2)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestParseKeys(t *testing.T) {
	k, err := ParseKeys(nil)
	require.NoError(t, err)
	assert.Equal(t, AllKeys{}, k)

	k, err = ParseKeys("V_m")
	require.NoError(t, err)
	assert.Equal(t, OneKey{Name: "V_m"}, k)

	k, err = ParseKeys([]any{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, KeyList{"b", "a"}, k)

	k, err = ParseKeys([]string{})
	require.NoError(t, err)
	assert.Equal(t, KeyList{}, k)

	for _, bad := range []any{42, map[string]any{"a": 1}, []any{"a", 2.0}, true} {
		_, err := ParseKeys(bad)
		assert.ErrorIs(t, err, ErrKeySpecification, "%v", bad)
	}
}
