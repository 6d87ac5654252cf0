package broadcast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dict = map[string]any

func TestSlice_ReplicatesSingle(t *testing.T) {
	out, err := Slice([]int{7}, 4, "v")
	require.NoError(t, err)
	assert.Equal(t, []int{7, 7, 7, 7}, out)
}

func TestSlice_ExactLength(t *testing.T) {
	in := []int{1, 2, 3}
	out, err := Slice(in, 3, "v")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSlice_ShapeMismatch(t *testing.T) {
	_, err := Slice([]int{1, 2}, 3, "params")
	require.Error(t, err)

	var shapeErr *ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "params", shapeErr.Field)
	assert.Equal(t, 3, shapeErr.Expected)
	assert.Equal(t, 2, shapeErr.Actual)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "length 1 or 3")
	assert.Contains(t, err.Error(), "got length 2")
}

func TestSlice_EmptyList(t *testing.T) {
	_, err := Slice([]int{}, 2, "v")
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestValue_Single(t *testing.T) {
	p := dict{"V_m": -70.0}
	out, err := Value[dict](p, 3, "params")
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, d := range out {
		assert.Equal(t, p, d)
	}
}

func TestValue_TypedList(t *testing.T) {
	in := []dict{{"a": 1}, {"a": 2}}
	out, err := Value[dict](in, 2, "params")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestValue_UntypedList(t *testing.T) {
	out, err := Value[dict]([]any{dict{"a": 1}}, 2, "params")
	require.NoError(t, err)
	assert.Equal(t, []dict{{"a": 1}, {"a": 1}}, out)
}

func TestValue_UntypedListWrongElement(t *testing.T) {
	_, err := Value[dict]([]any{dict{"a": 1}, 3}, 2, "params")

	var typeErr *TypeMismatchError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "params[1]", typeErr.Field)
	assert.Equal(t, "int", typeErr.Got)
}

func TestValue_TypeMismatch(t *testing.T) {
	_, err := Value[dict]("V_m", 2, "params")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.False(t, errors.Is(err, ErrShapeMismatch))
	assert.Equal(t, "params must be a dictionary or a list of dictionaries, got string", err.Error())
}

func TestValue_ShapeMismatch(t *testing.T) {
	_, err := Value[dict]([]dict{{}, {}, {}}, 2, "params")
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestValue_NonMapTypeNames(t *testing.T) {
	_, err := Value[float64]("x", 2, "val")
	assert.EqualError(t, err, "val must be float64 or a list of float64, got string")
}
