package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multicast/internal/ir"
)

func TestJSONCodec(t *testing.T) {
	codec := JSONCodec[button]{}

	v, err := codec.Save(&button{Label: "go", Count: 2})
	require.NoError(t, err)

	byValue, err := codec.Save(button{Label: "go", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, v, byValue)

	out, err := codec.Restore(v)
	require.NoError(t, err)
	assert.Equal(t, &button{Label: "go", Count: 2}, out)

	_, err = codec.Save("string")
	assert.Error(t, err)

	_, err = codec.Save((*button)(nil))
	assert.Error(t, err)
}

func TestJSONCodec_RejectsFloats(t *testing.T) {
	type gauge struct {
		Level float64 `json:"level"`
	}
	_, err := JSONCodec[gauge]{}.Save(&gauge{Level: 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	// Integral values encode as integers and survive.
	v, err := JSONCodec[gauge]{}.Save(&gauge{Level: 2})
	require.NoError(t, err)
	out, err := JSONCodec[gauge]{}.Restore(v)
	require.NoError(t, err)
	assert.Equal(t, &gauge{Level: 2}, out)
}

func TestObjectTable_PreservesIdentity(t *testing.T) {
	table := NewObjectTable()
	b := &button{Label: "shared"}
	require.NoError(t, table.Bind("main", b))

	v, err := table.Save(b)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("main"), v)

	out, err := table.Restore(v)
	require.NoError(t, err)
	assert.Same(t, b, out)
}

func TestObjectTable_Errors(t *testing.T) {
	table := NewObjectTable()

	assert.Error(t, table.Bind("", &button{}))
	assert.Error(t, table.Bind("x", nil))
	assert.Error(t, table.Bind("x", []int{1}))

	_, err := table.Save(&button{})
	assert.Error(t, err, "unbound object")

	_, err = table.Restore(ir.IRInt(1))
	assert.Error(t, err)

	_, err = table.Restore(ir.IRString("missing"))
	assert.Error(t, err)
}

func TestObjectTable_MapReceiver(t *testing.T) {
	table := NewObjectTable()
	settings := map[string]int{"volume": 3}
	require.NoError(t, table.Bind("settings", settings))

	v, err := table.Save(settings)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("settings"), v)

	_, err = table.Save(map[string]int{"volume": 3})
	assert.Error(t, err, "an equal map is a different object")
}

func TestObjectTable_Rebind(t *testing.T) {
	table := NewObjectTable()
	a, b := &button{Label: "a"}, &button{Label: "b"}

	require.NoError(t, table.Bind("slot", a))
	require.NoError(t, table.Bind("slot", b))

	_, err := table.Save(a)
	assert.Error(t, err, "a lost its name when slot was rebound")

	got, ok := table.Lookup("slot")
	require.True(t, ok)
	assert.Same(t, b, got)
}
