package jsonvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Value {
	t.Helper()
	v, err := Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func asJSON(t *testing.T, v Value) string {
	t.Helper()
	data, err := v.MarshalJSON()
	require.NoError(t, err)
	return string(data)
}

func TestParse_PreservesKeyOrder(t *testing.T) {
	v := mustParse(t, `{"b":1,"a":{"z":true,"y":null},"c":[1,"x"]}`)
	assert.Equal(t, KindObject, v.Kind())
	assert.Equal(t, []string{"b", "a", "c"}, v.Keys())
	assert.Equal(t, `{"b":1,"a":{"z":true,"y":null},"c":[1,"x"]}`, asJSON(t, v))
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"invalid json{{{", "", `{"a":1} {}`, `{"a":`, `[1,2`} {
		_, err := Parse([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestMerge_DisjointObjectsYieldUnion(t *testing.T) {
	a := mustParse(t, `{"x":1,"y":{"k":"v"}}`)
	b := mustParse(t, `{"z":[1,2]}`)
	got := Merge(a, b)
	assert.Equal(t, `{"x":1,"y":{"k":"v"},"z":[1,2]}`, asJSON(t, got))
}

func TestMerge_Cases(t *testing.T) {
	tests := []struct {
		name, target, source, want string
	}{
		{"nested objects", `{"a":{"b":1,"c":2}}`, `{"a":{"c":3,"d":4}}`, `{"a":{"b":1,"c":3,"d":4}}`},
		{"arrays union", `["a","b"]`, `["b","c","a","d"]`, `["a","b","c","d"]`},
		{"array of objects union", `[{"x":1,"y":2}]`, `[{"y":2,"x":1},{"x":3}]`, `[{"x":1,"y":2},{"x":3}]`},
		{"scalar overwritten", `{"a":1}`, `{"a":"two"}`, `{"a":"two"}`},
		{"mismatched kinds source wins", `{"a":[1]}`, `{"a":{"b":1}}`, `{"a":{"b":1}}`},
		{"object replaced by scalar", `{"a":{"b":1}}`, `{"a":5}`, `{"a":5}`},
		{"null source overwrites", `{"a":1}`, `{"a":null}`, `{"a":null}`},
		{"top-level scalar", `1`, `2`, `2`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(mustParse(t, tt.target), mustParse(t, tt.source))
			assert.Equal(t, tt.want, asJSON(t, got))
		})
	}
}

func TestMerge_SelfIsIdempotentUpToDedup(t *testing.T) {
	x := mustParse(t, `{"a":[1,1,2],"b":{"c":"d"},"e":3}`)
	got := Merge(x, x)
	assert.Equal(t, `{"a":[1,2],"b":{"c":"d"},"e":3}`, asJSON(t, got))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := mustParse(t, `{"a":{"b":1}}`)
	b := mustParse(t, `{"a":{"c":2}}`)
	_ = Merge(a, b)
	assert.Equal(t, `{"a":{"b":1}}`, asJSON(t, a))
	assert.Equal(t, `{"a":{"c":2}}`, asJSON(t, b))
}

func TestEqual_IgnoresKeyOrder(t *testing.T) {
	assert.True(t, Equal(mustParse(t, `{"a":1,"b":2}`), mustParse(t, `{"b":2,"a":1}`)))
	assert.False(t, Equal(mustParse(t, `[1,2]`), mustParse(t, `[2,1]`)))
}

func TestFromGoAndDecode(t *testing.T) {
	type item struct {
		Name string   `json:"name"`
		Tags []string `json:"tags"`
	}
	v, err := FromGo(item{Name: "n", Tags: []string{"t"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "tags"}, v.Keys())

	var back item
	require.NoError(t, v.Decode(&back))
	assert.Equal(t, item{Name: "n", Tags: []string{"t"}}, back)
}
