package pathcodec

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetbridge/internal/core/apperror"
)

func mustObject(t *testing.T, s string) *Object {
	t.Helper()
	v, err := Decode(strings.NewReader(s))
	require.NoError(t, err)
	obj, ok := v.(*Object)
	require.True(t, ok)
	return obj
}

func TestFlatten_DottedPathsAndListLeaves(t *testing.T) {
	obj := mustObject(t, `{"id":1,"customer":{"name":"Ann","address":{"city":"Bonn"}},"tags":["a","<b>"],"empty":{}}`)

	rec, err := Flatten(obj)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "customer.name", "customer.address.city", "tags"}, rec.Paths())
	v, _ := rec.Get("id")
	assert.Equal(t, json.Number("1"), v)
	v, _ = rec.Get("tags")
	assert.Equal(t, `["a","<b>"]`, v)
}

func TestFlatten_RejectsNonObjectRoot(t *testing.T) {
	_, err := Flatten([]any{"x"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestRoundTrip_ObjectsAndScalars(t *testing.T) {
	in := `{"a":{"b":1,"c":{"d":"x","e":true}},"f":null,"g":"2.50"}`
	obj := mustObject(t, in)

	rec, err := Flatten(obj)
	require.NoError(t, err)
	back, err := Unflatten(rec)
	require.NoError(t, err)

	out, err := json.Marshal(back)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Equal(t, in, string(out), "key order is preserved")
}

func TestRoundTrip_ListRecoverableFromString(t *testing.T) {
	obj := mustObject(t, `{"items":[{"sku":"A","qty":2},[1,2]]}`)
	rec, err := Flatten(obj)
	require.NoError(t, err)

	leaf, _ := rec.Get("items")
	reparsed, err := Decode(strings.NewReader(leaf.(string)))
	require.NoError(t, err)
	orig, _ := obj.Get("items")
	assert.Equal(t, ToNative(orig), ToNative(reparsed))
}

func TestUnflatten_Conflicts(t *testing.T) {
	tests := []struct {
		name  string
		paths [][2]string
	}{
		{"scalar then deeper path", [][2]string{{"a", "1"}, {"a.b", "2"}}},
		{"object then scalar", [][2]string{{"a.b", "2"}, {"a", "1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord()
			for _, p := range tt.paths {
				rec.Set(p[0], p[1])
			}

			_, err := Unflatten(rec)
			assert.True(t, apperror.HasCode(err, apperror.CodeConflictingPath))

			obj, err := Unflatten(rec, WithOverwrite())
			require.NoError(t, err)
			assert.Equal(t, 1, obj.Len())
		})
	}
}

func TestUnflatten_OverwriteIsLastWriteWins(t *testing.T) {
	rec := NewRecord()
	rec.Set("a", "1")
	rec.Set("a.b", "2")

	obj, err := Unflatten(rec, WithOverwrite())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": "2"}}, ToNative(obj))
}

func TestUnion_FirstSeenOrder(t *testing.T) {
	r1 := NewRecord()
	r1.Set("b", 1)
	r1.Set("a", 1)
	r2 := NewRecord()
	r2.Set("c", 1)
	r2.Set("a", 2)

	assert.Equal(t, []string{"b", "a", "c"}, Union([]*Record{r1, r2}))
}

func TestDecodeRecords(t *testing.T) {
	objs, err := DecodeRecords(strings.NewReader(`[{"a":1},{"b":2}]`))
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	objs, err = DecodeRecords(strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	assert.Len(t, objs, 1)

	_, err = DecodeRecords(strings.NewReader(`[1]`))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, err = DecodeRecords(strings.NewReader(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	_, err = DecodeRecords(strings.NewReader(`{"a":`))
	assert.Error(t, err)
}

func TestObject_UnmarshalJSON(t *testing.T) {
	var obj Object
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":{"k":[true]}}`), &obj))
	assert.Equal(t, []string{"z", "a"}, obj.Keys())

	out, err := json.Marshal(&obj)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"k":[true]}}`, string(out))
}
