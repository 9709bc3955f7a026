package table

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/pathcodec"
)

func decodeObjects(t *testing.T, s string) []*pathcodec.Object {
	t.Helper()
	objs, err := pathcodec.DecodeRecords(strings.NewReader(s))
	require.NoError(t, err)
	return objs
}

func TestPack_TwoLevelScenario(t *testing.T) {
	tbl, err := PackObjects(decodeObjects(t, `[{"a":{"b":1}}, {"a":{"c":2}}]`), 2)
	require.NoError(t, err)

	assert.Equal(t, []header.Tuple{{"a", "b"}, {"a", "c"}}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []any{json.Number("1"), ""}, tbl.Row(0))
	assert.Equal(t, []any{"", json.Number("2")}, tbl.Row(1))
}

func TestPack_InvalidLevels(t *testing.T) {
	for _, levels := range []int{0, 65, 1 << 50} {
		_, err := Pack([]*pathcodec.Record{{}}, levels)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidConfiguration), "levels=%d", levels)
	}
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	in := `[{"id":1,"customer":{"name":"Ann","address":{"city":"Bonn","zip":"53111"}}},{"id":2,"note":"x"}]`
	for levels := 1; levels <= 4; levels++ {
		tbl, err := PackObjects(decodeObjects(t, in), levels)
		require.NoError(t, err)

		objs, err := Unpack(tbl)
		require.NoError(t, err)
		out, err := json.Marshal(Shape(objs))
		require.NoError(t, err)
		assert.JSONEq(t, in, string(out), "levels=%d", levels)
	}
}

func TestUnpack_DropsEmptyRowsAndTrims(t *testing.T) {
	tbl, err := New(2, []header.Tuple{{"a", ""}, {"b", "c"}, {"", "nan"}})
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow([]any{"  x ", "", "ignored"}))
	require.NoError(t, tbl.AppendRow([]any{"   ", nil, "also ignored"}))
	require.NoError(t, tbl.AppendRow([]any{"", json.Number("5")}))

	objs, err := Unpack(tbl)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, map[string]any{"a": "x"}, pathcodec.ToNative(objs[0]))
	assert.Equal(t, map[string]any{"b": map[string]any{"c": json.Number("5")}}, pathcodec.ToNative(objs[1]))
}

func TestUnpack_ConflictReportsRow(t *testing.T) {
	tbl, err := New(1, []header.Tuple{{"a"}, {"a.b"}})
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow([]any{"1", "2"}))

	_, err = Unpack(tbl)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflictingPath))
	assert.Contains(t, err.Error(), "row 0")

	objs, err := Unpack(tbl, pathcodec.WithOverwrite())
	require.NoError(t, err)
	assert.Len(t, objs, 1)
}

func TestShape(t *testing.T) {
	none := Shape(nil)
	obj, ok := none.(*pathcodec.Object)
	require.True(t, ok)
	assert.Equal(t, 0, obj.Len())

	single := decodeObjects(t, `{"a":1}`)
	assert.Same(t, single[0], Shape(single))

	many := decodeObjects(t, `[{"a":1},{"a":2}]`)
	list, ok := Shape(many).([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)
}

func TestLookup_TieBreak(t *testing.T) {
	tbl, err := New(3, []header.Tuple{{"x", "y", ""}, {"id", "sub", ""}, {"id", "", ""}, {"name", "first", ""}, {"name", "last", ""}})
	require.NoError(t, err)

	i, ok := tbl.Lookup("id")
	require.True(t, ok)
	assert.Equal(t, 2, i, "column with empty deeper labels wins")

	i, ok = tbl.Lookup("name")
	require.True(t, ok)
	assert.Equal(t, 3, i, "first in order otherwise")

	_, ok = tbl.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"x", "id", "name"}, tbl.TopNames())
}

func TestLookup_SingleLevel(t *testing.T) {
	tbl, err := New(1, []header.Tuple{{"id"}, {"name"}})
	require.NoError(t, err)
	i, ok := tbl.Lookup("name")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
}

func TestNew_RejectsBadColumns(t *testing.T) {
	_, err := New(2, []header.Tuple{{"a", ""}, {"a", ""}})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, err = New(2, []header.Tuple{{"a"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestWithColumn_LeavesReceiverUntouched(t *testing.T) {
	tbl, err := New(2, []header.Tuple{{"id", ""}})
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow([]any{"1"}))

	next, err := tbl.WithColumn(header.Tuple{"_label"}, []any{"Ann"})
	require.NoError(t, err)

	assert.Equal(t, 1, tbl.Width())
	assert.Equal(t, 2, next.Width())
	assert.Equal(t, header.Tuple{"_label", ""}, next.Column(1))
	assert.Equal(t, "Ann", next.Cell(0, 1))

	_, err = tbl.WithColumn(header.Tuple{"x"}, nil)
	assert.Error(t, err)
	_, err = tbl.WithColumn(header.Tuple{"id"}, []any{"2"})
	assert.Error(t, err, "duplicate column")
}

func TestDropColumnsAndRename(t *testing.T) {
	tbl, err := New(1, []header.Tuple{{"id"}, {"_helper"}, {"name"}})
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow([]any{"1", "h", "Ann"}))

	dropped := tbl.DropTopPrefix("_")
	assert.Equal(t, []header.Tuple{{"id"}, {"name"}}, dropped.Columns())
	assert.Equal(t, []any{"1", "Ann"}, dropped.Row(0))
	assert.Equal(t, 3, tbl.Width())
	assert.Same(t, tbl, tbl.DropTopPrefix(""))

	renamed, err := tbl.RenameTop(map[string]string{"name": "label"})
	require.NoError(t, err)
	assert.True(t, renamed.HasTop("label"))
	assert.False(t, renamed.HasTop("name"))
	assert.Equal(t, "Ann", renamed.Cell(0, 2))
}

func TestAppendRow_PadsShortRows(t *testing.T) {
	tbl, err := New(1, []header.Tuple{{"a"}, {"b"}})
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow([]any{"1"}))
	assert.Equal(t, []any{"1", ""}, tbl.Row(0))
	assert.Error(t, tbl.AppendRow([]any{"1", "2", "3"}))
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", CellString(nil))
	assert.Equal(t, "7.50", CellString(json.Number("7.50")))
	assert.Equal(t, "true", CellString(true))
	assert.Equal(t, "2.5", CellString(2.5))
	assert.True(t, IsEmpty("  "))
	assert.False(t, IsEmpty(json.Number("0")))
}

func TestWorkbook(t *testing.T) {
	a, err := PackObjects(decodeObjects(t, `[{"id":1}]`), 1)
	require.NoError(t, err)
	b, err := PackObjects(decodeObjects(t, `[{"id":2}]`), 1)
	require.NoError(t, err)

	wb := NewWorkbook()
	wb.Set("Orders", a)
	wb.Set("Customers", b)
	wb.Set("Orders", a)
	assert.Equal(t, []string{"Orders", "Customers"}, wb.Names())

	same := wb.Clone()
	assert.Equal(t, wb.Fingerprint(), same.Fingerprint())
	assert.Len(t, wb.Fingerprint(), 64)

	same.Set("Orders", b)
	assert.NotEqual(t, wb.Fingerprint(), same.Fingerprint())
	got, _ := wb.Get("Orders")
	assert.Same(t, a, got)
}
