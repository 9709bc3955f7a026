package xlsx

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/infrastructure/backend"
	"sheetbridge/internal/infrastructure/blob"
)

func sample(t *testing.T) *table.Workbook {
	t.Helper()
	tbl, err := table.New(2, []header.Tuple{{"id", ""}, {"customer", "name"}, {"active", ""}, {"code", ""}})
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow([]any{json.Number("1"), "Ann", true, "007"}))
	require.NoError(t, tbl.AppendRow([]any{json.Number("2.5"), "", false, ""}))

	wb := table.NewWorkbook()
	wb.Set("Orders", tbl)
	wb.Set(strings.Repeat("x", 40), tbl)
	return wb
}

func TestRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "book.xlsx")
	b := New(blob.NewResolver(blob.S3Config{}))
	ctx := context.Background()
	o := backend.Options{Levels: 2}

	require.NoError(t, b.WriteBook(ctx, p, sample(t), o))

	wb, err := b.ReadBook(ctx, p, o)
	require.NoError(t, err)
	assert.Equal(t, []string{"Orders", strings.Repeat("x", 31)}, wb.Names())

	orders, _ := wb.Get("Orders")
	assert.Equal(t, []header.Tuple{{"id", ""}, {"customer", "name"}, {"active", ""}, {"code", ""}}, orders.Columns())
	assert.Equal(t, []any{json.Number("1"), "Ann", true, "007"}, orders.Row(0))
	assert.Equal(t, []any{json.Number("2.5"), "", false, ""}, orders.Row(1))
}

func TestWriteBook_HeaderLayout(t *testing.T) {
	p := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, New(blob.NewResolver(blob.S3Config{})).WriteBook(context.Background(), p, sample(t), backend.Options{Levels: 2}))

	f, err := excelize.OpenFile(p)
	require.NoError(t, err)
	defer f.Close()

	panes, err := f.GetPanes("Orders")
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 2, panes.YSplit)
	assert.Equal(t, "A3", panes.TopLeftCell)

	styleID, err := f.GetCellStyle("Orders", "B2")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}
	long := strings.Repeat("a", 35)
	assert.Equal(t, strings.Repeat("a", 31), SheetName(long, used))
	assert.Equal(t, strings.Repeat("a", 29)+"~2", SheetName(long, used))
	assert.Equal(t, "Orders", SheetName("Orders", used))
}
