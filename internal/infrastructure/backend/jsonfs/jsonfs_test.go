package jsonfs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/infrastructure/backend"
	"sheetbridge/internal/infrastructure/blob"
)

func opts(levels int) backend.Options {
	o := backend.DefaultOptions()
	o.Levels = levels
	return o
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestDir_ReadBook(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Orders.json"), `[{"id":10,"customer":{"id":1}},{"id":11,"note":"rush"}]`)
	writeFile(t, filepath.Join(dir, "Customers.json"), `{"id":1,"name":"Ann"}`)
	writeFile(t, filepath.Join(dir, "README.md"), `ignored`)

	wb, err := NewDir(blob.NewResolver(blob.S3Config{})).ReadBook(context.Background(), dir, opts(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"Customers", "Orders"}, wb.Names())

	orders, _ := wb.Get("Orders")
	assert.Equal(t, []header.Tuple{{"id", ""}, {"customer", "id"}, {"note", ""}}, orders.Columns())
	assert.Equal(t, []any{json.Number("11"), "", "rush"}, orders.Row(1))
}

func TestDir_RoundTrip(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "book")
	writeFile(t, filepath.Join(in, "Orders.json"), `[{"id":10,"customer":{"id":1,"name":"Ann"}}]`)

	d := NewDir(blob.NewResolver(blob.S3Config{}))
	ctx := context.Background()
	wb, err := d.ReadBook(ctx, in, opts(3))
	require.NoError(t, err)
	require.NoError(t, d.WriteBook(ctx, out, wb, opts(3)))

	data, err := os.ReadFile(filepath.Join(out, "Orders.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":10,"customer":{"id":1,"name":"Ann"}}]`, string(data))
}

func TestFile_Shape(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "one.json")
	writeFile(t, in, `{"id":"A-1","tags":["x","y"]}`)

	book := backend.SingleSheet{Sheets: NewFile(blob.NewResolver(blob.S3Config{}))}
	ctx := context.Background()
	wb, err := book.ReadBook(ctx, in, opts(1))
	require.NoError(t, err)
	assert.Equal(t, []string{backend.DefaultSheetName}, wb.Names())

	out := filepath.Join(dir, "out.json")
	require.NoError(t, book.WriteBook(ctx, out, wb, opts(1)))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"A-1","tags":"[\"x\",\"y\"]"}`, string(data))
}

func TestFile_RejectsScalars(t *testing.T) {
	in := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, in, `[1,2]`)

	_, err := NewFile(blob.NewResolver(blob.S3Config{})).ReadSheet(context.Background(), in, opts(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}
