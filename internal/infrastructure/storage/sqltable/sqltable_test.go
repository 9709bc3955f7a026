package sqltable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/table"
)

func orders(t *testing.T) *table.Table {
	tbl, err := table.New(2, []header.Tuple{{"id", ""}, {"customer", "id"}})
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow([]any{json.Number("10"), json.Number("1")}))
	require.NoError(t, tbl.AppendRow([]any{json.Number("11"), ""}))
	return tbl
}

func TestColumns(t *testing.T) {
	cols, err := Columns(orders(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "customer.id"}, cols)

	clash, err := table.New(2, []header.Tuple{{"a", "b"}, {"a.b", ""}})
	require.NoError(t, err)
	_, err = Columns(clash)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestRecreate(t *testing.T) {
	stmts := Postgres("books").Recreate(`Or"ders`, []string{"id", "customer.id"})
	assert.Equal(t, []string{
		`DROP TABLE IF EXISTS "books"."Or""ders"`,
		`CREATE TABLE "books"."Or""ders" ("__row" INTEGER NOT NULL, "id" TEXT, "customer.id" TEXT)`,
	}, stmts)
}

func TestInserts_Batches(t *testing.T) {
	d := SQLite()
	d.MaxParams = 6
	stmts, err := d.Inserts("Orders", []string{"id", "customer.id"}, Rows(orders(t)))
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, `INSERT INTO "Orders" ("__row","id","customer.id") VALUES (?,?,?),(?,?,?)`, stmts[0].SQL)
	assert.Equal(t, []any{0, "10", "1", 1, "11", nil}, stmts[0].Args)

	d.MaxParams = 3
	stmts, err = d.Inserts("Orders", []string{"id", "customer.id"}, Rows(orders(t)))
	require.NoError(t, err)
	assert.Len(t, stmts, 2)
}

func TestSelect(t *testing.T) {
	st, err := Postgres("").Select("Orders", []string{RowColumn, "id"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "__row", "id" FROM "Orders" ORDER BY "__row"`, st.SQL)

	st, err = Postgres("s").SelectCatalog()
	require.NoError(t, err)
	assert.Equal(t, `SELECT name FROM "s"."__sheets" ORDER BY position`, st.SQL)

	st, err = Postgres("").CatalogEntry(0, "Orders")
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "__sheets" (position,name) VALUES ($1,$2)`, st.SQL)
}

func TestFromRows(t *testing.T) {
	rows := []map[string]any{
		{RowColumn: int64(0), "id": "10", "customer.id": []byte("1")},
		{RowColumn: int64(1), "id": "11", "customer.id": nil},
	}
	tbl, err := FromRows([]string{RowColumn, "id", "customer.id"}, rows, 2)
	require.NoError(t, err)
	assert.Equal(t, []header.Tuple{{"id", ""}, {"customer", "id"}}, tbl.Columns())
	assert.Equal(t, []any{"10", "1"}, tbl.Row(0))
	assert.Equal(t, []any{"11", ""}, tbl.Row(1))
}
