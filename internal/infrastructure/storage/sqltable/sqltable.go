// Package sqltable maps tables onto SQL tables: one SQL column per header tuple, named by
// its dotted path, every value stored as text. A catalog table keeps the sheet order so
// a workbook reads back in the order it was written.
package sqltable

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/table"
)

const (
	// RowColumn keeps the row order of a sheet.
	RowColumn = "__row"
	// CatalogTable lists the sheets of a stored workbook.
	CatalogTable = "__sheets"
)

// Statement is a built SQL statement with its arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Dialect carries what differs between databases.
type Dialect struct {
	Placeholder squirrel.PlaceholderFormat
	// Schema qualifies table names when set.
	Schema string
	// MaxParams bounds the number of bind parameters in one statement.
	MaxParams int
}

// Postgres returns the PostgreSQL dialect for schema.
func Postgres(schema string) Dialect {
	return Dialect{Placeholder: squirrel.Dollar, Schema: schema, MaxParams: 65535}
}

// SQLite returns the SQLite dialect.
func SQLite() Dialect {
	return Dialect{Placeholder: squirrel.Question, MaxParams: 32766}
}

// Builder returns a squirrel builder with the dialect placeholder format.
func (d Dialect) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder)
}

// Quote quotes an identifier.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Table returns the qualified, quoted name of a sheet table.
func (d Dialect) Table(name string) string {
	if d.Schema == "" {
		return Quote(name)
	}
	return Quote(d.Schema) + "." + Quote(name)
}

// Columns returns the SQL column name of every column of t. Two tuples that flatten to
// the same dotted path cannot be stored side by side and are rejected.
func Columns(t *table.Table) ([]string, error) {
	out := make([]string, t.Width())
	seen := make(map[string]bool, t.Width())
	for i, col := range t.Columns() {
		name := header.FromTuple(col)
		if name == "" || name == RowColumn {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("column %s cannot be stored as SQL column", col))
		}
		if seen[name] {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("columns flatten to the same SQL column %q", name)).
				WithDetail("column", name)
		}
		seen[name] = true
		out[i] = name
	}
	return out, nil
}

// CreateCatalog creates the catalog table when it does not exist.
func (d Dialect) CreateCatalog() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (position INTEGER NOT NULL, name TEXT PRIMARY KEY)",
		d.Table(CatalogTable))
}

// ClearCatalog removes every catalog entry.
func (d Dialect) ClearCatalog() (Statement, error) {
	sql, args, err := d.Builder().Delete(d.Table(CatalogTable)).ToSql()
	return Statement{SQL: sql, Args: args}, err
}

// CatalogEntry registers a sheet.
func (d Dialect) CatalogEntry(position int, name string) (Statement, error) {
	sql, args, err := d.Builder().
		Insert(d.Table(CatalogTable)).
		Columns("position", "name").
		Values(position, name).
		ToSql()
	return Statement{SQL: sql, Args: args}, err
}

// SelectCatalog lists the registered sheets in order.
func (d Dialect) SelectCatalog() (Statement, error) {
	sql, args, err := d.Builder().
		Select("name").
		From(d.Table(CatalogTable)).
		OrderBy("position").
		ToSql()
	return Statement{SQL: sql, Args: args}, err
}

// Recreate returns the statements that drop and recreate the table of a sheet.
func (d Dialect) Recreate(name string, cols []string) []string {
	defs := make([]string, 0, len(cols)+1)
	defs = append(defs, Quote(RowColumn)+" INTEGER NOT NULL")
	for _, c := range cols {
		defs = append(defs, Quote(c)+" TEXT")
	}
	return []string{
		"DROP TABLE IF EXISTS " + d.Table(name),
		fmt.Sprintf("CREATE TABLE %s (%s)", d.Table(name), strings.Join(defs, ", ")),
	}
}

// Rows returns the rows of t as SQL values, the row ordinal first. Empty cells become NULL.
func Rows(t *table.Table) [][]any {
	out := make([][]any, t.Len())
	for r := range out {
		cells := t.Row(r)
		row := make([]any, 0, len(cells)+1)
		row = append(row, r)
		for _, v := range cells {
			if table.IsEmpty(v) {
				row = append(row, nil)
				continue
			}
			row = append(row, table.CellString(v))
		}
		out[r] = row
	}
	return out
}

// Inserts splits rows into multi-row INSERT statements that stay under MaxParams.
func (d Dialect) Inserts(name string, cols []string, rows [][]any) ([]Statement, error) {
	quoted := make([]string, 0, len(cols)+1)
	quoted = append(quoted, Quote(RowColumn))
	for _, c := range cols {
		quoted = append(quoted, Quote(c))
	}
	per := 1
	if d.MaxParams > 0 {
		per = max(1, d.MaxParams/len(quoted))
	}

	var out []Statement
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		q := d.Builder().Insert(d.Table(name)).Columns(quoted...)
		for _, row := range rows[start:end] {
			q = q.Values(row...)
		}
		sql, args, err := q.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build insert %s: %w", name, err)
		}
		out = append(out, Statement{SQL: sql, Args: args})
	}
	return out, nil
}

// Select reads the given columns of a sheet in row order.
func (d Dialect) Select(name string, cols []string) (Statement, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = Quote(c)
	}
	q := d.Builder().Select(quoted...).From(d.Table(name))
	for _, c := range cols {
		if c == RowColumn {
			q = q.OrderBy(Quote(RowColumn))
			break
		}
	}
	sql, args, err := q.ToSql()
	return Statement{SQL: sql, Args: args}, err
}

// FromRows builds a table from SQL column names in order and scanned rows.
// The row ordinal column is not part of the result; NULL reads back as "".
func FromRows(cols []string, rows []map[string]any, levels int) (*table.Table, error) {
	var keep []string
	var tuples []header.Tuple
	for _, c := range cols {
		if c == RowColumn {
			continue
		}
		tuple, err := header.ToTuple(c, levels)
		if err != nil {
			return nil, err
		}
		keep = append(keep, c)
		tuples = append(tuples, tuple)
	}
	t, err := table.New(levels, tuples)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		cells := make([]any, len(keep))
		for i, c := range keep {
			cells[i] = textValue(row[c])
		}
		if err := t.AppendRow(cells); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func textValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return table.CellString(x)
	}
}
