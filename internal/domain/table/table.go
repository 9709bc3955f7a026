// Package table holds the tabular side of the codec: column tuples, rows of cells and
// named workbooks of tables.
//
// Tables are immutable snapshots once built. Operations that add or drop columns
// return a new Table and leave the receiver untouched.
package table

import (
	"fmt"
	"strings"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/header"
)

// Table is an ordered set of column tuples plus rows aligned with them.
// A cell is a string, json.Number, bool or nil; "" marks a missing value.
type Table struct {
	levels  int
	columns []header.Tuple
	index   map[string]int
	rows    [][]any
}

// New creates an empty table with the given columns.
// Every tuple must have exactly levels labels and tuples must be unique.
func New(levels int, columns []header.Tuple) (*Table, error) {
	if err := header.ValidateLevels(levels); err != nil {
		return nil, err
	}
	t := &Table{
		levels:  levels,
		columns: make([]header.Tuple, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, col := range columns {
		if err := t.addColumn(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) addColumn(col header.Tuple) error {
	if len(col) != t.levels {
		return apperror.NewInvalidInput(fmt.Sprintf("column %s has %d labels, want %d", col, len(col), t.levels))
	}
	key := col.Key()
	if _, dup := t.index[key]; dup {
		return apperror.NewInvalidInput(fmt.Sprintf("duplicate column %s", col)).
			WithDetail("column", []string(col))
	}
	cp := make(header.Tuple, len(col))
	copy(cp, col)
	t.index[key] = len(t.columns)
	t.columns = append(t.columns, cp)
	return nil
}

// AppendRow adds a row while the table is being built by a reader or by Pack.
// Short rows are padded with "".
func (t *Table) AppendRow(cells []any) error {
	if len(cells) > len(t.columns) {
		return apperror.NewInvalidInput(fmt.Sprintf("row has %d cells, table has %d columns", len(cells), len(t.columns)))
	}
	row := make([]any, len(t.columns))
	copy(row, cells)
	for i := len(cells); i < len(row); i++ {
		row[i] = ""
	}
	t.rows = append(t.rows, row)
	return nil
}

// Levels returns the number of header rows.
func (t *Table) Levels() int { return t.levels }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns a copy of the column tuples.
func (t *Table) Columns() []header.Tuple {
	out := make([]header.Tuple, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column returns the tuple at index i.
func (t *Table) Column(i int) header.Tuple { return t.columns[i] }

// Cell returns the value at row r, column c.
func (t *Table) Cell(r, c int) any { return t.rows[r][c] }

// Row returns a copy of row r.
func (t *Table) Row(r int) []any {
	out := make([]any, len(t.rows[r]))
	copy(out, t.rows[r])
	return out
}

// ColumnValues returns the cells of column c in row order.
func (t *Table) ColumnValues(c int) []any {
	out := make([]any, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[c]
	}
	return out
}

// Index returns the position of the exact tuple.
func (t *Table) Index(col header.Tuple) (int, bool) {
	i, ok := t.index[col.Key()]
	return i, ok
}

// TopNames returns the distinct first-level labels in column order.
func (t *Table) TopNames() []string {
	seen := make(map[string]struct{}, len(t.columns))
	var out []string
	for _, col := range t.columns {
		top := col.Top()
		if _, ok := seen[top]; ok {
			continue
		}
		seen[top] = struct{}{}
		out = append(out, top)
	}
	return out
}

// Lookup finds a column by its first-level label.
// When several columns share the label, the one whose deeper labels are all empty wins,
// otherwise the first in column order.
func (t *Table) Lookup(top string) (int, bool) {
	first := -1
	for i, col := range t.columns {
		if col.Top() != top {
			continue
		}
		if deeperEmpty(col) {
			return i, true
		}
		if first < 0 {
			first = i
		}
	}
	return first, first >= 0
}

// HasTop reports whether any column carries the first-level label.
func (t *Table) HasTop(top string) bool {
	_, ok := t.Lookup(top)
	return ok
}

func deeperEmpty(col header.Tuple) bool {
	for _, seg := range col[1:] {
		if !header.IsEmptyLabel(seg) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		levels:  t.levels,
		columns: t.Columns(),
		index:   make(map[string]int, len(t.index)),
		rows:    make([][]any, len(t.rows)),
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	for r := range t.rows {
		out.rows[r] = t.Row(r)
	}
	return out
}

// WithColumn returns a copy of the table with one more column appended at the end.
// values must hold one cell per row.
func (t *Table) WithColumn(col header.Tuple, values []any) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, apperror.NewInvalidInput(fmt.Sprintf("column %s has %d values for %d rows", col, len(values), len(t.rows)))
	}
	out := t.Clone()
	if err := out.addColumn(header.Pad(col, t.levels)); err != nil {
		return nil, err
	}
	for r := range out.rows {
		out.rows[r] = append(out.rows[r], values[r])
	}
	return out, nil
}

// DropColumns returns a copy without the columns for which drop returns true.
func (t *Table) DropColumns(drop func(col header.Tuple) bool) *Table {
	var keep []int
	for i, col := range t.columns {
		if !drop(col) {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(t.columns) {
		return t
	}

	out := &Table{levels: t.levels, index: make(map[string]int, len(keep))}
	for _, i := range keep {
		out.index[t.columns[i].Key()] = len(out.columns)
		out.columns = append(out.columns, t.columns[i])
	}
	out.rows = make([][]any, len(t.rows))
	for r, row := range t.rows {
		cells := make([]any, len(keep))
		for j, i := range keep {
			cells[j] = row[i]
		}
		out.rows[r] = cells
	}
	return out
}

// DropTopPrefix drops every column whose first-level label starts with prefix.
func (t *Table) DropTopPrefix(prefix string) *Table {
	if prefix == "" {
		return t
	}
	return t.DropColumns(func(col header.Tuple) bool {
		return strings.HasPrefix(col.Top(), prefix)
	})
}

// RenameTop returns a copy with first-level labels renamed according to names.
func (t *Table) RenameTop(names map[string]string) (*Table, error) {
	cols := t.Columns()
	for i, col := range cols {
		if to, ok := names[col.Top()]; ok {
			renamed := make(header.Tuple, len(col))
			copy(renamed, col)
			renamed[0] = to
			cols[i] = renamed
		}
	}
	out, err := New(t.levels, cols)
	if err != nil {
		return nil, err
	}
	for r := range t.rows {
		out.rows = append(out.rows, t.Row(r))
	}
	return out, nil
}
