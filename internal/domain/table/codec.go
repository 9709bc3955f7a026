package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/pathcodec"
)

// Pack lays flat records out as a table with levels header rows.
// Columns follow the first-seen path order across all records and every row carries
// every column, with "" for paths a record does not have.
func Pack(records []*pathcodec.Record, levels int) (*Table, error) {
	if err := header.ValidateLevels(levels); err != nil {
		return nil, err
	}
	paths := pathcodec.Union(records)
	cols := make([]header.Tuple, len(paths))
	for i, p := range paths {
		tuple, err := header.ToTuple(p, levels)
		if err != nil {
			return nil, err
		}
		cols[i] = tuple
	}

	t, err := New(levels, cols)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := make([]any, len(paths))
		for i, p := range paths {
			if v, ok := rec.Get(p); ok {
				row[i] = v
			} else {
				row[i] = ""
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// PackObjects flattens objs and packs them.
func PackObjects(objs []*pathcodec.Object, levels int) (*Table, error) {
	records, err := pathcodec.FlattenAll(objs)
	if err != nil {
		return nil, err
	}
	return Pack(records, levels)
}

// Unpack rebuilds one object per row.
// Columns whose header carries no label and cells that are empty are skipped; string cells
// are trimmed. Rows that end up without any value are not emitted.
func Unpack(t *Table, opts ...pathcodec.Option) ([]*pathcodec.Object, error) {
	paths := make([]string, len(t.columns))
	for i, col := range t.columns {
		paths[i] = header.FromTuple(col)
	}

	var out []*pathcodec.Object
	for r, row := range t.rows {
		obj := pathcodec.NewObject()
		assigned := 0
		for c, v := range row {
			if paths[c] == "" || IsEmpty(v) {
				continue
			}
			if s, ok := v.(string); ok {
				v = strings.TrimSpace(s)
			}
			if err := pathcodec.Set(obj, paths[c], v, opts...); err != nil {
				return nil, fmt.Errorf("row %d: %w", r, err)
			}
			assigned++
		}
		if assigned > 0 {
			out = append(out, obj)
		}
	}
	return out, nil
}

// Shape applies the external result contract: one object is returned as itself,
// several as a list and none as an empty object.
func Shape(objs []*pathcodec.Object) any {
	switch len(objs) {
	case 0:
		return pathcodec.NewObject()
	case 1:
		return objs[0]
	default:
		out := make([]any, len(objs))
		for i, o := range objs {
			out[i] = o
		}
		return out
	}
}

// IsEmpty reports whether a cell holds no value.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

// CellString renders a cell as text.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
