package transform

import (
	"strings"

	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/table"
)

// DefaultAuxPrefixes are the column prefixes CleanAuxColumns drops when none are given.
var DefaultAuxPrefixes = []string{"_", "helper__", "fk__"}

// MarkHelpers renames the listed first-level columns to prefix+name unless they already
// carry the prefix. An empty sheet applies the rename to every sheet.
// Columns that do not exist are ignored.
func MarkHelpers(wb *table.Workbook, sheet string, cols []string, prefix string) (*table.Workbook, error) {
	if prefix == "" || len(cols) == 0 {
		return wb, nil
	}
	names := make(map[string]string, len(cols))
	for _, c := range cols {
		if !strings.HasPrefix(c, prefix) {
			names[c] = prefix + c
		}
	}

	out := wb.Clone()
	for _, name := range targetSheets(wb, sheet) {
		t, _ := wb.Get(name)
		renamed, err := t.RenameTop(names)
		if err != nil {
			return nil, err
		}
		out.Set(name, renamed)
	}
	return out, nil
}

// CleanAuxColumns drops every column whose first-level label starts with one of the
// prefixes. Nil prefixes mean DefaultAuxPrefixes.
func CleanAuxColumns(wb *table.Workbook, sheet string, prefixes []string) *table.Workbook {
	if prefixes == nil {
		prefixes = DefaultAuxPrefixes
	}
	out := wb.Clone()
	for _, name := range targetSheets(wb, sheet) {
		t, _ := wb.Get(name)
		out.Set(name, t.DropColumns(func(col header.Tuple) bool {
			for _, p := range prefixes {
				if p != "" && strings.HasPrefix(col.Top(), p) {
					return true
				}
			}
			return false
		}))
	}
	return out
}

// StripHelpers drops helper columns named with prefix from every sheet.
func StripHelpers(wb *table.Workbook, prefix string) *table.Workbook {
	out := wb.Clone()
	for _, name := range wb.Names() {
		t, _ := wb.Get(name)
		out.Set(name, t.DropTopPrefix(prefix))
	}
	return out
}

func targetSheets(wb *table.Workbook, sheet string) []string {
	if sheet == "" {
		return wb.Names()
	}
	if _, ok := wb.Get(sheet); !ok {
		return nil
	}
	return []string{sheet}
}
