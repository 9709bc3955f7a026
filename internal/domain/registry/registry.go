// Package registry derives the sheet keys and id/label field conventions of a workbook.
//
// A registry is rebuilt from the current workbook on every validate or enrich call
// and is never persisted.
package registry

import (
	"fmt"
	"regexp"
	"strings"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/table"
)

// Default field names.
const (
	DefaultIDField    = "id"
	DefaultLabelField = "name"
)

// Fields names the id and label columns of a sheet.
type Fields struct {
	IDField    string `yaml:"id_field" json:"id_field,omitempty"`
	LabelField string `yaml:"label_field" json:"label_field,omitempty"`
}

// DefaultFields returns the stock conventions.
func DefaultFields() Fields {
	return Fields{IDField: DefaultIDField, LabelField: DefaultLabelField}
}

// merge fills empty fields of f from fallback.
func (f Fields) merge(fallback Fields) Fields {
	if f.IDField == "" {
		f.IDField = fallback.IDField
	}
	if f.LabelField == "" {
		f.LabelField = fallback.LabelField
	}
	return f
}

// Entry describes one sheet.
type Entry struct {
	SheetKey   string `json:"sheet_key"`
	SheetName  string `json:"sheet_name"`
	IDField    string `json:"id_field"`
	LabelField string `json:"label_field"`
}

// Registry stores entries by sheet key, in workbook order.
type Registry struct {
	entries map[string]Entry
	keys    []string
	byName  map[string]string
}

// foreignKeyName is the reserved column syntax <field>_(<sheet_key>).
var foreignKeyName = regexp.MustCompile(`^([^()]+)_\(([^()]+)\)$`)

// ParseForeignKeyName splits a column name of the form <field>_(<sheet_key>).
func ParseForeignKeyName(col string) (field, key string, ok bool) {
	m := foreignKeyName.FindStringSubmatch(col)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ForeignKeyName builds the column name that references key through field.
func ForeignKeyName(field, key string) string {
	return fmt.Sprintf("%s_(%s)", field, key)
}

// NormalizeSheetKey trims name and collapses whitespace runs into "_".
// Names containing parentheses are rejected because parentheses delimit keys in column names.
func NormalizeSheetKey(name string) (string, error) {
	if strings.ContainsAny(name, "()") {
		return "", apperror.NewReservedSyntax(fmt.Sprintf("sheet name %q contains parentheses", name)).
			WithDetail("sheet", name)
	}
	return strings.Join(strings.Fields(name), "_"), nil
}

// Build derives one entry per sheet of wb.
// overrides are looked up by sheet name first, then by sheet key; empty override fields
// fall back to defaults.
func Build(wb *table.Workbook, defaults Fields, overrides map[string]Fields) (*Registry, error) {
	defaults = defaults.merge(DefaultFields())
	r := &Registry{
		entries: make(map[string]Entry, wb.Len()),
		byName:  make(map[string]string, wb.Len()),
	}

	for _, name := range wb.Names() {
		key, err := NormalizeSheetKey(name)
		if err != nil {
			return nil, err
		}
		if prev, dup := r.entries[key]; dup {
			return nil, apperror.NewAmbiguousSheetKey(key, prev.SheetName, name)
		}

		fields := defaults
		if o, ok := overrides[name]; ok {
			fields = o.merge(defaults)
		} else if o, ok := overrides[key]; ok {
			fields = o.merge(defaults)
		}

		r.entries[key] = Entry{
			SheetKey:   key,
			SheetName:  name,
			IDField:    fields.IDField,
			LabelField: fields.LabelField,
		}
		r.keys = append(r.keys, key)
		r.byName[name] = key
	}
	return r, nil
}

// Get returns the entry for a sheet key.
func (r *Registry) Get(key string) (Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// BySheetName returns the entry for a sheet name.
func (r *Registry) BySheetName(name string) (Entry, bool) {
	key, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[key], true
}

// Keys returns sheet keys in workbook order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// List returns all entries in workbook order.
func (r *Registry) List() []Entry {
	list := make([]Entry, 0, len(r.keys))
	for _, k := range r.keys {
		list = append(list, r.entries[k])
	}
	return list
}

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.keys) }

// Violation lists the first-level columns of one sheet that misuse parentheses.
type Violation struct {
	Sheet   string   `json:"sheet"`
	Columns []string `json:"columns"`
}

// AssertNoParentheses checks that parentheses only appear in foreign-key column names.
// The error names the first offending sheet and lists every violation in its details.
func AssertNoParentheses(wb *table.Workbook) error {
	var violations []Violation
	for _, name := range wb.Names() {
		t, _ := wb.Get(name)
		var bad []string
		for _, top := range t.TopNames() {
			if !strings.ContainsAny(top, "()") {
				continue
			}
			if _, _, ok := ParseForeignKeyName(top); ok {
				continue
			}
			bad = append(bad, top)
		}
		if len(bad) > 0 {
			violations = append(violations, Violation{Sheet: name, Columns: bad})
		}
	}
	if len(violations) == 0 {
		return nil
	}

	first := violations[0]
	return apperror.NewReservedSyntax(fmt.Sprintf(
		"sheet %q uses parentheses outside the foreign-key syntax in columns %s",
		first.Sheet, strings.Join(first.Columns, ", "))).
		WithDetail("sheet", first.Sheet).
		WithDetail("columns", first.Columns).
		WithDetail("violations", violations)
}
