package reference

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"sheetbridge/internal/core/types"
	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/registry"
	"sheetbridge/internal/domain/table"
)

// MissingReference lists the values of one foreign-key column that do not resolve.
type MissingReference struct {
	Column        string   `json:"column"`
	Target        string   `json:"target"`
	MissingValues []string `json:"missing_values"`
	// Count is the number of rows holding an unresolved value.
	Count int `json:"count"`
	// Rows are the 0-based data row indexes holding an unresolved value.
	Rows []int `json:"rows"`
}

// forEachSheet runs fn for every registered sheet on a bounded worker group.
// Each call writes only its own slot, so results come back in workbook order.
func forEachSheet[T any](ctx context.Context, wb *table.Workbook, reg *registry.Registry,
	fn func(entry registry.Entry, t *table.Table) T,
) ([]T, []registry.Entry, error) {
	entries := reg.List()
	results := make([]T, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, entry := range entries {
		i, entry := i, entry
		t, ok := wb.Get(entry.SheetName)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = fn(entry, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, entries, nil
}

// FindDuplicateIDs reports, per sheet name, every normalized id occurring more than once.
// Each duplicated id is listed once, in ascending order. Sheets without an id column are skipped.
func FindDuplicateIDs(ctx context.Context, wb *table.Workbook, reg *registry.Registry) (map[string][]string, error) {
	results, entries, err := forEachSheet(ctx, wb, reg, duplicateIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for i, dups := range results {
		if len(dups) > 0 {
			out[entries[i].SheetName] = dups
		}
	}
	return out, nil
}

func duplicateIDs(entry registry.Entry, t *table.Table) []string {
	idCol, ok := t.Lookup(entry.IDField)
	if !ok {
		return nil
	}
	counts := make(map[string]int, t.Len())
	for r := 0; r < t.Len(); r++ {
		if id, ok := types.NormalizeID(t.Cell(r, idCol)); ok {
			counts[id]++
		}
	}
	var dups []string
	for id, n := range counts {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	sort.Strings(dups)
	return dups
}

// FindMissingReferences reports, per sheet name, the foreign-key columns holding values
// absent from the target sheet's id map. Empty cells are ignored and only columns with at
// least one unresolved value are listed.
func FindMissingReferences(ctx context.Context, wb *table.Workbook, reg *registry.Registry,
	maps map[string]LabelMap, rules Rules,
) (map[string][]MissingReference, error) {
	scan := func(_ registry.Entry, t *table.Table) []MissingReference {
		return missingReferences(t, DetectForeignKeys(t, reg, rules), maps)
	}
	results, entries, err := forEachSheet(ctx, wb, reg, scan)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]MissingReference)
	for i, missing := range results {
		if len(missing) > 0 {
			out[entries[i].SheetName] = missing
		}
	}
	return out, nil
}

func missingReferences(t *table.Table, fks []ForeignKey, maps map[string]LabelMap) []MissingReference {
	var out []MissingReference
	for _, fk := range fks {
		col, ok := t.Lookup(fk.Column)
		if !ok {
			continue
		}
		target := maps[fk.TargetKey]
		seen := make(map[string]struct{})
		mr := MissingReference{Column: fk.Column, Target: fk.TargetKey}
		for r := 0; r < t.Len(); r++ {
			v := t.Cell(r, col)
			if table.IsEmpty(v) {
				continue
			}
			id, ok := types.NormalizeID(v)
			if !ok || target.Has(id) {
				continue
			}
			mr.Count++
			mr.Rows = append(mr.Rows, r)
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				mr.MissingValues = append(mr.MissingValues, id)
			}
		}
		if len(mr.MissingValues) > 0 {
			sort.Strings(mr.MissingValues)
			out = append(out, mr)
		}
	}
	return out
}

// FindUnrecognized collects DetectUnrecognized over every sheet in workbook order.
func FindUnrecognized(wb *table.Workbook, reg *registry.Registry, rules Rules) []Unrecognized {
	var out []Unrecognized
	for _, name := range wb.Names() {
		t, _ := wb.Get(name)
		out = append(out, DetectUnrecognized(name, t, reg, rules)...)
	}
	return out
}

// ApplyHelperColumns appends one label column per foreign key, after the existing columns.
// A helper whose name is already a column is left alone. Unresolved ids get "".
func ApplyHelperColumns(t *table.Table, fks []ForeignKey, maps map[string]LabelMap) (*table.Table, error) {
	out := t
	for _, fk := range fks {
		if out.HasTop(fk.HelperColumn) {
			continue
		}
		col, ok := out.Lookup(fk.Column)
		if !ok {
			continue
		}
		target := maps[fk.TargetKey]
		values := make([]any, out.Len())
		for r := range values {
			values[r] = ""
			if id, ok := types.NormalizeID(out.Cell(r, col)); ok {
				values[r] = target[id]
			}
		}
		next, err := out.WithColumn(header.Tuple{fk.HelperColumn}, values)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// ApplyAll adds helper columns to every registered sheet and returns a new workbook.
// Sheets without foreign keys are carried over unchanged.
func ApplyAll(ctx context.Context, wb *table.Workbook, reg *registry.Registry,
	maps map[string]LabelMap, rules Rules,
) (*table.Workbook, error) {
	type applied struct {
		t   *table.Table
		err error
	}
	apply := func(_ registry.Entry, t *table.Table) applied {
		next, err := ApplyHelperColumns(t, DetectForeignKeys(t, reg, rules), maps)
		return applied{t: next, err: err}
	}
	results, entries, err := forEachSheet(ctx, wb, reg, apply)
	if err != nil {
		return nil, err
	}

	out := wb.Clone()
	for i, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		if res.t != nil {
			out.Set(entries[i].SheetName, res.t)
		}
	}
	return out, nil
}
