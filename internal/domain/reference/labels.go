package reference

import (
	"strings"

	"sheetbridge/internal/core/types"
	"sheetbridge/internal/domain/registry"
	"sheetbridge/internal/domain/table"
)

// LabelMap maps normalized ids to labels. "" stands for an absent label.
type LabelMap map[string]string

// Has reports whether id is known.
func (m LabelMap) Has(id string) bool {
	_, ok := m[id]
	return ok
}

// BuildLabelMaps scans every registered sheet once, in row order, so that a later row
// overrides an earlier one with the same id. Sheets without an id column map to an
// empty LabelMap; sheets without a label column map every id to "".
func BuildLabelMaps(wb *table.Workbook, reg *registry.Registry) map[string]LabelMap {
	maps := make(map[string]LabelMap, reg.Len())
	for _, entry := range reg.List() {
		maps[entry.SheetKey] = buildLabelMap(wb, entry)
	}
	return maps
}

func buildLabelMap(wb *table.Workbook, entry registry.Entry) LabelMap {
	m := LabelMap{}
	t, ok := wb.Get(entry.SheetName)
	if !ok {
		return m
	}
	idCol, ok := t.Lookup(entry.IDField)
	if !ok {
		return m
	}
	labelCol, hasLabel := t.Lookup(entry.LabelField)

	for r := 0; r < t.Len(); r++ {
		id, ok := types.NormalizeID(t.Cell(r, idCol))
		if !ok {
			continue
		}
		label := ""
		if hasLabel {
			if v := t.Cell(r, labelCol); !table.IsEmpty(v) {
				label = strings.TrimSpace(table.CellString(v))
			}
		}
		m[id] = label
	}
	return m
}
