// Package xlsx reads and writes Excel workbooks with multi-row headers.
package xlsx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/core/types"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/infrastructure/backend"
	"sheetbridge/internal/infrastructure/blob"
	"sheetbridge/pkg/logger"
)

// MaxSheetName is the longest sheet name Excel accepts.
const MaxSheetName = 31

const headerFill = "DDDDDD"

// Backend implements backend.Backend on .xlsx files.
type Backend struct {
	blobs *blob.Resolver
}

// New returns an xlsx backend that resolves paths through blobs.
func New(blobs *blob.Resolver) *Backend {
	return &Backend{blobs: blobs}
}

var _ backend.Backend = (*Backend)(nil)

// ReadBook reads every worksheet in workbook order. Numeric cells become json.Number,
// boolean cells bool, everything else string.
func (b *Backend) ReadBook(ctx context.Context, path string, opts backend.Options) (*table.Workbook, error) {
	rc, err := b.blobs.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	f, err := excelize.OpenReader(rc)
	if err != nil {
		return nil, apperror.NewInvalidInput("not a readable xlsx workbook").WithCause(err).WithDetail("path", path)
	}
	defer f.Close()

	wb := table.NewWorkbook()
	for _, sheet := range f.GetSheetList() {
		grid, err := readGrid(f, sheet, opts.Levels)
		if err != nil {
			return nil, apperror.NewBackend("xlsx", err).WithDetail("sheet", sheet)
		}
		t, err := backend.FromGrid(grid, opts.Levels)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		wb.Set(sheet, t)
	}
	return wb, nil
}

func readGrid(f *excelize.File, sheet string, levels int) ([][]any, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	grid := make([][]any, len(rows))
	for r, row := range rows {
		cells := make([]any, len(row))
		for c, raw := range row {
			if r < levels || raw == "" {
				cells[c] = raw
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			kind, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, err
			}
			cells[c] = typedCell(kind, raw)
		}
		grid[r] = cells
	}
	return grid, nil
}

func typedCell(kind excelize.CellType, raw string) any {
	switch kind {
	case excelize.CellTypeBool:
		return raw == "1" || raw == "TRUE" || raw == "true"
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return raw
	}
	if n, ok := types.ParseNumber(raw); ok {
		return n
	}
	return raw
}

// WriteBook writes one worksheet per sheet with a styled, filtered and frozen header.
func (b *Backend) WriteBook(ctx context.Context, path string, wb *table.Workbook, opts backend.Options) error {
	f := excelize.NewFile()
	defer f.Close()

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
	})
	if err != nil {
		return apperror.NewBackend("xlsx", err)
	}

	used := make(map[string]bool)
	for i, name := range wb.Names() {
		sheet := SheetName(name, used)
		if sheet != name {
			logger.Debug(ctx, "sheet name shortened for xlsx", "sheet", name, "as", sheet)
		}
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), sheet)
		} else {
			_, err = f.NewSheet(sheet)
		}
		if err != nil {
			return apperror.NewBackend("xlsx", err).WithDetail("sheet", name)
		}
		t, _ := wb.Get(name)
		if err := writeSheet(f, sheet, t, style); err != nil {
			return apperror.NewBackend("xlsx", err).WithDetail("sheet", name)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return apperror.NewBackend("xlsx", err)
	}
	return b.blobs.Write(ctx, path, buf)
}

func writeSheet(f *excelize.File, sheet string, t *table.Table, style int) error {
	levels := t.Levels()
	for l, labels := range backend.HeaderRows(t) {
		row := make([]any, len(labels))
		for i, s := range labels {
			row[i] = s
		}
		if err := setRow(f, sheet, l+1, row); err != nil {
			return err
		}
	}
	for r := 0; r < t.Len(); r++ {
		cells := t.Row(r)
		row := make([]any, len(cells))
		for i, v := range cells {
			row[i] = cellValue(v)
		}
		if err := setRow(f, sheet, levels+r+1, row); err != nil {
			return err
		}
	}
	if t.Width() == 0 {
		return nil
	}

	lastHeader, err := excelize.CoordinatesToCellName(t.Width(), levels)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, style); err != nil {
		return err
	}
	lastCell, err := excelize.CoordinatesToCellName(t.Width(), levels+max(t.Len(), 1))
	if err != nil {
		return err
	}
	filterRef := "A" + strconv.Itoa(levels) + ":" + lastCell
	if err := f.AutoFilter(sheet, filterRef, nil); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      levels,
		TopLeftCell: "A" + strconv.Itoa(levels+1),
		ActivePane:  "bottomLeft",
	})
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func cellValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, ok := types.NumberValue(x); ok {
			return n
		}
		return x.String()
	case bool, string, nil:
		return x
	default:
		return table.CellString(x)
	}
}

// SheetName truncates name to MaxSheetName characters and appends ~N when the result
// is already taken in used. The chosen name is recorded in used.
func SheetName(name string, used map[string]bool) string {
	candidate := truncate(name, MaxSheetName)
	for n := 2; used[candidate]; n++ {
		suffix := "~" + strconv.Itoa(n)
		candidate = truncate(name, MaxSheetName-len(suffix)) + suffix
	}
	used[candidate] = true
	return candidate
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
