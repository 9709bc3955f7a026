// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"encoding/json"
	"fmt"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/pathcodec"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/domain/validation"
)

// --- Tables ---

// Sheet is one table on the wire: header tuples plus rows aligned with them.
type Sheet struct {
	Name    string     `json:"name" binding:"required"`
	Columns [][]string `json:"columns"`
	Rows    [][]any    `json:"rows"`
}

// Workbook is an ordered list of sheets sharing one header depth.
type Workbook struct {
	Levels int     `json:"levels" binding:"min=0,max=64"`
	Sheets []Sheet `json:"sheets" binding:"dive"`
}

// ToDomain builds a workbook. A zero Levels takes defaultLevels.
func (w Workbook) ToDomain(defaultLevels int) (*table.Workbook, error) {
	levels := w.Levels
	if levels == 0 {
		levels = defaultLevels
	}
	wb := table.NewWorkbook()
	for _, s := range w.Sheets {
		if _, dup := wb.Get(s.Name); dup {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("sheet %q appears twice", s.Name))
		}
		t, err := s.toTable(levels)
		if err != nil {
			return nil, err
		}
		wb.Set(s.Name, t)
	}
	return wb, nil
}

func (s Sheet) toTable(levels int) (*table.Table, error) {
	cols := make([]header.Tuple, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = header.Normalize(header.Tuple(c))
	}
	t, err := table.New(levels, cols)
	if err != nil {
		return nil, withSheet(err, s.Name)
	}
	for r, row := range s.Rows {
		for c, cell := range row {
			if !scalar(cell) {
				return nil, apperror.NewInvalidInput("cells must be strings, numbers, booleans or null").
					WithDetail("sheet", s.Name).
					WithDetail("row", r).
					WithDetail("column", c)
			}
			if f, ok := cell.(float64); ok {
				row[c] = json.Number(table.CellString(f))
			}
		}
		if err := t.AppendRow(row); err != nil {
			return nil, withSheet(err, s.Name)
		}
	}
	return t, nil
}

func scalar(v any) bool {
	switch v.(type) {
	case nil, string, json.Number, bool, float64:
		return true
	default:
		return false
	}
}

func withSheet(err error, sheet string) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("sheet", sheet)
	}
	return err
}

// FromDomain renders wb for a response.
func FromDomain(wb *table.Workbook) Workbook {
	out := Workbook{Sheets: make([]Sheet, 0, wb.Len())}
	for _, name := range wb.Names() {
		t, _ := wb.Get(name)
		out.Levels = t.Levels()
		s := Sheet{
			Name:    name,
			Columns: make([][]string, t.Width()),
			Rows:    make([][]any, t.Len()),
		}
		for i, col := range t.Columns() {
			s.Columns[i] = col
		}
		for r := range s.Rows {
			s.Rows[r] = t.Row(r)
		}
		out.Sheets = append(out.Sheets, s)
	}
	return out
}

// --- Pack ---

// RecordSheet carries the JSON records of one sheet.
type RecordSheet struct {
	Name    string              `json:"name" binding:"required"`
	Records []*pathcodec.Object `json:"records"`
}

// PackRequest is the body of POST /pack.
type PackRequest struct {
	Levels int           `json:"levels" binding:"min=0,max=64"`
	Sheets []RecordSheet `json:"sheets" binding:"required,dive"`
}

// --- Unpack ---

// UnpackRequest is the body of POST /unpack.
type UnpackRequest struct {
	Workbook
	// StripHelpers drops helper columns before rebuilding objects.
	StripHelpers bool `json:"strip_helpers"`
}

// UnpackedSheet is the JSON document rebuilt from one sheet: an object, a list or {}.
type UnpackedSheet struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// UnpackResponse lists rebuilt documents in sheet order.
type UnpackResponse struct {
	Sheets []UnpackedSheet `json:"sheets"`
}

// --- Validate / Enrich ---

// ValidateResponse wraps a validation report.
type ValidateResponse struct {
	Clean  bool               `json:"clean"`
	Report *validation.Report `json:"report"`
}

// EnrichResponse carries the workbook with helper columns and the report of the run.
type EnrichResponse struct {
	Workbook Workbook           `json:"workbook"`
	Report   *validation.Report `json:"report"`
}
