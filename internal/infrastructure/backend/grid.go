package backend

import (
	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/table"
)

// FromGrid builds a table from the first levels rows of grid as header and the rest as
// data. Placeholder labels are blanked and columns without any label are dropped.
// Short rows are padded with "".
func FromGrid(grid [][]any, levels int) (*table.Table, error) {
	if err := header.ValidateLevels(levels); err != nil {
		return nil, err
	}
	width := 0
	for _, row := range grid {
		width = max(width, len(row))
	}

	var (
		cols []header.Tuple
		keep []int
	)
	for c := 0; c < width; c++ {
		tuple := make(header.Tuple, levels)
		labelled := false
		for l := 0; l < levels && l < len(grid); l++ {
			if c < len(grid[l]) {
				tuple[l] = table.CellString(grid[l][c])
			}
		}
		tuple = header.Normalize(tuple)
		for _, seg := range tuple {
			if seg != "" {
				labelled = true
				break
			}
		}
		if labelled {
			cols = append(cols, tuple)
			keep = append(keep, c)
		}
	}

	t, err := table.New(levels, cols)
	if err != nil {
		return nil, err
	}
	for r := levels; r < len(grid); r++ {
		cells := make([]any, len(keep))
		for i, c := range keep {
			if c < len(grid[r]) && grid[r][c] != nil {
				cells[i] = grid[r][c]
			} else {
				cells[i] = ""
			}
		}
		if err := t.AppendRow(cells); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// HeaderRows returns the column labels of t row by row, levels rows in total.
func HeaderRows(t *table.Table) [][]string {
	out := make([][]string, t.Levels())
	for l := range out {
		out[l] = make([]string, t.Width())
		for c := 0; c < t.Width(); c++ {
			out[l][c] = t.Column(c)[l]
		}
	}
	return out
}
