// Package csvfs stores tables as delimited text: levels header rows followed by data rows.
// A directory holds one <sheet>.csv per sheet; a single file holds one sheet.
package csvfs

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/infrastructure/backend"
	"sheetbridge/internal/infrastructure/blob"
)

const ext = ".csv"

var bom = []byte("\xef\xbb\xbf")

// Dir reads and writes a directory of <sheet>.csv files.
type Dir struct {
	blobs *blob.Resolver
}

// NewDir returns a directory backend.
func NewDir(blobs *blob.Resolver) *Dir {
	return &Dir{blobs: blobs}
}

var _ backend.Backend = (*Dir)(nil)

// ReadBook reads every *.csv file of dir in name order.
func (d *Dir) ReadBook(ctx context.Context, dir string, opts backend.Options) (*table.Workbook, error) {
	store, key, err := d.blobs.Resolve(ctx, dir)
	if err != nil {
		return nil, err
	}
	keys, err := store.List(ctx, key)
	if err != nil {
		return nil, err
	}
	wb := table.NewWorkbook()
	for _, k := range keys {
		if !strings.HasSuffix(k, ext) {
			continue
		}
		t, err := read(ctx, store, k, opts)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", k, err)
		}
		wb.Set(blob.Stem(k, ext), t)
	}
	return wb, nil
}

// WriteBook writes one file per sheet.
func (d *Dir) WriteBook(ctx context.Context, dir string, wb *table.Workbook, opts backend.Options) error {
	for _, name := range wb.Names() {
		t, _ := wb.Get(name)
		if err := write(ctx, d.blobs, blob.Join(dir, name+ext), t, opts); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
	}
	return nil
}

// File reads and writes a single delimited file.
type File struct {
	blobs *blob.Resolver
}

// NewFile returns a single-file backend.
func NewFile(blobs *blob.Resolver) *File {
	return &File{blobs: blobs}
}

var _ backend.SheetBackend = (*File)(nil)

// ReadSheet implements backend.SheetReader.
func (f *File) ReadSheet(ctx context.Context, p string, opts backend.Options) (*table.Table, error) {
	store, key, err := f.blobs.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return read(ctx, store, key, opts)
}

// WriteSheet implements backend.SheetWriter.
func (f *File) WriteSheet(ctx context.Context, p string, t *table.Table, opts backend.Options) error {
	return write(ctx, f.blobs, p, t, opts)
}

func delimiter(opts backend.Options) rune {
	if opts.Delimiter == 0 {
		return ','
	}
	return opts.Delimiter
}

func read(ctx context.Context, store blob.Store, key string, opts backend.Options) (*table.Table, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperror.NewBackend("csv", err)
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, bom)))
	r.Comma = delimiter(opts)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, apperror.NewInvalidInput("malformed CSV").WithCause(err).WithDetail("path", key)
	}
	grid := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, cell := range rec {
			row[j] = cell
		}
		grid[i] = row
	}
	return backend.FromGrid(grid, opts.Levels)
}

func write(ctx context.Context, blobs *blob.Resolver, p string, t *table.Table, opts backend.Options) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delimiter(opts)
	for _, row := range backend.HeaderRows(t) {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	for r := 0; r < t.Len(); r++ {
		cells := t.Row(r)
		rec := make([]string, len(cells))
		for i, v := range cells {
			rec[i] = table.CellString(v)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return blobs.Write(ctx, p, &buf)
}
