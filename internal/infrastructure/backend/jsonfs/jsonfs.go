// Package jsonfs stores workbooks as JSON documents: a directory with one <sheet>.json per
// sheet, or a single file holding one sheet.
package jsonfs

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"sheetbridge/internal/domain/pathcodec"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/infrastructure/backend"
	"sheetbridge/internal/infrastructure/blob"
)

const ext = ".json"

// Dir reads and writes a directory of <sheet>.json files.
type Dir struct {
	blobs *blob.Resolver
}

// NewDir returns a directory backend that resolves paths through blobs.
func NewDir(blobs *blob.Resolver) *Dir {
	return &Dir{blobs: blobs}
}

var _ backend.Backend = (*Dir)(nil)

// ReadBook reads every *.json file of dir in name order. Each file holds one object or a
// list of objects; the file stem becomes the sheet name.
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
		t, err := readSheet(ctx, store, k, opts)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", k, err)
		}
		wb.Set(blob.Stem(k, ext), t)
	}
	return wb, nil
}

// WriteBook writes each sheet of wb as a JSON list of unpacked objects.
func (d *Dir) WriteBook(ctx context.Context, dir string, wb *table.Workbook, _ backend.Options) error {
	for _, name := range wb.Names() {
		t, _ := wb.Get(name)
		objs, err := table.Unpack(t)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
		list := make([]any, len(objs))
		for i, o := range objs {
			list[i] = o
		}
		if err := write(ctx, d.blobs, blob.Join(dir, name+ext), list); err != nil {
			return err
		}
	}
	return nil
}

// File reads and writes one JSON document as a single sheet.
type File struct {
	blobs *blob.Resolver
}

// NewFile returns a single-file backend. Wrap it in backend.SingleSheet to use it as a Backend.
func NewFile(blobs *blob.Resolver) *File {
	return &File{blobs: blobs}
}

var _ backend.SheetBackend = (*File)(nil)

// ReadSheet packs the object or list of objects stored at p.
func (f *File) ReadSheet(ctx context.Context, p string, opts backend.Options) (*table.Table, error) {
	store, key, err := f.blobs.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return readSheet(ctx, store, key, opts)
}

// WriteSheet unpacks t and writes a single object, a list or an empty object depending
// on the number of rows.
func (f *File) WriteSheet(ctx context.Context, p string, t *table.Table, _ backend.Options) error {
	objs, err := table.Unpack(t)
	if err != nil {
		return err
	}
	return write(ctx, f.blobs, p, table.Shape(objs))
}

func readSheet(ctx context.Context, store blob.Store, key string, opts backend.Options) (*table.Table, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	objs, err := pathcodec.DecodeRecords(rc)
	if err != nil {
		return nil, err
	}
	return table.PackObjects(objs, opts.Levels)
}

func write(ctx context.Context, blobs *blob.Resolver, p string, v any) error {
	var buf bytes.Buffer
	if err := pathcodec.Encode(&buf, v); err != nil {
		return err
	}
	return blobs.Write(ctx, p, &buf)
}
