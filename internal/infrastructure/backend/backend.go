// Package backend defines how workbooks are read from and written to storage, and the
// router that picks a backend by kind.
package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/table"
)

// DefaultSheetName names the only sheet of a single-sheet source.
const DefaultSheetName = "Data"

// Options configures a read or a write.
type Options struct {
	// Levels is the number of header rows.
	Levels int
	// Delimiter separates CSV fields.
	Delimiter rune
	// Schema is the SQL schema for database backends. Empty means the default schema.
	Schema string
}

// DefaultOptions returns three header levels and comma-separated CSV.
func DefaultOptions() Options {
	return Options{Levels: 3, Delimiter: ','}
}

// BookReader loads a whole workbook from path.
type BookReader interface {
	ReadBook(ctx context.Context, path string, opts Options) (*table.Workbook, error)
}

// BookWriter stores a whole workbook at path.
type BookWriter interface {
	WriteBook(ctx context.Context, path string, wb *table.Workbook, opts Options) error
}

// Backend reads and writes workbooks.
type Backend interface {
	BookReader
	BookWriter
}

// SheetReader loads a single table from path.
type SheetReader interface {
	ReadSheet(ctx context.Context, path string, opts Options) (*table.Table, error)
}

// SheetWriter stores a single table at path.
type SheetWriter interface {
	WriteSheet(ctx context.Context, path string, t *table.Table, opts Options) error
}

// SheetBackend reads and writes single tables.
type SheetBackend interface {
	SheetReader
	SheetWriter
}

// SingleSheet lifts a SheetBackend into a Backend. Reads produce a workbook with one sheet
// named Name; writes take the sheet named Name, or the first sheet when it is absent.
type SingleSheet struct {
	Sheets SheetBackend
	Name   string
}

// ReadBook implements BookReader.
func (s SingleSheet) ReadBook(ctx context.Context, path string, opts Options) (*table.Workbook, error) {
	t, err := s.Sheets.ReadSheet(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	wb := table.NewWorkbook()
	wb.Set(s.name(), t)
	return wb, nil
}

// WriteBook implements BookWriter.
func (s SingleSheet) WriteBook(ctx context.Context, path string, wb *table.Workbook, opts Options) error {
	t, ok := wb.Get(s.name())
	if !ok {
		names := wb.Names()
		if len(names) == 0 {
			return apperror.NewInvalidInput("workbook has no sheets")
		}
		t, _ = wb.Get(names[0])
	}
	return s.Sheets.WriteSheet(ctx, path, t, opts)
}

func (s SingleSheet) name() string {
	if s.Name == "" {
		return DefaultSheetName
	}
	return s.Name
}

// Router maps backend kinds to implementations.
type Router struct {
	backends map[string]Backend
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{backends: make(map[string]Backend)}
}

// Register binds kind to b, replacing any previous binding.
func (r *Router) Register(kind string, b Backend) *Router {
	r.backends[strings.ToLower(kind)] = b
	return r
}

// Kinds returns the registered kinds in sorted order.
func (r *Router) Kinds() []string {
	out := make([]string, 0, len(r.backends))
	for k := range r.backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get resolves kind. Unknown kinds are a configuration error listing what is available.
func (r *Router) Get(kind string) (Backend, error) {
	b, ok := r.backends[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, apperror.NewInvalidConfiguration(fmt.Sprintf("unknown backend kind %q", kind)).
			WithDetail("available", r.Kinds())
	}
	return b, nil
}

// Read resolves kind and reads the workbook at path.
func (r *Router) Read(ctx context.Context, kind, path string, opts Options) (*table.Workbook, error) {
	b, err := r.Get(kind)
	if err != nil {
		return nil, err
	}
	return b.ReadBook(ctx, path, opts)
}

// Write resolves kind and writes wb to path.
func (r *Router) Write(ctx context.Context, kind, path string, wb *table.Workbook, opts Options) error {
	b, err := r.Get(kind)
	if err != nil {
		return err
	}
	return b.WriteBook(ctx, path, wb, opts)
}
