package backend

import (
	"context"

	"sheetbridge/internal/domain/table"
)

// Target binds a router to one kind and path so it can act as a pipeline source or sink.
type Target struct {
	Router  *Router
	Kind    string
	Path    string
	Options Options
}

// Read implements pipeline.Source.
func (t Target) Read(ctx context.Context) (*table.Workbook, error) {
	return t.Router.Read(ctx, t.Kind, t.Path, t.Options)
}

// Write implements pipeline.Sink.
func (t Target) Write(ctx context.Context, wb *table.Workbook) error {
	return t.Router.Write(ctx, t.Kind, t.Path, wb, t.Options)
}
