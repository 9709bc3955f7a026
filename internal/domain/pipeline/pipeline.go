// Package pipeline runs a workbook through read, a list of steps and write.
package pipeline

import (
	"context"
	"time"

	appctx "sheetbridge/internal/core/context"
	"sheetbridge/internal/core/id"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/domain/transform"
	"sheetbridge/internal/domain/validation"
	"sheetbridge/pkg/logger"
)

// Source produces the input workbook.
type Source interface {
	Read(ctx context.Context) (*table.Workbook, error)
}

// Sink stores the output workbook.
type Sink interface {
	Write(ctx context.Context, wb *table.Workbook) error
}

// Stage names a step and carries its undecoded arguments.
type Stage struct {
	Name string
	Args transform.ArgDecoder
}

// Result is what a run leaves behind.
type Result struct {
	RunID    string
	Workbook *table.Workbook
	// Reports holds one report per validate or apply_fks step, in step order.
	Reports []*validation.Report
}

// Last returns the report of the last validating step, or nil.
func (r *Result) Last() *validation.Report {
	if len(r.Reports) == 0 {
		return nil
	}
	return r.Reports[len(r.Reports)-1]
}

// Runner executes stages built against one engine.
type Runner struct {
	engine *validation.Engine
}

// NewRunner returns a runner whose validate and apply_fks steps use engine.
func NewRunner(engine *validation.Engine) *Runner {
	return &Runner{engine: engine}
}

// Run reads from src, applies stages in order and writes to dst when dst is not nil.
// Every stage is built before anything is read so configuration errors surface first.
// The run gets a fresh run ID unless ctx already carries one.
func (r *Runner) Run(ctx context.Context, src Source, stages []Stage, dst Sink) (*Result, error) {
	ctx = withRun(ctx)
	res := &Result{RunID: appctx.GetRunID(ctx)}
	env := transform.Env{
		Engine:   r.engine,
		OnReport: func(rep *validation.Report) { res.Reports = append(res.Reports, rep) },
	}

	steps := make([]transform.Step, len(stages))
	for i, st := range stages {
		step, err := transform.Build(env, st.Name, st.Args)
		if err != nil {
			return res, err
		}
		steps[i] = step
	}

	started := time.Now()
	wb, err := src.Read(ctx)
	if err != nil {
		return res, err
	}
	logger.Info(ctx, "workbook read", "sheets", wb.Len(), "steps", len(steps))

	for _, step := range steps {
		if wb, err = step(ctx, wb); err != nil {
			return res, err
		}
	}
	res.Workbook = wb

	if dst != nil {
		if err := dst.Write(ctx, wb); err != nil {
			return res, err
		}
	}
	logger.Info(ctx, "pipeline finished", "sheets", wb.Len(), "elapsed", time.Since(started))
	return res, nil
}

func withRun(ctx context.Context) context.Context {
	if appctx.GetRunID(ctx) != "" {
		return ctx
	}
	trace := appctx.NewTraceContext()
	if existing := appctx.GetTrace(ctx); existing != nil {
		cp := *existing
		trace = &cp
	}
	trace.RunID = id.NewRun()
	return appctx.WithTrace(ctx, trace)
}
