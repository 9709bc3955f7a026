package validation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appctx "sheetbridge/internal/core/context"
	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/reference"
	"sheetbridge/internal/domain/registry"
	"sheetbridge/internal/domain/table"
	"sheetbridge/pkg/logger"
)

var tracer = otel.Tracer("sheetbridge/validation")

// Options configures the engine.
type Options struct {
	Levels       int
	Fields       registry.Fields
	Overrides    map[string]registry.Fields
	HelperPrefix string
	DetectFK     bool
	// RolePrefix accepts <role>_<id_field>_(<key>) columns as foreign keys.
	RolePrefix   bool
	Policy       Policy
}

// DefaultOptions returns three header levels, id/name fields, the "_" helper prefix,
// foreign-key detection with role prefixes on and warn for both categories.
func DefaultOptions() Options {
	return Options{
		Levels:       3,
		Fields:       registry.DefaultFields(),
		HelperPrefix: "_",
		DetectFK:     true,
		RolePrefix:   true,
		Policy:       DefaultPolicy(),
	}
}

// Validate checks levels and both modes.
func (o Options) Validate() error {
	if err := header.ValidateLevels(o.Levels); err != nil {
		return err
	}
	return o.Policy.Validate()
}

// Observer is told about every finished engine call.
type Observer interface {
	ObserveRun(op string, report *Report, err error, elapsed time.Duration)
}

// Engine validates workbooks and adds helper columns.
type Engine struct {
	opts     Options
	sink     WarningSink
	observer Observer
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithWarningSink replaces the default logging sink.
func WithWarningSink(s WarningSink) EngineOption {
	return func(e *Engine) { e.sink = s }
}

// WithObserver attaches run metrics.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// NewEngine validates opts and builds an Engine.
func NewEngine(opts Options, engineOpts ...EngineOption) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{opts: opts, sink: LogSink{}}
	for _, fn := range engineOpts {
		fn(e)
	}
	return e, nil
}

// Options returns the engine configuration.
func (e *Engine) Options() Options { return e.opts }

func (e *Engine) rules() reference.Rules {
	return reference.Rules{HelperPrefix: e.opts.HelperPrefix, RolePrefix: e.opts.RolePrefix}
}

// snapshot is everything one run derives from the workbook before deciding anything.
type snapshot struct {
	reg    *registry.Registry
	maps   map[string]reference.LabelMap
	report *Report
}

// Validate scans wb and applies the policy. A fail-mode category with findings returns
// an error carrying the report; warn-mode findings go to the warning sink.
func (e *Engine) Validate(ctx context.Context, wb *table.Workbook) (*Report, error) {
	ctx, span := tracer.Start(ctx, "validate", trace.WithAttributes(attribute.Int("sheets", wb.Len())))
	defer span.End()

	started := time.Now()
	snap, err := e.validate(ctx, wb)
	e.finish(span, "validate", snap, err, started)
	if snap == nil {
		return nil, err
	}
	return snap.report, err
}

// Enrich validates wb and, when the policy lets the run continue, returns a new
// workbook with one label helper column per recognized foreign key.
// A fail-mode error is returned before any helper column is built.
func (e *Engine) Enrich(ctx context.Context, wb *table.Workbook) (*table.Workbook, *Report, error) {
	ctx, span := tracer.Start(ctx, "enrich", trace.WithAttributes(attribute.Int("sheets", wb.Len())))
	defer span.End()

	started := time.Now()
	snap, err := e.validate(ctx, wb)
	if err != nil {
		e.finish(span, "enrich", snap, err, started)
		if snap == nil {
			return nil, nil, err
		}
		return nil, snap.report, err
	}

	out := wb.Clone()
	if e.opts.DetectFK {
		out, err = reference.ApplyAll(ctx, wb, snap.reg, snap.maps, e.rules())
	}
	e.finish(span, "enrich", snap, err, started)
	if err != nil {
		return nil, snap.report, err
	}
	return out, snap.report, nil
}

func (e *Engine) validate(ctx context.Context, wb *table.Workbook) (*snapshot, error) {
	if err := registry.AssertNoParentheses(wb); err != nil {
		return nil, err
	}
	reg, err := registry.Build(wb, e.opts.Fields, e.opts.Overrides)
	if err != nil {
		return nil, err
	}

	report := NewReport()
	report.RunID = appctx.GetRunID(ctx)
	report.Fingerprint = wb.Fingerprint()
	snap := &snapshot{reg: reg, report: report}

	policy := e.opts.Policy
	if policy.DuplicateIDs != ModeIgnore {
		dups, err := reference.FindDuplicateIDs(ctx, wb, reg)
		if err != nil {
			return snap, err
		}
		report.DuplicateIDs = dups
	}

	if e.opts.DetectFK {
		snap.maps = reference.BuildLabelMaps(wb, reg)
		if policy.MissingFK != ModeIgnore {
			missing, err := reference.FindMissingReferences(ctx, wb, reg, snap.maps, e.rules())
			if err != nil {
				return snap, err
			}
			report.MissingFK = missing
		}
		report.Unrecognized = reference.FindUnrecognized(wb, reg, e.rules())
		for _, u := range report.Unrecognized {
			logger.Debug(ctx, "column looks like a foreign key but was not recognized",
				"sheet", u.Sheet, "column", u.Column, "reason", u.Reason)
		}
	}

	if err := policy.Dispatch(ctx, e.sink, CategoryDuplicateIDs, report); err != nil {
		return snap, err
	}
	if err := policy.Dispatch(ctx, e.sink, CategoryMissingFK, report); err != nil {
		return snap, err
	}
	return snap, nil
}

func (e *Engine) finish(span trace.Span, op string, snap *snapshot, err error, started time.Time) {
	var report *Report
	if snap != nil {
		report = snap.report
		span.SetAttributes(
			attribute.Int("duplicate_sheets", len(report.DuplicateIDs)),
			attribute.Int("missing_fk_sheets", len(report.MissingFK)),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if e.observer != nil {
		e.observer.ObserveRun(op, report, err, time.Since(started))
	}
}
