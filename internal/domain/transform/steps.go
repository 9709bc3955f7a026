// Package transform holds the workbook steps a pipeline is assembled from and the
// registry that builds them by name.
package transform

import (
	"context"
	"fmt"
	"sort"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/domain/validation"
	"sheetbridge/pkg/logger"
)

// Step transforms a workbook. Steps never modify their input.
type Step func(ctx context.Context, wb *table.Workbook) (*table.Workbook, error)

// ArgDecoder decodes step arguments into a struct.
type ArgDecoder interface {
	DecodeArgs(v any) error
}

// Env carries what steps share within one run.
type Env struct {
	Engine *validation.Engine
	// OnReport receives the report of every validate and apply_fks step.
	OnReport func(*validation.Report)
}

func (e Env) report(r *validation.Report) {
	if e.OnReport != nil && r != nil {
		e.OnReport(r)
	}
}

// Factory builds a step from its arguments.
type Factory func(env Env, args ArgDecoder) (Step, error)

var factories = map[string]Factory{
	"validate":          newValidate,
	"apply_fks":         newApplyFKs,
	"mark_helpers":      newMarkHelpers,
	"clean_aux_columns": newCleanAux,
	"strip_helpers":     newStripHelpers,
}

// Names returns the registered step names in sorted order.
func Names() []string {
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Build resolves name and builds the step. Unknown names list the available steps.
func Build(env Env, name string, args ArgDecoder) (Step, error) {
	f, ok := factories[name]
	if !ok {
		return nil, apperror.NewInvalidConfiguration(fmt.Sprintf("unknown step %q", name)).
			WithDetail("available", Names())
	}
	if env.Engine == nil && (name == "validate" || name == "apply_fks") {
		return nil, apperror.NewInvalidConfiguration(fmt.Sprintf("step %q needs a validation engine", name))
	}
	step, err := f(env, args)
	if err != nil {
		return nil, err
	}
	return named(name, step), nil
}

func named(name string, step Step) Step {
	return func(ctx context.Context, wb *table.Workbook) (*table.Workbook, error) {
		logger.Debug(ctx, "running step", "step", name, "sheets", wb.Len())
		out, err := step(ctx, wb)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", name, err)
		}
		return out, nil
	}
}

func decode(args ArgDecoder, v any) error {
	if args == nil {
		return nil
	}
	return args.DecodeArgs(v)
}

func newValidate(env Env, _ ArgDecoder) (Step, error) {
	return func(ctx context.Context, wb *table.Workbook) (*table.Workbook, error) {
		report, err := env.Engine.Validate(ctx, wb)
		env.report(report)
		if err != nil {
			return nil, err
		}
		return wb, nil
	}, nil
}

func newApplyFKs(env Env, _ ArgDecoder) (Step, error) {
	return func(ctx context.Context, wb *table.Workbook) (*table.Workbook, error) {
		out, report, err := env.Engine.Enrich(ctx, wb)
		env.report(report)
		return out, err
	}, nil
}

type markHelpersArgs struct {
	Sheet  string   `yaml:"sheet"`
	Cols   []string `yaml:"cols"`
	Prefix string   `yaml:"prefix"`
}

func newMarkHelpers(_ Env, args ArgDecoder) (Step, error) {
	a := markHelpersArgs{Prefix: "_"}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	return func(_ context.Context, wb *table.Workbook) (*table.Workbook, error) {
		return MarkHelpers(wb, a.Sheet, a.Cols, a.Prefix)
	}, nil
}

type cleanAuxArgs struct {
	Sheet        string   `yaml:"sheet"`
	DropPrefixes []string `yaml:"drop_prefixes"`
}

func newCleanAux(_ Env, args ArgDecoder) (Step, error) {
	var a cleanAuxArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	return func(_ context.Context, wb *table.Workbook) (*table.Workbook, error) {
		return CleanAuxColumns(wb, a.Sheet, a.DropPrefixes), nil
	}, nil
}

type stripHelpersArgs struct {
	Prefix string `yaml:"prefix"`
}

func newStripHelpers(env Env, args ArgDecoder) (Step, error) {
	a := stripHelpersArgs{Prefix: "_"}
	if env.Engine != nil {
		a.Prefix = env.Engine.Options().HelperPrefix
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	return func(_ context.Context, wb *table.Workbook) (*table.Workbook, error) {
		return StripHelpers(wb, a.Prefix), nil
	}, nil
}
