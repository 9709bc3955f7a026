package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sheetbridge/internal/config"
	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/pipeline"
	"sheetbridge/internal/domain/validation"
)

type runFlags struct {
	profile   string
	pipeline  string
	stepsFile string
	in        config.Endpoint
	out       config.Endpoint
	report    string
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a configured pipeline: read, apply steps, write",
		Long: `Input and output come from io (or io.profiles.<profile>) in --config, or from a
--steps file, and --in-*/--out-* flags always win. Steps come from --steps, else
--pipeline, else the pipeline bound to the profile, else the top-level pipeline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			in, out, steps, err := a.resolveRun(f)
			if err != nil {
				return err
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}

			stages := make([]pipeline.Stage, len(steps))
			for i, s := range steps {
				stages[i] = pipeline.Stage{Name: s.Step, Args: s}
			}

			res, err := pipeline.NewRunner(engine).Run(ctx, a.target(in.Kind, in.Path), stages, a.target(out.Kind, out.Path))
			if rep, ok := validation.ReportFromError(err); ok {
				a.keepFailureReport(ctx, f.report, rep)
				return err
			}
			if err != nil {
				return err
			}
			if err := a.saveReport(ctx, f.report, res.Last()); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "[run] %s:%s -> %s:%s (%d steps, run %s)\n",
				in.Kind, in.Path, out.Kind, out.Path, len(stages), res.RunID)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.profile, "profile", "", "io.profiles entry of --config")
	fl.StringVar(&f.pipeline, "pipeline", "", "pipelines entry of --config")
	fl.StringVar(&f.stepsFile, "steps", "", "YAML file with a pipeline list and optional io")
	fl.StringVar(&f.in.Kind, "in-kind", "", "override input kind (json_dir, json, csv_dir, csv, xlsx, sqlite, postgres)")
	fl.StringVar(&f.in.Path, "in-path", "", "override input path")
	fl.StringVar(&f.out.Kind, "out-kind", "", "override output kind")
	fl.StringVar(&f.out.Path, "out-path", "", "override output path")
	fl.StringVar(&f.report, "report", "", "write the report of the last validating step here (.zst compresses)")
	return cmd
}

// resolveRun merges config, steps file and flag overrides into the endpoints and steps of a run.
func (a *app) resolveRun(f runFlags) (in, out config.Endpoint, steps []config.StepSpec, err error) {
	cfg := a.cfg
	var stepsCfg *config.AppConfig
	if f.stepsFile != "" {
		if stepsCfg, err = config.Load(f.stepsFile); err != nil {
			return in, out, nil, err
		}
	}

	ioCfg := cfg
	if a.configPath == "" && stepsCfg != nil {
		ioCfg = stepsCfg
	}
	prof, err := ioCfg.SelectIO(f.profile)
	if err != nil {
		return in, out, nil, err
	}
	in, out = prof.Input, prof.Output
	override(&in, f.in)
	override(&out, f.out)
	if !in.Complete() || !out.Complete() {
		return in, out, nil, apperror.NewInvalidConfiguration(
			"missing I/O configuration: provide io in --config or --steps, or --in-kind/--in-path/--out-kind/--out-path").
			WithDetail("input", in).
			WithDetail("output", out)
	}

	if stepsCfg != nil {
		return in, out, stepsCfg.Pipeline, nil
	}
	steps, err = cfg.SelectSteps(f.pipeline, f.profile)
	return in, out, steps, err
}

func override(dst *config.Endpoint, src config.Endpoint) {
	if src.Kind != "" {
		dst.Kind = src.Kind
	}
	if src.Path != "" {
		dst.Path = src.Path
	}
}
