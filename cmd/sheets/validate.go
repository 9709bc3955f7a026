package main

import (
	"github.com/spf13/cobra"

	"sheetbridge/internal/domain/pathcodec"
	"sheetbridge/internal/domain/validation"
	"sheetbridge/pkg/logger"
)

func newValidateCmd(a *app) *cobra.Command {
	var f ioFlags
	cmd := &cobra.Command{
		Use:   "validate <workbook>",
		Short: "Check duplicate ids and unresolved foreign keys",
		Long: `Reads the workbook, applies mode_duplicate_ids and mode_missing_fk and prints the
report as JSON. A category in fail mode with findings makes the command exit 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := a.engine()
			if err != nil {
				return err
			}
			wb, err := a.target(inferKind(f.inKind, args[0], kindXLSX), args[0]).Read(ctx)
			if err != nil {
				return err
			}

			report, err := engine.Validate(ctx, wb)
			if rep, ok := validation.ReportFromError(err); ok {
				report = rep
			}
			if saveErr := a.saveReport(ctx, f.report, report); saveErr != nil {
				logger.Error(ctx, "cannot write report", "path", f.report, "error", saveErr)
				if err == nil {
					err = saveErr
				}
			}
			if report != nil {
				if encErr := pathcodec.Encode(a.stdout, report); encErr != nil && err == nil {
					err = encErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&f.inKind, "backend", "", "input backend (default from extension, else xlsx)")
	cmd.Flags().StringVar(&f.report, "report", "", "also write the report here (.zst compresses)")
	return cmd
}
