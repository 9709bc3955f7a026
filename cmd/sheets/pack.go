package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sheetbridge/internal/domain/pipeline"
	"sheetbridge/internal/domain/validation"
)

type ioFlags struct {
	inKind  string
	outKind string
	output  string
	report  string
}

func newPackCmd(a *app) *cobra.Command {
	var f ioFlags
	cmd := &cobra.Command{
		Use:   "pack <json_dir> -o <workbook>",
		Short: "Pack JSON files into a workbook, one sheet per file",
		Long: `Every *.json file of the input directory becomes a sheet named after the file.
Files may hold one object or a list of objects. Recognized foreign keys get a helper
column with the label of the referenced row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.output == "" {
				return fmt.Errorf("missing output: use -o <workbook>")
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			src := a.target(inferKind(f.inKind, args[0], kindJSONDir), args[0])
			dst := a.target(inferKind(f.outKind, f.output, kindXLSX), f.output)

			res, err := pipeline.NewRunner(engine).Run(cmd.Context(), src, []pipeline.Stage{{Name: "apply_fks"}}, dst)
			if rep, ok := validation.ReportFromError(err); ok {
				a.keepFailureReport(cmd.Context(), f.report, rep)
				return err
			}
			if err != nil {
				return err
			}
			if err := a.saveReport(cmd.Context(), f.report, res.Last()); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "[pack] %s written (%d sheets)\n", f.output, res.Workbook.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output workbook path")
	cmd.Flags().StringVar(&f.inKind, "in-kind", "", "input backend (default json_dir)")
	cmd.Flags().StringVar(&f.outKind, "backend", "", "output backend (default from extension, else xlsx)")
	cmd.Flags().StringVar(&f.report, "report", "", "write the validation report here (.zst compresses)")
	return cmd
}

func newUnpackCmd(a *app) *cobra.Command {
	var f ioFlags
	cmd := &cobra.Command{
		Use:   "unpack <workbook> -o <json_dir>",
		Short: "Unpack a workbook into one JSON file per sheet",
		Long: `Every sheet is rebuilt into nested JSON. Helper columns are dropped first.
With the default json_dir output each <sheet>.json holds a list of objects, empty rows
skipped. With --out-kind json the single sheet is written as an object when it has
exactly one row, a list for several rows and an empty object for none.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.output == "" {
				return fmt.Errorf("missing output: use -o <json_dir>")
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			src := a.target(inferKind(f.inKind, args[0], kindXLSX), args[0])
			dst := a.target(inferKind(f.outKind, f.output, kindJSONDir), f.output)

			// strip_helpers takes the helper prefix from the engine.
			res, err := pipeline.NewRunner(engine).Run(cmd.Context(), src,
				[]pipeline.Stage{{Name: "strip_helpers"}}, dst)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "[unpack] %s written (%d sheets)\n", f.output, res.Workbook.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output directory or file")
	cmd.Flags().StringVar(&f.inKind, "backend", "", "input backend (default from extension, else xlsx)")
	cmd.Flags().StringVar(&f.outKind, "out-kind", "", "output backend (default json_dir)")
	return cmd
}
