// Command sheets converts between nested JSON documents and multi-row-header
// spreadsheets, and validates the foreign keys between sheets.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sheetbridge/internal/core/apperror"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err, a.debug || a.verbose >= 2)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sheets",
		Short: "Pack JSON into spreadsheets and unpack them again",
		Long: `sheets lays nested JSON records out as tables with several header rows,
reads such tables back into JSON, and checks the id references between sheets.

Foreign keys are columns named <id_field>_(<Sheet>), e.g. id_(Customers).
Packing adds a read-only helper column with the referenced label next to each one.`,
		Version:           version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config (defaults, sheets, io, pipelines, storage)")
	pf.CountVarP(&a.verbose, "verbose", "v", "increase verbosity (repeatable)")
	pf.BoolVar(&a.debug, "debug", false, "debug logging and full error details")
	pf.IntVar(&a.levels, "levels", 0, "header rows (overrides defaults.levels)")

	root.AddCommand(
		newPackCmd(a),
		newUnpackCmd(a),
		newValidateCmd(a),
		newRunCmd(a),
		newServeCmd(a),
	)
	return root
}

// printError renders err as one "Error: ..." line; details follow when detailed is set.
func printError(w io.Writer, err error, detailed bool) {
	appErr, ok := apperror.AsAppError(err)
	if !ok || !detailed {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error: %s\n", appErr.Error())
	if len(appErr.Details) == 0 {
		return
	}
	details, mErr := json.MarshalIndent(appErr.Details, "", "  ")
	if mErr != nil {
		return
	}
	fmt.Fprintf(w, "Details: %s\n", details)
}
