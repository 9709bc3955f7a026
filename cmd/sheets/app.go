package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sheetbridge/internal/config"
	appctx "sheetbridge/internal/core/context"
	"sheetbridge/internal/core/id"
	"sheetbridge/internal/domain/validation"
	"sheetbridge/internal/infrastructure/archive"
	"sheetbridge/internal/infrastructure/backend"
	"sheetbridge/internal/infrastructure/backend/csvfs"
	"sheetbridge/internal/infrastructure/backend/jsonfs"
	"sheetbridge/internal/infrastructure/backend/pgsql"
	"sheetbridge/internal/infrastructure/backend/sqlite"
	"sheetbridge/internal/infrastructure/backend/xlsx"
	"sheetbridge/internal/infrastructure/blob"
	"sheetbridge/internal/infrastructure/metrics"
	"sheetbridge/pkg/logger"
)

// Backend kinds.
const (
	kindJSONDir  = "json_dir"
	kindJSON     = "json"
	kindCSVDir   = "csv_dir"
	kindCSV      = "csv"
	kindXLSX     = "xlsx"
	kindSQLite   = "sqlite"
	kindPostgres = "postgres"
)

// app is the state shared by all subcommands of one invocation.
type app struct {
	stdout io.Writer

	configPath string
	verbose    int
	debug      bool
	levels     int

	cfg      *config.AppConfig
	log      *logger.Logger
	blobs    *blob.Resolver
	router   *backend.Router
	pg       *pgsql.Backend
	archiver *archive.Archiver
}

func (a *app) setup(cmd *cobra.Command) error {
	level := logger.LevelForVerbosity(a.verbose)
	if a.debug {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, OutputPaths: []string{"stderr"}})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = log

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	trace := appctx.NewTraceContext()
	trace.RunID = id.NewRun()
	ctx = appctx.WithTrace(ctx, trace)
	cmd.SetContext(logger.WithLogger(ctx, log))

	cfg := config.Default()
	if a.configPath != "" {
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	if a.levels != 0 {
		cfg.Defaults.Levels = a.levels
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	a.blobs = blob.NewResolver(a.s3Config())
	dsn := cfg.Storage.Postgres.DSN
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	a.pg = pgsql.New(dsn)
	a.router = newBackendRouter(a.blobs, a.pg)
	return nil
}

func (a *app) s3Config() blob.S3Config {
	s3cfg := blob.S3ConfigFromEnv()
	c := a.cfg.Storage.S3
	if c.Region != "" {
		s3cfg.Region = c.Region
	}
	if c.Endpoint != "" {
		s3cfg.Endpoint = c.Endpoint
	}
	s3cfg.PathStyle = s3cfg.PathStyle || c.PathStyle
	return s3cfg
}

func newBackendRouter(blobs *blob.Resolver, pg *pgsql.Backend) *backend.Router {
	return backend.NewRouter().
		Register(kindJSONDir, jsonfs.NewDir(blobs)).
		Register(kindJSON, backend.SingleSheet{Sheets: jsonfs.NewFile(blobs)}).
		Register(kindCSVDir, csvfs.NewDir(blobs)).
		Register(kindCSV, backend.SingleSheet{Sheets: csvfs.NewFile(blobs)}).
		Register(kindXLSX, xlsx.New(blobs)).
		Register(kindSQLite, sqlite.New()).
		Register(kindPostgres, pg)
}

func (a *app) close() {
	if a.pg != nil {
		a.pg.Close()
	}
	if a.archiver != nil {
		a.archiver.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// engine builds the validation engine from the loaded config.
func (a *app) engine() (*validation.Engine, error) {
	opts, err := a.cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	return validation.NewEngine(opts,
		validation.WithWarningSink(validation.LogSink{Logger: a.log}),
		validation.WithObserver(metrics.Recorder{}),
	)
}

// options returns the backend options of this run.
func (a *app) options() backend.Options {
	opts := backend.DefaultOptions()
	opts.Levels = a.cfg.Defaults.Levels
	opts.Delimiter = []rune(a.cfg.Defaults.CSVDelimiter)[0]
	opts.Schema = a.cfg.Storage.Postgres.Schema
	return opts
}

func (a *app) target(kind, path string) backend.Target {
	return backend.Target{Router: a.router, Kind: kind, Path: path, Options: a.options()}
}

func (a *app) reports() (*archive.Archiver, error) {
	if a.archiver != nil {
		return a.archiver, nil
	}
	arch, err := archive.New(a.blobs)
	if err != nil {
		return nil, err
	}
	a.archiver = arch
	return arch, nil
}

// saveReport writes report to path when both are set.
func (a *app) saveReport(ctx context.Context, path string, report *validation.Report) error {
	if path == "" || report == nil {
		return nil
	}
	arch, err := a.reports()
	if err != nil {
		return err
	}
	if err := arch.Save(ctx, path, report); err != nil {
		return err
	}
	logger.Info(ctx, "report written", "path", path)
	return nil
}

// keepFailureReport archives the report of a failed run. The run error is what the
// caller returns, so an archive failure is only logged.
func (a *app) keepFailureReport(ctx context.Context, path string, report *validation.Report) {
	if err := a.saveReport(ctx, path, report); err != nil {
		logger.Warn(ctx, "cannot write report of failed run", "path", path, "error", err)
	}
}

// inferKind guesses a backend kind from a path when none was given.
func inferKind(kind, path, fallback string) string {
	if kind != "" {
		return kind
	}
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(path, "/"))) {
	case ".xlsx":
		return kindXLSX
	case ".json":
		return kindJSON
	case ".csv":
		return kindCSV
	case ".db", ".sqlite", ".sqlite3":
		return kindSQLite
	}
	return fallback
}
