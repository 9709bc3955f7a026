// Package pgsql stores workbooks in a PostgreSQL schema, one table per sheet.
// The endpoint path names the schema; the connection comes from the configured DSN.
package pgsql

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/infrastructure/backend"
	"sheetbridge/internal/infrastructure/storage/postgres"
	"sheetbridge/internal/infrastructure/storage/sqltable"
	"sheetbridge/pkg/logger"
)

const (
	kind          = "postgres"
	defaultSchema = "public"
)

// Backend implements backend.Backend on PostgreSQL. The pool is opened on first use.
type Backend struct {
	cfg postgres.PoolConfig

	mu   sync.Mutex
	pool *postgres.Pool
	txm  *postgres.TxManager
}

// New returns a backend that connects to dsn when first used.
func New(dsn string) *Backend {
	return &Backend{cfg: postgres.DefaultPoolConfig(dsn)}
}

var _ backend.Backend = (*Backend)(nil)

func (b *Backend) connect(ctx context.Context) (*postgres.TxManager, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.txm != nil {
		return b.txm, nil
	}
	if b.cfg.DSN == "" {
		return nil, apperror.NewInvalidConfiguration("postgres backend needs a DSN (storage.postgres.dsn or DATABASE_URL)")
	}
	pool, err := postgres.NewPool(ctx, b.cfg)
	if err != nil {
		return nil, apperror.NewBackend(kind, err)
	}
	b.pool = pool
	b.txm = postgres.NewTxManager(pool)
	return b.txm, nil
}

// Close releases the pool.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pool != nil {
		postgres.LogPoolStats(context.Background(), b.pool.Unwrap())
		b.pool.Close()
		b.pool, b.txm = nil, nil
	}
}

// Schema picks the schema for a run: the endpoint path, else opts.Schema, else public.
func Schema(path string, opts backend.Options) string {
	if s := strings.TrimSpace(path); s != "" {
		return s
	}
	if opts.Schema != "" {
		return opts.Schema
	}
	return defaultSchema
}

// ReadBook reads the sheets of a schema from one snapshot.
func (b *Backend) ReadBook(ctx context.Context, path string, opts backend.Options) (*table.Workbook, error) {
	txm, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	schema := Schema(path, opts)
	d := sqltable.Postgres(schema)

	wb := table.NewWorkbook()
	err = txm.ReadOnly(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		names, err := sheetNames(ctx, q, d, schema)
		if err != nil {
			return err
		}
		for _, name := range names {
			t, err := readSheet(ctx, q, d, schema, name, opts.Levels)
			if err != nil {
				return fmt.Errorf("sheet %s: %w", name, err)
			}
			wb.Set(name, t)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}
	return wb, nil
}

func sheetNames(ctx context.Context, q postgres.Querier, d sqltable.Dialect, schema string) ([]string, error) {
	var tables []string
	sql, args, err := d.Builder().
		Select("table_name").
		From("information_schema.tables").
		Where("table_schema = ?", schema).
		Where("table_type = 'BASE TABLE'").
		OrderBy("table_name").
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := pgxscan.Select(ctx, q, &tables, sql, args...); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	if !slices.Contains(tables, sqltable.CatalogTable) {
		return tables, nil
	}
	st, err := d.SelectCatalog()
	if err != nil {
		return nil, err
	}
	var names []string
	if err := pgxscan.Select(ctx, q, &names, st.SQL, st.Args...); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return names, nil
}

func readSheet(ctx context.Context, q postgres.Querier, d sqltable.Dialect, schema, name string, levels int) (*table.Table, error) {
	var cols []string
	sql, args, err := d.Builder().
		Select("column_name").
		From("information_schema.columns").
		Where("table_schema = ?", schema).
		Where("table_name = ?", name).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := pgxscan.Select(ctx, q, &cols, sql, args...); err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	st, err := d.Select(name, cols)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := pgxscan.Select(ctx, q, &rows, st.SQL, st.Args...); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return sqltable.FromRows(cols, rows, levels)
}

// WriteBook replaces the catalog and the sheet tables of the schema in one transaction.
// Rows are loaded with COPY.
func (b *Backend) WriteBook(ctx context.Context, path string, wb *table.Workbook, opts backend.Options) error {
	txm, err := b.connect(ctx)
	if err != nil {
		return err
	}
	schema := Schema(path, opts)
	d := sqltable.Postgres(schema)
	exec := postgres.NewBatchExecutor(txm)
	copier := postgres.NewBatchInserter(txm)

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		reset, err := d.ClearCatalog()
		if err != nil {
			return err
		}
		if err := exec.ExecuteBatch(ctx, []postgres.BatchQuery{
			{SQL: "CREATE SCHEMA IF NOT EXISTS " + sqltable.Quote(schema)},
			{SQL: d.CreateCatalog()},
			{SQL: reset.SQL, Args: reset.Args},
		}); err != nil {
			return err
		}

		for i, name := range wb.Names() {
			t, _ := wb.Get(name)
			cols, err := sqltable.Columns(t)
			if err != nil {
				return fmt.Errorf("sheet %s: %w", name, err)
			}
			entry, err := d.CatalogEntry(i, name)
			if err != nil {
				return err
			}
			var queries []postgres.BatchQuery
			for _, ddl := range d.Recreate(name, cols) {
				queries = append(queries, postgres.BatchQuery{SQL: ddl})
			}
			queries = append(queries, postgres.BatchQuery{SQL: entry.SQL, Args: entry.Args})
			if err := exec.ExecuteBatch(ctx, queries); err != nil {
				return fmt.Errorf("sheet %s: %w", name, err)
			}

			copied, err := copier.CopyFromSlice(ctx, pgx.Identifier{schema, name},
				append([]string{sqltable.RowColumn}, cols...), sqltable.Rows(t))
			if err != nil {
				return fmt.Errorf("copy %s: %w", name, err)
			}
			logger.Debug(ctx, "sheet copied", "schema", schema, "sheet", name, "rows", copied)
		}
		return nil
	})
	return wrap(err)
}

func wrap(err error) error {
	if err == nil || apperror.IsAppError(err) {
		return err
	}
	return apperror.NewBackend(kind, err)
}
