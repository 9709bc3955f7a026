// Package sqlite stores workbooks in a SQLite database file, one table per sheet.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/infrastructure/backend"
	"sheetbridge/internal/infrastructure/storage/sqltable"
	"sheetbridge/pkg/logger"
)

const kind = "sqlite"

// Backend implements backend.Backend on local SQLite files.
type Backend struct {
	dialect sqltable.Dialect
}

// New returns a SQLite backend.
func New() *Backend {
	return &Backend{dialect: sqltable.SQLite()}
}

var _ backend.Backend = (*Backend)(nil)

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperror.NewBackend(kind, fmt.Errorf("open sqlite: %w", err))
	}
	return db, nil
}

// ReadBook reads the sheets listed in the catalog, or every user table in creation order
// when the database carries no catalog.
func (b *Backend) ReadBook(ctx context.Context, path string, opts backend.Options) (*table.Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.NewNotFound("database", path)
		}
		return nil, apperror.NewBackend(kind, err)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	names, err := b.sheetNames(ctx, db)
	if err != nil {
		return nil, apperror.NewBackend(kind, err)
	}

	wb := table.NewWorkbook()
	for _, name := range names {
		t, err := b.readSheet(ctx, db, name, opts.Levels)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		wb.Set(name, t)
	}
	return wb, nil
}

func (b *Backend) sheetNames(ctx context.Context, db *sql.DB) ([]string, error) {
	var tables []string
	q, args, err := b.dialect.Builder().
		Select("name").
		From("sqlite_master").
		Where(squirrel.Eq{"type": "table"}).
		Where(squirrel.NotLike{"name": "sqlite_%"}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := sqlscan.Select(ctx, db, &tables, q, args...); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	hasCatalog := false
	var user []string
	for _, t := range tables {
		if t == sqltable.CatalogTable {
			hasCatalog = true
			continue
		}
		user = append(user, t)
	}
	if !hasCatalog {
		return user, nil
	}

	st, err := b.dialect.SelectCatalog()
	if err != nil {
		return nil, err
	}
	var names []string
	if err := sqlscan.Select(ctx, db, &names, st.SQL, st.Args...); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return names, nil
}

func (b *Backend) readSheet(ctx context.Context, db *sql.DB, name string, levels int) (*table.Table, error) {
	var cols []string
	if err := sqlscan.Select(ctx, db, &cols, "SELECT name FROM pragma_table_info(?) ORDER BY cid", name); err != nil {
		return nil, apperror.NewBackend(kind, fmt.Errorf("columns of %s: %w", name, err))
	}
	st, err := b.dialect.Select(name, cols)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := sqlscan.Select(ctx, db, &rows, st.SQL, st.Args...); err != nil {
		return nil, apperror.NewBackend(kind, fmt.Errorf("select %s: %w", name, err))
	}
	return sqltable.FromRows(cols, rows, levels)
}

// WriteBook replaces the catalog and the tables of every sheet in one transaction.
// Tables of sheets not in wb are left alone.
func (b *Backend) WriteBook(ctx context.Context, path string, wb *table.Workbook, _ backend.Options) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return apperror.NewBackend(kind, fmt.Errorf("create dirs: %w", err))
		}
	}
	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperror.NewBackend(kind, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
			}
		}
	}()

	if err = b.writeAll(ctx, tx, wb); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return apperror.NewBackend(kind, fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (b *Backend) writeAll(ctx context.Context, tx *sql.Tx, wb *table.Workbook) error {
	if _, err := tx.ExecContext(ctx, b.dialect.CreateCatalog()); err != nil {
		return apperror.NewBackend(kind, err)
	}
	reset, err := b.dialect.ClearCatalog()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, reset.SQL, reset.Args...); err != nil {
		return apperror.NewBackend(kind, err)
	}

	for i, name := range wb.Names() {
		t, _ := wb.Get(name)
		cols, err := sqltable.Columns(t)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
		for _, ddl := range b.dialect.Recreate(name, cols) {
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return apperror.NewBackend(kind, fmt.Errorf("recreate %s: %w", name, err))
			}
		}
		inserts, err := b.dialect.Inserts(name, cols, sqltable.Rows(t))
		if err != nil {
			return err
		}
		for _, st := range inserts {
			if _, err := tx.ExecContext(ctx, st.SQL, st.Args...); err != nil {
				return apperror.NewBackend(kind, fmt.Errorf("insert %s: %w", name, err))
			}
		}
		entry, err := b.dialect.CatalogEntry(i, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, entry.SQL, entry.Args...); err != nil {
			return apperror.NewBackend(kind, err)
		}
	}
	return nil
}
