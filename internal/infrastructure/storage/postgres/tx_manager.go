package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sheetbridge/internal/core/tx"
	"sheetbridge/pkg/logger"
)

var tracer = otel.Tracer("sheetbridge/storage/postgres")

// DefaultStatementTimeout caps every statement of a workbook transaction.
const DefaultStatementTimeout = 5 * time.Minute

// Querier is satisfied by both the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// database is the part of pgxpool.Pool the manager needs.
type database interface {
	Querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// accessMode is how one workbook transaction touches the schema.
type accessMode struct {
	name string
	opts pgx.TxOptions
}

var (
	// writeAccess replaces a workbook.
	writeAccess = accessMode{name: "write", opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}}
	// snapshotAccess reads every sheet of a workbook from the same state.
	snapshotAccess = accessMode{name: "snapshot", opts: pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}}
)

// TxManager runs each workbook read or write in exactly one transaction.
// Calls made with a context that already carries a transaction join it.
type TxManager struct {
	db               database
	statementTimeout time.Duration
}

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// NewTxManager creates a transaction manager over pool.
func NewTxManager(pool *Pool) *TxManager {
	return newTxManager(pool.Pool, DefaultStatementTimeout)
}

func newTxManager(db database, statementTimeout time.Duration) *TxManager {
	return &TxManager{db: db, statementTimeout: statementTimeout}
}

type txKey struct{}

// RunInTransaction runs fn in a read-write transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, writeAccess, fn)
}

// ReadOnly runs fn in a read-only repeatable-read transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, snapshotAccess, fn)
}

func (m *TxManager) run(ctx context.Context, mode accessMode, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "workbook transaction",
		trace.WithAttributes(attribute.String("tx.mode", mode.name)))
	defer span.End()

	err := m.begin(ctx, mode, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (m *TxManager) begin(ctx context.Context, mode accessMode, fn func(ctx context.Context) error) error {
	pgTx, err := m.db.BeginTx(ctx, mode.opts)
	if err != nil {
		return fmt.Errorf("begin %s transaction: %w", mode.name, err)
	}

	if m.statementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", m.statementTimeout.Milliseconds())
		if _, err := pgTx.Exec(ctx, stmt); err != nil {
			m.rollback(ctx, pgTx, err)
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, pgTx)); err != nil {
		m.rollback(ctx, pgTx, err)
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s transaction: %w", mode.name, err)
	}
	return nil
}

// rollback survives a cancelled ctx so the connection goes back to the pool clean.
func (m *TxManager) rollback(ctx context.Context, pgTx pgx.Tx, cause error) {
	if err := pgTx.Rollback(context.WithoutCancel(ctx)); err != nil {
		logger.Error(ctx, "rollback failed", "error", err, "original_error", cause)
	}
}

// GetTx returns the transaction carried by ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) pgx.Tx {
	if t, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return t
	}
	return nil
}

// GetQuerier returns the transaction carried by ctx, falling back to the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.db
}
