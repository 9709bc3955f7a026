package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx records what the manager does with a transaction. Methods it does not
// override panic through the nil embedded pgx.Tx.
type fakeTx struct {
	pgx.Tx
	execs      []string
	copied     [][]any
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) CopyFrom(ctx context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		t.copied = append(t.copied, values)
		n++
	}
	return n, src.Err()
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeDB struct {
	tx       *fakeTx
	begun    []pgx.TxOptions
	beginErr error
}

func (d *fakeDB) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	d.begun = append(d.begun, opts)
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

func (d *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }

func (d *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func TestTxManager_WriteCommits(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	m := newTxManager(db, 2*time.Second)

	err := m.RunInTransaction(context.Background(), func(ctx context.Context) error {
		assert.Same(t, db.tx, m.GetTx(ctx))
		assert.Same(t, db.tx, m.GetQuerier(ctx))
		return nil
	})
	require.NoError(t, err)

	require.Len(t, db.begun, 1)
	assert.Equal(t, pgx.ReadCommitted, db.begun[0].IsoLevel)
	assert.Equal(t, pgx.ReadWrite, db.begun[0].AccessMode)
	assert.Equal(t, []string{"SET LOCAL statement_timeout = '2000ms'"}, db.tx.execs)
	assert.True(t, db.tx.committed)
	assert.False(t, db.tx.rolledBack)
}

func TestTxManager_ReadOnlyUsesSnapshot(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	m := newTxManager(db, 0)

	require.NoError(t, m.ReadOnly(context.Background(), func(context.Context) error { return nil }))
	require.Len(t, db.begun, 1)
	assert.Equal(t, pgx.RepeatableRead, db.begun[0].IsoLevel)
	assert.Equal(t, pgx.ReadOnly, db.begun[0].AccessMode)
	assert.Empty(t, db.tx.execs)
}

func TestTxManager_ErrorRollsBack(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	m := newTxManager(db, 0)
	boom := errors.New("boom")

	err := m.RunInTransaction(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, db.tx.rolledBack)
	assert.False(t, db.tx.committed)
}

func TestTxManager_NestedCallJoins(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	m := newTxManager(db, 0)

	err := m.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return m.ReadOnly(ctx, func(inner context.Context) error {
			assert.Same(t, db.tx, m.GetTx(inner))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Len(t, db.begun, 1)
}

func TestTxManager_BeginFails(t *testing.T) {
	db := &fakeDB{beginErr: errors.New("connection refused")}
	m := newTxManager(db, 0)

	called := false
	err := m.ReadOnly(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "begin snapshot transaction")
	assert.False(t, called)
}

func TestTxManager_QuerierOutsideTransaction(t *testing.T) {
	db := &fakeDB{}
	m := newTxManager(db, 0)

	assert.Nil(t, m.GetTx(context.Background()))
	assert.Same(t, db, m.GetQuerier(context.Background()))
}

func TestBatchInserter_CopiesInsideTransaction(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	m := newTxManager(db, 0)
	copier := NewBatchInserter(m)
	rows := [][]any{{0, "1"}, {1, "2"}}

	_, err := copier.CopyFromSlice(context.Background(), pgx.Identifier{"books", "Orders"}, []string{"__row", "id"}, rows)
	assert.Error(t, err)

	err = m.RunInTransaction(context.Background(), func(ctx context.Context) error {
		n, err := copier.CopyFromSlice(ctx, pgx.Identifier{"books", "Orders"}, []string{"__row", "id"}, rows)
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, rows, db.tx.copied)
}
