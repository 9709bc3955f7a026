// Package tx holds the transaction contract that SQL-backed workbook stores implement.
package tx

import (
	"context"
)

// Manager runs fn inside one transaction: committed when fn returns nil, rolled back
// otherwise. Calls nested in fn's context join the outer transaction.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds snapshot reads, so that every sheet of a workbook is read
// from the same state.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
