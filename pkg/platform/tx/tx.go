package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Options returns the isolation used by every mutating operation. Read-then-
// validate-then-write sequences are only safe when the store detects the
// conflicting interleavings, so nothing weaker than serializable is used.
func Options() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}
