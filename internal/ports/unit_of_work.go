package ports

import "context"

// Tx is a backend-specific transaction handle (for SQLite, *gorm.DB).
type Tx any

// UnitOfWork runs fn inside one transaction: an error rolls back, nil
// commits. Adapters pick the handle up with TxFromContext.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}

// DirectUnitOfWork runs fn without a transaction, for stores where each
// write is already atomic on its own.
type DirectUnitOfWork struct{}

func (DirectUnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
