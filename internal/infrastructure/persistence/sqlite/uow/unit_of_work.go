package uow

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"auditcache/internal/errs"
	"auditcache/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork on a gorm transaction. Repositories
// and the SQLite cache join it through ports.TxFromContext.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := ports.TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	var fnErr error
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(ports.WithTxContext(ctx, tx))
		return fnErr
	})
	if err != nil && !errors.Is(err, fnErr) {
		// begin or commit failed
		return errs.Mark(err, ports.ErrStorageUnavailable)
	}
	return err
}
