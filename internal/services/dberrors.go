package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "fundledger/internal/errors"
)

// SQLSTATE codes that mean the transaction may succeed if retried.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translateDBError maps a store error onto the application taxonomy.
// notFound and duplicate may be nil when the operation cannot produce them.
func translateDBError(err error, notFound, duplicate *apperrors.AppError) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.Wrap(apperrors.ErrOperationTimeout, err)
	case notFound != nil && errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case duplicate != nil && errors.Is(err, gorm.ErrDuplicatedKey):
		return duplicate
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected) {
		return apperrors.Wrap(apperrors.ErrTransientStore, err)
	}

	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// runInTx executes fn in one transaction bounded by timeout. When the
// deadline expires the transaction is rolled back and a retryable
// OPERATION_TIMEOUT is returned.
func runInTx(ctx context.Context, db *gorm.DB, timeout time.Duration, fn func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != apperrors.ErrInternalServer.Code {
		return appErr
	}
	if ctx.Err() != nil {
		return apperrors.Wrap(apperrors.ErrOperationTimeout, err)
	}
	return translateDBError(err, nil, nil)
}
