package repository

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/lib/pq"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Migrate creates the marketplace tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	logging.Infof("Applying database schema")
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

// withTx runs fn inside a transaction. Any error from fn, or a cancelled
// ctx, rolls the transaction back.
func withTx(ctx context.Context, db *sql.DB, logger *logging.Logger, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Internal(err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logger.Error("Failed to roll back transaction", logging.Fields{"error": rbErr.Error()})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func pqErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqErrorCode(err) == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pqErrorCode(err) == pqForeignKeyViolation
}

func isCheckViolation(err error) bool {
	return pqErrorCode(err) == pqCheckViolation
}
