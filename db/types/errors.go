package types

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "modernc.org/sqlite/lib"
)

// pgUniqueViolation is the SQLSTATE code of a PostgreSQL unique constraint
// violation.
const pgUniqueViolation = "23505"

// pgQueryCanceled is the SQLSTATE code of a PostgreSQL statement cancelled on
// request.
const pgQueryCanceled = "57014"

// DuplicateError represents an error when attempting to create a record that
// already exists.
type DuplicateError struct {
	ModelName string
	ID        string
	Err       error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s already exists", e.ModelName, e.ID)
}

// Unwrap returns the underlying driver error.
func (e *DuplicateError) Unwrap() error {
	return e.Err
}

// ScanError represents an error that occurred while scanning database results
// into Go types.
type ScanError struct {
	ModelName string
	Err       error
}

// Error returns a string representation of the error.
func (e *ScanError) Error() string {
	return fmt.Sprintf("failed scanning %s data: %s", e.ModelName, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Err
}

// Err converts an expected error returned by the database driver into a
// friendly DB error of one of the types defined above.
func Err(modelName, id string, err error) error {
	if IsUniqueViolation(err) {
		return &DuplicateError{ModelName: modelName, ID: id, Err: err}
	}

	return err
}

// IsUniqueViolation reports whether err was caused by a unique constraint
// violation in any of the supported drivers.
func IsUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return false
}

// IsCanceled reports whether err is what a driver returns when the context of
// an operation is cancelled while it runs: the context error itself, an
// interrupted SQLite statement, a cancelled PostgreSQL query, or a
// transaction that was already rolled back because of the cancellation.
func IsCanceled(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, sql.ErrTxDone) {
		return true
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code()&0xff == sqlite3.SQLITE_INTERRUPT
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgQueryCanceled
	}

	return false
}
