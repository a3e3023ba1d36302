package migrator

import (
	"errors"
	"fmt"
)

// ErrEmptyScript is returned when a migration contains no SQL statements.
var ErrEmptyScript = errors.New("migration script contains no statements")

// SourceError is returned when the migration directory can't be read.
type SourceError struct {
	Dir string
	Err error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("failed reading migrations directory '%s': %s", e.Dir, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Operations performed while applying a single migration.
const (
	OpRead   = "read"
	OpBegin  = "begin"
	OpExec   = "exec"
	OpRecord = "record"
	OpCommit = "commit"
)

// MigrationError is returned when applying a single migration fails. The
// transaction of the migration has been rolled back when this is returned.
type MigrationError struct {
	Filename string
	Op       string
	Err      error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s failed during %s: %s", e.Filename, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error {
	return e.Err
}
