package migrator

import (
	"errors"
	"log/slog"
	"time"

	"github.com/nrednav/cuid2"
)

// Option is a function that allows configuring the Migrator.
type Option func(*Migrator) error

// WithLogger sets the logger used by the Migrator.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) error {
		m.logger = logger.With("component", "migrator")
		return nil
	}
}

// WithTable sets the name of the ledger table.
func WithTable(table string) Option {
	return func(m *Migrator) error {
		m.table = table
		return nil
	}
}

// WithSplitStatements makes the Migrator split each script into individual
// statements and execute them one by one in the migration's transaction,
// instead of submitting the whole script in a single call. This is needed for
// drivers that don't accept multiple statements per call.
func WithSplitStatements(split bool) Option {
	return func(m *Migrator) error {
		m.splitStatements = split
		return nil
	}
}

// WithTimeout sets the maximum time a single migration may take. A zero
// value disables the limit.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Migrator) error {
		if timeout < 0 {
			return errors.New("migration timeout can't be negative")
		}
		m.timeout = timeout
		return nil
	}
}

// WithRunID sets the identifier added to every log line of a run.
func WithRunID(id string) Option {
	return func(m *Migrator) error {
		m.runID = id
		return nil
	}
}

// DefaultOptions returns the default Migrator options.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(slog.Default()),
		WithTable(DefaultTable),
		WithRunID(cuid2.Generate()),
	}
}
