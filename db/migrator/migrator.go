package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.hackfix.me/schemer/db/types"
)

// Migrator applies pending migrations to a database, recording each one in
// the ledger within the same transaction as the migration itself.
type Migrator struct {
	store           types.Store
	ledger          *Ledger
	logger          *slog.Logger
	table           string
	splitStatements bool
	timeout         time.Duration
	runID           string
}

// New returns a new Migrator for the given store.
func New(store types.Store, opts ...Option) (*Migrator, error) {
	if store == nil {
		return nil, errors.New("database store is required")
	}

	m := &Migrator{store: store}

	opts = append(DefaultOptions(), opts...)
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	ledger, err := NewLedger(store, m.table)
	if err != nil {
		return nil, err
	}
	m.ledger = ledger
	m.logger = m.logger.With("run_id", m.runID)

	return m, nil
}

// Ledger returns the ledger used by the Migrator.
func (m *Migrator) Ledger() *Ledger {
	return m.ledger
}

// RunID returns the identifier of this Migrator's runs.
func (m *Migrator) RunID() string {
	return m.runID
}

// Plan is the comparison of the migration source with the ledger.
type Plan struct {
	// Applied are all ledger records, in execution order.
	Applied []Record
	// Pending are the migrations that haven't been recorded, in source order.
	Pending []*Migration
	// Skipped are the migrations that have already been recorded, in source
	// order.
	Skipped []*Migration
	// Missing are ledger records without a corresponding migration in the
	// source, in execution order.
	Missing []Record
}

// Plan ensures the ledger table exists, and compares the recorded migrations
// with the given ones. Migrations are matched by filename only.
func (m *Migrator) Plan(ctx context.Context, migrations []*Migration) (*Plan, error) {
	if err := m.ledger.EnsureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}

	recorded := make(map[string]struct{}, len(applied))
	for _, rec := range applied {
		recorded[rec.Filename] = struct{}{}
	}

	plan := &Plan{Applied: applied}
	inSource := make(map[string]struct{}, len(migrations))
	for _, mig := range migrations {
		inSource[mig.Filename] = struct{}{}
		if _, ok := recorded[mig.Filename]; ok {
			plan.Skipped = append(plan.Skipped, mig)
			continue
		}
		plan.Pending = append(plan.Pending, mig)
	}

	for _, rec := range applied {
		if _, ok := inSource[rec.Filename]; !ok {
			plan.Missing = append(plan.Missing, rec)
		}
	}

	return plan, nil
}

// Result summarizes a migration run.
type Result struct {
	Discovered int
	Skipped    int
	Applied    []string
}

// Run applies all pending migrations in the given order. Each migration is
// executed and recorded in its own transaction. The run stops at the first
// migration that fails, which is rolled back, and its error is returned as a
// *MigrationError. Migrations after the failed one are never attempted.
//
// If ctx is cancelled between migrations, the run stops and returns the
// context error. The returned Result is never nil, and reflects the work done
// up to the point of failure.
func (m *Migrator) Run(ctx context.Context, migrations []*Migration) (*Result, error) {
	res := &Result{Discovered: len(migrations)}
	m.logger.Info("found migrations", "count", len(migrations))

	plan, err := m.Plan(ctx, migrations)
	if err != nil {
		return res, err
	}

	res.Skipped = len(plan.Skipped)
	for _, mig := range plan.Skipped {
		m.logger.Info("migration already executed", "file", mig.Filename)
	}
	for _, rec := range plan.Missing {
		m.logger.Warn("recorded migration not found in source", "file", rec.Filename)
	}

	if len(plan.Pending) == 0 {
		m.logger.Info("no pending migrations", "skipped", res.Skipped)
		return res, nil
	}

	res.Applied, err = m.Apply(ctx, plan.Pending)
	if err != nil {
		return res, err
	}

	m.logger.Info("migrations complete", "applied", len(res.Applied), "skipped", res.Skipped)

	return res, nil
}

// Apply executes the given migrations in order, without consulting the
// ledger first. Each migration is executed and recorded in its own
// transaction, so a migration that another runner recorded in the meantime
// fails with a *types.DuplicateError and is rolled back. Apply stops at the
// first failure, and returns the filenames of the migrations applied until
// then.
func (m *Migrator) Apply(ctx context.Context, migrations []*Migration) ([]string, error) {
	var applied []string
	for _, mig := range migrations {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		logger := m.logger.With("file", mig.Filename)
		logger.Info("applying migration")

		start := time.Now()
		if err := m.apply(ctx, mig, logger); err != nil {
			logger.Error("failed applying migration", "error", err)
			return applied, err
		}
		applied = append(applied, mig.Filename)

		logger.Info("applied migration", "duration", time.Since(start).Round(time.Millisecond))
	}

	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, mig *Migration, logger *slog.Logger) (err error) {
	script, err := mig.Script()
	if err != nil {
		return &MigrationError{Filename: mig.Filename, Op: OpRead, Err: err}
	}
	if !hasStatements(script) {
		return &MigrationError{Filename: mig.Filename, Op: OpRead, Err: ErrEmptyScript}
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	tx, err := m.store.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{Filename: mig.Filename, Op: OpBegin, Err: err}
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn("failed rolling back migration transaction", "error", rbErr)
		}
	}()

	if err = m.exec(ctx, tx, script); err != nil {
		return &MigrationError{Filename: mig.Filename, Op: OpExec, Err: err}
	}

	if err = m.ledger.Record(ctx, tx, mig.Filename, m.store.TimeNow()); err != nil {
		return &MigrationError{Filename: mig.Filename, Op: OpRecord, Err: err}
	}

	if err = tx.Commit(); err != nil {
		return &MigrationError{Filename: mig.Filename, Op: OpCommit, Err: err}
	}

	return nil
}

func (m *Migrator) exec(ctx context.Context, q types.Querier, script string) error {
	if !m.splitStatements {
		_, err := q.ExecContext(ctx, script)
		return err //nolint:wrapcheck // This is wrapped by the caller.
	}

	for i, stmt := range SplitStatements(script) {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}

	return nil
}
