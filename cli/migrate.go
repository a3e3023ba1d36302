package cli

import (
	"errors"
	"os/signal"
	"syscall"
	"time"

	actx "go.hackfix.me/schemer/app/context"
	aerrors "go.hackfix.me/schemer/app/errors"
	"go.hackfix.me/schemer/db/migrator"
)

// Migrate applies all pending migrations.
type Migrate struct {
	Source SourceFlags `embed:""`
	// Pointers tell unset flags apart from explicit zero values, which
	// override the configuration file.
	//nolint:lll // Long struct tags are unavoidable.
	SplitStatements *bool          `negatable:"" help:"Execute each statement of a migration separately, within the migration's transaction. Use it with drivers that don't support multiple statements per query. Semicolons within quotes, comments, dollar-quoted bodies and CREATE TRIGGER ... BEGIN ... END bodies don't split statements."`
	Timeout         *time.Duration `type:"duration" help:"Maximum amount of time a single migration may run for, e.g. 30s or 5m. 0 disables the limit. Default: no limit." placeholder:"DURATION"`
}

type runOutcome struct {
	res *migrator.Result
	err error
}

// Run the migrate command.
func (c *Migrate) Run(appCtx *actx.Context) error {
	// A process signal or the end of the main context stops the run. This is
	// set up before connecting, so that connecting to an unresponsive server
	// can be interrupted as well.
	ctx, stop := signal.NotifyContext(appCtx.Ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := openDB(ctx, appCtx)
	if err != nil {
		if interrupted(ctx, err) {
			appCtx.Logger.Warn("migration run interrupted before connecting")
			return nil
		}
		return err
	}
	defer closeDB(appCtx, d)

	migrations, err := loadMigrations(appCtx, c.Source)
	if err != nil {
		return err
	}

	var timeout time.Duration
	if c.Timeout != nil {
		timeout = *c.Timeout
	}
	m, err := migrator.New(d,
		migrator.WithLogger(appCtx.Logger),
		migrator.WithTable(c.Source.Table),
		migrator.WithSplitStatements(c.SplitStatements != nil && *c.SplitStatements),
		migrator.WithTimeout(timeout),
	)
	if err != nil {
		return err
	}
	logger := appCtx.Logger.With("run_id", m.RunID())

	runDone := make(chan runOutcome, 1)
	go func() {
		res, runErr := m.Run(ctx, migrations)
		runDone <- runOutcome{res: res, err: runErr}
	}()

	// The transaction of the migration in progress is rolled back when ctx is
	// cancelled, so the pool can be closed before the run returns.
	var out runOutcome
	select {
	case <-ctx.Done():
		logger.Debug("stopping migration run")
		closeDB(appCtx, d)
		out = <-runDone
	case out = <-runDone:
	}

	if out.err == nil {
		return nil
	}
	if !interrupted(ctx, out.err) {
		return migrationError(out.err)
	}
	logger.Warn("migration run interrupted", "applied", len(out.res.Applied))

	return nil
}

// migrationError adds the failing migration's details to err, so that they're
// rendered as log attributes.
func migrationError(err error) error {
	var mErr *migrator.MigrationError
	if errors.As(err, &mErr) {
		return aerrors.WithCause(errors.New("failed applying migration"), err,
			"file", mErr.Filename, "op", mErr.Op)
	}

	return err
}
