package cli

import (
	"context"
	"errors"

	"go.hackfix.me/schemer/app/config"
	actx "go.hackfix.me/schemer/app/context"
	aerrors "go.hackfix.me/schemer/app/errors"
	"go.hackfix.me/schemer/db"
	"go.hackfix.me/schemer/db/migrator"
	"go.hackfix.me/schemer/db/types"
)

// openDB reads the connection string from the environment and connects to the
// database it points to.
func openDB(ctx context.Context, appCtx *actx.Context) (*db.DB, error) {
	env, err := config.ParseEnv(appCtx.Env.All())
	if err != nil {
		return nil, err
	}

	d, err := db.Open(ctx, env.DatabaseURL, appCtx.TimeNow, appCtx.Logger)
	if err != nil {
		return nil, err
	}

	return d, nil
}

// closeDB closes the database, logging any errors.
func closeDB(appCtx *actx.Context, d *db.DB) {
	if err := d.Close(); err != nil {
		appCtx.Logger.Warn("failed closing database", "error", err)
	}
}

func loadMigrations(appCtx *actx.Context, src SourceFlags) ([]*migrator.Migration, error) {
	migrations, err := migrator.LoadMigrations(appCtx.FS, src.Dir, src.Ext...)
	if err != nil {
		var srcErr *migrator.SourceError
		if errors.As(err, &srcErr) {
			return nil, aerrors.WithCause(errors.New("failed loading migrations"), err, "dir", srcErr.Dir)
		}
		return nil, err
	}

	return migrations, nil
}

// interrupted returns true if ctx was cancelled, and err is the result of
// that cancellation rather than an unrelated failure.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && types.IsCanceled(err)
}
