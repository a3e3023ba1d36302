package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	actx "go.hackfix.me/schemer/app/context"
	"go.hackfix.me/schemer/db/migrator"
	"go.hackfix.me/schemer/xtime"
)

// Migration states reported by the status command.
const (
	stateApplied = "applied"
	statePending = "pending"
	stateMissing = "missing"
)

// Status shows which migrations have been applied, and which are pending.
type Status struct {
	Source SourceFlags `embed:""`
}

// Run the status command.
func (c *Status) Run(appCtx *actx.Context) error {
	d, err := openDB(appCtx.Ctx, appCtx)
	if err != nil {
		return err
	}
	defer closeDB(appCtx, d)

	migrations, err := loadMigrations(appCtx, c.Source)
	if err != nil {
		return err
	}

	m, err := migrator.New(d,
		migrator.WithLogger(slog.New(slog.DiscardHandler)),
		migrator.WithTable(c.Source.Table),
	)
	if err != nil {
		return err
	}

	plan, err := m.Plan(appCtx.Ctx, migrations)
	if err != nil {
		return err
	}

	now := appCtx.TimeNow()
	missing := make(map[int64]struct{}, len(plan.Missing))
	for _, rec := range plan.Missing {
		missing[rec.ID] = struct{}{}
	}

	data := make([][]string, 0, len(plan.Applied)+len(plan.Pending))
	for _, rec := range plan.Applied {
		state := stateApplied
		if _, ok := missing[rec.ID]; ok {
			state = stateMissing
		}
		data = append(data, []string{
			strconv.FormatInt(rec.ID, 10), rec.Filename, state,
			formatExecutedAt(rec.ExecutedAt, now),
		})
	}
	for _, mig := range plan.Pending {
		data = append(data, []string{"", mig.Filename, statePending, ""})
	}

	if len(data) == 0 {
		_, err = fmt.Fprintln(appCtx.Stdout, "No migrations found.")
		return err //nolint:wrapcheck // Nothing to add.
	}

	header := []string{"ID", "Filename", "State", "Executed At"}
	if err = renderTable(header, data, appCtx.Stdout); err != nil {
		return fmt.Errorf("failed rendering migrations table: %w", err)
	}

	return nil
}

func formatExecutedAt(at, now time.Time) string {
	ts := at.UTC().Format(time.DateTime)
	age := now.Sub(at)
	if age < time.Second {
		return ts
	}

	return fmt.Sprintf("%s (%s ago)", ts, xtime.FormatDuration(age, time.Second))
}
