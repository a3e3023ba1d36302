package migrator

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.hackfix.me/schemer/db/types"
)

// DefaultTable is the name of the ledger table if none is configured.
const DefaultTable = "migrations"

var identRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Record is a ledger entry of a migration that was applied successfully.
type Record struct {
	// ID is assigned by the database on insertion, and reflects the order in
	// which migrations were executed.
	ID         int64
	Filename   string
	ExecutedAt time.Time
}

// Ledger is the persistent record of applied migrations. The filename column
// is unique, so a migration can be recorded only once.
type Ledger struct {
	store types.Store
	table string
}

// NewLedger returns a Ledger stored in table. An empty table name selects
// DefaultTable.
func NewLedger(store types.Store, table string) (*Ledger, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRx.MatchString(table) {
		return nil, fmt.Errorf("invalid ledger table name '%s'", table)
	}

	return &Ledger{store: store, table: table}, nil
}

// Table returns the name of the ledger table.
func (l *Ledger) Table() string {
	return l.table
}

// EnsureTable creates the ledger table if it doesn't exist.
func (l *Ledger) EnsureTable(ctx context.Context) error {
	idCol := `id INTEGER PRIMARY KEY AUTOINCREMENT`
	filenameType := `TEXT`
	if l.store.Dialect() == types.DialectPostgres {
		idCol = `id SERIAL PRIMARY KEY`
		filenameType = `VARCHAR(255)`
	}

	_, err := l.store.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s,
		filename %s NOT NULL UNIQUE,
		executed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, l.table, idCol, filenameType))
	if err != nil {
		return fmt.Errorf("failed creating ledger table '%s': %w", l.table, err)
	}

	return nil
}

// Applied returns all recorded migrations in the order they were executed.
func (l *Ledger) Applied(ctx context.Context) ([]Record, error) {
	rows, err := l.store.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, filename, executed_at FROM %s ORDER BY id ASC`, l.table))
	if err != nil {
		return nil, fmt.Errorf("failed querying ledger table '%s': %w", l.table, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err = rows.Scan(&rec.ID, &rec.Filename, &rec.ExecutedAt); err != nil {
			return nil, &types.ScanError{ModelName: "migration record", Err: err}
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading ledger table '%s': %w", l.table, err)
	}

	return records, nil
}

// Record inserts a ledger entry for filename using q, which should be the
// transaction the migration itself was executed in. If the filename was
// already recorded, a *types.DuplicateError is returned.
func (l *Ledger) Record(ctx context.Context, q types.Querier, filename string, executedAt time.Time) error {
	d := l.store.Dialect()
	_, err := q.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (filename, executed_at) VALUES (%s, %s)`,
			l.table, d.Placeholder(1), d.Placeholder(2)),
		filename, executedAt.UTC())
	if err != nil {
		return types.Err("migration", fmt.Sprintf("filename '%s'", filename), err)
	}

	return nil
}
