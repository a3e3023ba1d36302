package migrator_test

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"path"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/schemer/db"
)

var timeNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func timeNowFn() time.Time {
	return timeNow
}

// migrationFile is a file written to the test filesystem, in the order given.
type migrationFile struct {
	name   string
	script string
}

func newTestDB(t *testing.T) *db.DB {
	t.Helper()

	// A unique name per test, to avoid clashing of in-memory SQLite DBs.
	rndName := make([]byte, 12)
	_, err := rand.Read(rndName)
	require.NoError(t, err)

	// Not using just :memory: to avoid 'no such table' issue.
	// See https://github.com/mattn/go-sqlite3#faq
	d, err := db.Open(t.Context(),
		fmt.Sprintf("file:schemer-%x?mode=memory&cache=shared", rndName),
		timeNowFn, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return d
}

func newTestFS(t *testing.T, dir string, files ...migrationFile) vfs.FileSystem {
	t.Helper()

	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	writeFiles(t, fs, dir, files...)

	return fs
}

func writeFiles(t *testing.T, fs vfs.FileSystem, dir string, files ...migrationFile) {
	t.Helper()

	for _, f := range files {
		err := vfs.WriteFile(fs, path.Join(dir, f.name), []byte(f.script), 0o644)
		require.NoError(t, err)
	}
}

func queryStrings(t *testing.T, d *db.DB, query string) []string {
	t.Helper()

	rows, err := d.QueryContext(t.Context(), query)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		out = append(out, s)
	}
	require.NoError(t, rows.Err())

	return out
}

func tableExists(t *testing.T, d *db.DB, name string) bool {
	t.Helper()

	var count int
	err := d.QueryRowContext(t.Context(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).
		Scan(&count)
	require.NoError(t, err)

	return count > 0
}
