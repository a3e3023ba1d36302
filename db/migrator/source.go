package migrator

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// DefaultExtension is the file extension of migration files if none is given.
const DefaultExtension = ".sql"

// Migration is a single named, forward-only change script. The script is read
// from the filesystem only when needed.
type Migration struct {
	Filename string

	fs   vfs.FileSystem
	path string
}

// NewMigration returns a migration backed by the file at filePath.
func NewMigration(fs vfs.FileSystem, filePath string) *Migration {
	return &Migration{Filename: path.Base(filePath), fs: fs, path: filePath}
}

// Path returns the path of the migration file.
func (m *Migration) Path() string {
	return m.path
}

// Script reads and returns the full contents of the migration file.
func (m *Migration) Script() (string, error) {
	data, err := vfs.ReadFile(m.fs, m.path)
	if err != nil {
		return "", fmt.Errorf("failed reading migration file: %w", err)
	}

	return string(data), nil
}

// LoadMigrations returns the migration files found directly in dir whose
// extension matches one of exts, sorted lexicographically by filename. The
// comparison of extensions is case-insensitive. If no extensions are given,
// DefaultExtension is used. A directory without matching files is not an
// error.
func LoadMigrations(fs vfs.FileSystem, dir string, exts ...string) ([]*Migration, error) {
	if len(exts) == 0 {
		exts = []string{DefaultExtension}
	}
	wantExt := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wantExt[ext] = struct{}{}
	}

	entries, err := vfs.ReadDir(fs, dir)
	if err != nil {
		return nil, &SourceError{Dir: dir, Err: err}
	}

	migrations := make([]*Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := wantExt[strings.ToLower(path.Ext(name))]; !ok {
			continue
		}
		migrations = append(migrations, NewMigration(fs, path.Join(dir, name)))
	}

	slices.SortFunc(migrations, func(a, b *Migration) int {
		return strings.Compare(a.Filename, b.Filename)
	})

	return migrations, nil
}
