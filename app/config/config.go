package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/schemer/db/migrator"
	"go.hackfix.me/schemer/xtime"
)

// Config represents the application configuration, backed by a filesystem for
// persistence.
type Config struct {
	Migrations Migrations

	fs   vfs.FileSystem
	path string
}

// NewConfig creates a new Config instance with the specified filesystem
// and configuration file path.
func NewConfig(fs vfs.FileSystem, path string) *Config {
	return &Config{fs: fs, path: path}
}

// Load reads and parses the configuration file from the filesystem.
// If the file doesn't exist, it initializes with an empty configuration.
func (c *Config) Load() error {
	configJSON, err := vfs.ReadFile(c.fs, c.path)
	if err != nil && !vfs.IsErrNotExist(err) {
		return fmt.Errorf("failed reading configuration file: %w", err)
	}

	// Ensure that unmarshalling JSON doesn't fail if the file doesn't exist or is empty.
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}

	if err = json.Unmarshal(configJSON, c); err != nil {
		return fmt.Errorf("failed parsing configuration file: %w", err)
	}

	return nil
}

// Path returns the filesystem path where the configuration is stored.
func (c *Config) Path() string {
	return c.path
}

// Migrations defines configuration options for discovering and applying
// migrations.
type Migrations struct {
	// Dir is the directory migration files are read from.
	Dir sql.Null[string] `json:"dir"`
	// Extensions are the file extensions of migration files, e.g. ".sql".
	Extensions sql.Null[[]string] `json:"extensions"`
	// Table is the name of the ledger table.
	Table sql.Null[string] `json:"table"`
	// SplitStatements executes each statement of a migration separately, within
	// the migration's transaction.
	SplitStatements sql.Null[bool] `json:"split_statements"`
	// Timeout is the maximum amount of time a single migration may run for.
	// It serializes from/to xtime.Duration string values. Zero means no limit.
	Timeout sql.Null[time.Duration] `json:"timeout"`
}

type cfgWrapper struct {
	Migrations migrationsCfgWrapper `json:"migrations"`
}
type migrationsCfgWrapper struct {
	Dir             string   `json:"dir,omitempty"`
	Extensions      []string `json:"extensions,omitempty"`
	Table           string   `json:"table,omitempty"`
	SplitStatements *bool    `json:"split_statements,omitempty"`
	Timeout         string   `json:"timeout,omitempty"`
}

// MarshalJSON implements custom JSON marshaling to convert sql.Null values
// to their underlying types, omitting invalid/null fields from the output.
func (c Config) MarshalJSON() ([]byte, error) {
	w := cfgWrapper{}

	if c.Migrations.Dir.Valid {
		w.Migrations.Dir = c.Migrations.Dir.V
	}
	if c.Migrations.Extensions.Valid {
		w.Migrations.Extensions = c.Migrations.Extensions.V
	}
	if c.Migrations.Table.Valid {
		w.Migrations.Table = c.Migrations.Table.V
	}
	if c.Migrations.SplitStatements.Valid {
		split := c.Migrations.SplitStatements.V
		w.Migrations.SplitStatements = &split
	}
	if c.Migrations.Timeout.Valid {
		w.Migrations.Timeout = xtime.FormatDuration(c.Migrations.Timeout.V, time.Second)
	}

	//nolint:wrapcheck // This is fine.
	return json.Marshal(w)
}

// UnmarshalJSON implements custom JSON unmarshaling to convert plain values
// into sql.Null types and parse duration strings into time.Duration values.
func (c *Config) UnmarshalJSON(data []byte) error {
	var w cfgWrapper
	if err := json.Unmarshal(data, &w); err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}

	if w.Migrations.Dir != "" {
		c.Migrations.Dir = sql.Null[string]{V: w.Migrations.Dir, Valid: true}
	}
	if len(w.Migrations.Extensions) > 0 {
		c.Migrations.Extensions = sql.Null[[]string]{V: w.Migrations.Extensions, Valid: true}
	}
	if w.Migrations.Table != "" {
		c.Migrations.Table = sql.Null[string]{V: w.Migrations.Table, Valid: true}
	}
	if w.Migrations.SplitStatements != nil {
		c.Migrations.SplitStatements = sql.Null[bool]{V: *w.Migrations.SplitStatements, Valid: true}
	}
	if w.Migrations.Timeout != "" {
		dur, err := xtime.ParseDuration(w.Migrations.Timeout)
		if err != nil {
			return fmt.Errorf("failed parsing migration timeout: %w", err)
		}
		if dur < 0 {
			return fmt.Errorf("migration timeout can't be negative: %s", w.Migrations.Timeout)
		}
		c.Migrations.Timeout = sql.Null[time.Duration]{V: dur, Valid: true}
	}

	return nil
}

// DefaultMigrationsDir is the directory migrations are read from if none is
// configured.
const DefaultMigrationsDir = "migrations"

// SetDefaults sets default configuration values if they weren't set already.
func (c *Config) SetDefaults() {
	if !c.Migrations.Dir.Valid {
		c.Migrations.Dir = sql.Null[string]{V: DefaultMigrationsDir, Valid: true}
	}
	if !c.Migrations.Extensions.Valid {
		c.Migrations.Extensions = sql.Null[[]string]{V: []string{migrator.DefaultExtension}, Valid: true}
	}
	if !c.Migrations.Table.Valid {
		c.Migrations.Table = sql.Null[string]{V: migrator.DefaultTable, Valid: true}
	}
	if !c.Migrations.SplitStatements.Valid {
		c.Migrations.SplitStatements = sql.Null[bool]{V: false, Valid: true}
	}
	if !c.Migrations.Timeout.Valid {
		c.Migrations.Timeout = sql.Null[time.Duration]{V: 0, Valid: true}
	}
}
