package cli

import (
	"errors"
	"reflect"

	"github.com/alecthomas/kong"

	"go.hackfix.me/schemer/app/config"
	"go.hackfix.me/schemer/xtime"
)

// SourceFlags are the options that locate migrations and the ledger, shared by
// all commands.
type SourceFlags struct {
	Dir   string   `help:"Directory to read migration files from. Default: migrations" placeholder:"PATH"`
	Ext   []string `help:"Extension of migration files. Can be repeated. Default: .sql" placeholder:"EXT"`
	Table string   `help:"Name of the table that records applied migrations. Default: migrations"`
}

func (f *SourceFlags) applyConfig(cfg *config.Config) {
	if f.Dir == "" && cfg.Migrations.Dir.Valid {
		f.Dir = cfg.Migrations.Dir.V
	}
	if len(f.Ext) == 0 && cfg.Migrations.Extensions.Valid {
		f.Ext = cfg.Migrations.Extensions.V
	}
	if f.Table == "" && cfg.Migrations.Table.Valid {
		f.Table = cfg.Migrations.Table.V
	}
}

// DurationMapper parses durations with the extended units supported by
// xtime.ParseDuration into time.Duration or *time.Duration targets. Negative
// durations are rejected.
type DurationMapper struct{}

var _ kong.Mapper = (*DurationMapper)(nil)

// Decode implements the kong.Mapper interface.
func (DurationMapper) Decode(kctx *kong.DecodeContext, target reflect.Value) error {
	var value string
	err := kctx.Scan.PopValueInto("duration", &value)
	if err != nil {
		return err
	}

	dur, err := xtime.ParseDuration(value)
	if err != nil {
		return err
	}
	if dur < 0 {
		return errors.New("duration can't be negative")
	}

	val := reflect.ValueOf(dur)
	if target.Kind() == reflect.Ptr {
		ptr := reflect.New(val.Type())
		ptr.Elem().Set(val)
		val = ptr
	}
	target.Set(val)

	return nil
}
