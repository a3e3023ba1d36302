package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"

	"go.hackfix.me/schemer/app/config"
	actx "go.hackfix.me/schemer/app/context"
)

// CLI is the command line interface of schemer.
type CLI struct {
	Migrate Migrate `kong:"cmd,default='withargs',help='Apply pending migrations. This is the default command.'"`
	Status  Status  `kong:"cmd,help='Show the state of all known migrations.'"`

	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
	// The configuration file is managed independently from the CLI, so
	// kong.ConfigFlag isn't used.
	ConfigFile string           `kong:"default='${configFile}',help='Path to the schemer configuration file.'"`
	Version    kong.VersionFlag `kong:"help='Output version and exit.'"`

	kong *kong.Kong
	kctx *kong.Context
}

// New initializes the command-line interface.
func New(configFilePath, version string) (*CLI, error) {
	c := &CLI{}
	kparser, err := kong.New(c,
		kong.Name("schemer"),
		kong.Description("Apply versioned SQL migrations to a database, exactly once each.\n\n"+
			"The database connection string is read from the "+config.ConnStringEnvVar+
			" environment variable."),
		kong.UsageOnError(),
		kong.DefaultEnvars("SCHEMER"),
		kong.NamedMapper("duration", DurationMapper{}),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"configFile": configFilePath,
			"version":    version,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}

	c.kong = kparser

	return c, nil
}

// Execute starts the command execution. Parse must be called before this method.
func (c *CLI) Execute(appCtx *actx.Context) error {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	c.kong.Stdout = appCtx.Stdout
	c.kong.Stderr = appCtx.Stderr

	//nolint:wrapcheck // This is fine.
	return c.kctx.Run(appCtx)
}

// Parse the given command line arguments. This method must be called before
// Execute.
func (c *CLI) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return fmt.Errorf("failed parsing CLI arguments: %w", err)
	}
	c.kctx = kctx

	return nil
}

// Command returns the full path of the executed command.
func (c *CLI) Command() string {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	cmdPath := []string{}
	for _, p := range c.kctx.Path {
		if p.Command != nil {
			cmdPath = append(cmdPath, p.Command.Name)
		}
	}

	return strings.Join(cmdPath, " ")
}

// ApplyConfig applies configuration values to the CLI, but only if they weren't
// already set.
func (c *CLI) ApplyConfig(cfg *config.Config) {
	c.Migrate.Source.applyConfig(cfg)
	c.Status.Source.applyConfig(cfg)

	if c.Migrate.SplitStatements == nil && cfg.Migrations.SplitStatements.Valid {
		split := cfg.Migrations.SplitStatements.V
		c.Migrate.SplitStatements = &split
	}
	if c.Migrate.Timeout == nil && cfg.Migrations.Timeout.Valid {
		timeout := cfg.Migrations.Timeout.V
		c.Migrate.Timeout = &timeout
	}
}
