package config

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/caarlos0/env/v11"
)

// ConnStringEnvVar is the environment variable holding the database
// connection string.
const ConnStringEnvVar = "DATABASE_URL"

// ErrMissingConnString is returned when no usable connection string is set in
// the environment.
var ErrMissingConnString = fmt.Errorf("%s environment variable is not set", ConnStringEnvVar)

// Env holds the configuration read from the process environment. Secrets only
// ever come from here, never from the configuration file.
type Env struct {
	DatabaseURL string `env:"DATABASE_URL"`
}

// ParseEnv reads the environment configuration from the given variables. The
// connection string is normalized with NormalizeConnString, and
// ErrMissingConnString is returned if it's empty.
func ParseEnv(environ map[string]string) (*Env, error) {
	e := &Env{}
	if err := env.ParseWithOptions(e, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed parsing environment: %w", err)
	}

	e.DatabaseURL = NormalizeConnString(e.DatabaseURL)
	if e.DatabaseURL == "" {
		return nil, ErrMissingConnString
	}

	return e, nil
}

// NormalizeConnString cleans up whitespace in a connection string that was
// likely copied from a multi-line source. URL-style strings can't contain
// whitespace, so all of it is removed. Other strings, like key=value DSNs,
// use whitespace as a separator, so runs of it are collapsed into a single
// space.
func NormalizeConnString(s string) string {
	if strings.Contains(s, "://") {
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, s)
	}

	return strings.Join(strings.Fields(s), " ")
}

