package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such table: courses")

	t.Run("ok/with_cause", func(t *testing.T) {
		t.Parallel()

		err := NewWithCause("failed applying migration", cause, "file", "002_seed.sql", "op", "exec")
		assert.Equal(t, "failed applying migration", err.Error())
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, cause, err.Cause())
		assert.Equal(t, map[string]any{"file": "002_seed.sql", "op": "exec"}, err.Metadata())
	})

	t.Run("ok/merge_keeps_cause", func(t *testing.T) {
		t.Parallel()

		err := With(NewWithCause("failed", cause, "file", "001.sql"), "file", "002.sql", "dir", "migrations")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, map[string]any{"file": "002.sql", "dir": "migrations"}, err.Metadata())
	})

	t.Run("ok/wrapped", func(t *testing.T) {
		t.Parallel()

		err := fmt.Errorf("run failed: %w", NewWith("boom", "file", "001.sql"))
		var serr *StructuredError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "001.sql", serr.Metadata()["file"])
	})

	t.Run("err/odd_fields", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { NewWith("boom", "file") })
	})

	t.Run("err/non_string_key", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { NewWith("boom", 1, "file") })
	})
}

func TestLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		exp  string
	}{
		{
			name: "ok/plain",
			err:  errors.New("DATABASE_URL environment variable is not set"),
			exp:  `level=ERROR msg="DATABASE_URL environment variable is not set"`,
		},
		{
			name: "ok/structured",
			err: NewWithCause("failed applying migration",
				errors.New("syntax error"), "op", "exec", "file", "002_seed.sql"),
			exp: `level=ERROR msg="failed applying migration" cause="syntax error" file=002_seed.sql op=exec`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}))

			Log(logger, tt.err)
			assert.Equal(t, tt.exp, strings.TrimSpace(buf.String()))
		})
	}
}
