package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"maps"
	"path"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/require"

	actx "go.hackfix.me/schemer/app/context"
	"go.hackfix.me/schemer/db"
)

var timeNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func timeNowFn() time.Time {
	return timeNow
}

type testApp struct {
	*App
	fs             vfs.FileSystem
	stdout, stderr *safeBuffer
	env            *mockEnv
	// db is kept open for the duration of the test, so that the in-memory
	// database outlives the connections of each command run.
	db *db.DB
}

func newTestApp(ctx context.Context, t *testing.T) *testApp {
	t.Helper()

	// A unique name per app, to avoid clashing of in-memory SQLite DBs.
	rndName := make([]byte, 12)
	_, err := rand.Read(rndName)
	require.NoError(t, err)

	// Not using just :memory: to avoid 'no such table' issue.
	// See https://github.com/mattn/go-sqlite3#faq
	dsn := fmt.Sprintf("file:schemer-%x?mode=memory&cache=shared", rndName)
	d, err := db.Open(t.Context(), dsn, timeNowFn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	var (
		fs               = memoryfs.New()
		stdoutW, stderrW = newSafeBuffer(), newSafeBuffer()
		env              = &mockEnv{env: map[string]string{"DATABASE_URL": dsn}}
	)

	opts := []Option{
		WithTimeNow(timeNowFn),
		WithEnv(env),
		WithContext(ctx),
		WithFDs(&bytes.Buffer{}, stdoutW, stderrW),
		WithFS(fs),
		WithLogger(false),
	}
	app, err := New("schemer", "/config.json", opts...)
	require.NoError(t, err)

	return &testApp{
		App: app, fs: fs, stdout: stdoutW, stderr: stderrW, env: env, db: d,
	}
}

// Run executes the app with the given arguments. The output of previous runs
// is discarded.
func (ta *testApp) Run(args ...string) error {
	ta.stdout.Reset()
	ta.stderr.Reset()

	return ta.App.Run(args)
}

func (ta *testApp) writeFile(t *testing.T, filePath, content string) {
	t.Helper()

	require.NoError(t, ta.fs.MkdirAll(path.Dir(filePath), 0o755))
	require.NoError(t, vfs.WriteFile(ta.fs, filePath, []byte(content), 0o644))
}

func (ta *testApp) queryStrings(t *testing.T, query string) []string {
	t.Helper()

	rows, err := ta.db.QueryContext(t.Context(), query)
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

type mockEnv struct {
	mx  sync.RWMutex
	env map[string]string
}

var _ actx.Environment = (*mockEnv)(nil)

func (me *mockEnv) Get(key string) string {
	me.mx.RLock()
	defer me.mx.RUnlock()
	return me.env[key]
}

func (me *mockEnv) Set(key, val string) error {
	me.mx.Lock()
	defer me.mx.Unlock()
	me.env[key] = val
	return nil
}

func (me *mockEnv) All() map[string]string {
	me.mx.RLock()
	defer me.mx.RUnlock()
	return maps.Clone(me.env)
}

// safeBuffer is a thread-safe buffer, which can run hooks when specific text
// is written.
type safeBuffer struct {
	mx    sync.RWMutex
	buf   *bytes.Buffer
	hooks []*writeHook
}

type writeHook struct {
	rx   *regexp.Regexp
	fn   func()
	once sync.Once
}

// onMatch runs fn once, the first time a write matches the rxPat regex.
func (b *safeBuffer) onMatch(rxPat string, fn func()) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.hooks = append(b.hooks, &writeHook{rx: regexp.MustCompile(rxPat), fn: fn})
}

var _ io.Writer = (*safeBuffer)(nil)

func newSafeBuffer() *safeBuffer {
	return &safeBuffer{buf: &bytes.Buffer{}}
}

func (b *safeBuffer) Write(p []byte) (n int, err error) {
	b.mx.Lock()
	n, err = b.buf.Write(p)
	hooks := b.hooks
	b.mx.Unlock()

	for _, h := range hooks {
		if h.rx.Match(p) {
			h.once.Do(h.fn)
		}
	}

	return n, err
}

func (b *safeBuffer) Reset() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.buf.Reset()
}

func (b *safeBuffer) String() string {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.buf.String()
}
