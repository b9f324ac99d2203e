package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/changeset/internal/store"
	"github.com/roach88/changeset/internal/testutil"
)

// execute runs the root command with args and captures both streams.
func execute(t *testing.T, opts *RootOptions, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	if opts == nil {
		opts = &RootOptions{}
	}
	cmd := newRootCommand(opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// deterministic returns options with a fixed cycle id and a 10ms step clock.
func deterministic() *RootOptions {
	return &RootOptions{
		CycleIDs: testutil.NewFixedCycleID("cycle-golden"),
		Clock:    testutil.NewStepClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond).Now,
	}
}

// seedWidgets creates a SQLite database holding widgets 1, 2 and 3.
func seedWidgets(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "widgets.db")
	st, err := store.Open(context.Background(), store.Config{Driver: "sqlite3", DSN: path})
	require.NoError(t, err)
	defer st.Close()

	for _, stmt := range []string{
		`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL, color TEXT)`,
		`INSERT INTO widgets (id, name) VALUES (1, 'bolt'), (2, 'nut'), (3, 'gear')`,
	} {
		_, err := st.DB().Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func widgetCount(t *testing.T, dsn string) int64 {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err)
	defer st.Close()
	n, err := st.Count(context.Background(), "widgets")
	require.NoError(t, err)
	return n
}
