package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigShow(t *testing.T) {
	out, _, err := execute(t, nil, "config", "show", "--database-dsn", "override.db", "--retry-attempts", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "dsn: override.db")
	assert.Contains(t, out, "attempts: 7")
	assert.Contains(t, out, "max_delay: 30s")
	assert.Contains(t, out, "max_size_mb: 10")
}

func TestConfigShow_JSON(t *testing.T) {
	t.Setenv("CHANGESET_DATABASE_DRIVER", "pgx")

	out, _, err := execute(t, nil, "--format", "json", "config", "show")
	require.NoError(t, err)

	var resp struct {
		Status string                    `json:"status"`
		Data   map[string]map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "pgx", resp.Data["database"]["driver"])
	assert.Equal(t, "1s", resp.Data["retry"]["delay"])
}

func TestConfigShow_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o644))

	out, _, err := execute(t, nil, "--config", path, "config", "show")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]: failed to load config")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "changeset.yaml")

	out, _, err := execute(t, nil, "config", "init", path)
	require.NoError(t, err)
	assert.Equal(t, "✓ Wrote "+path+"\n", out)

	// The written file loads back through --config.
	out, _, err = execute(t, nil, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: sqlite3")

	_, _, err = execute(t, nil, "config", "init", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, nil, "config", "init", "--force", path)
	assert.NoError(t, err)
}
