package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/grimoire/internal/store"
)

// recordedDB runs fire_ward into a fresh database as run-1.
func recordedDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "grimoire.db")
	_, err := execute(t, "--db", db, "run", "--run-id", "run-1", filepath.Join(scenariosDir, "fire_ward.yaml"))
	require.NoError(t, err)
	return db
}

func TestTrace_ListRuns(t *testing.T) {
	db := recordedDB(t)

	out, err := execute(t, "--db", db, "trace")
	require.NoError(t, err)
	assert.Contains(t, out, "run-1  fire_ward")
}

func TestTrace_ListRunsEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "--db", db, "trace")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestTrace_Run(t *testing.T) {
	db := recordedDB(t)

	out, err := execute(t, "--db", db, "trace", "--run", "run-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Run: run-1 (fire_ward)")
	assert.Contains(t, out, "[1] sub-1 damage target=hero passes=1 applied=[]")
	assert.Contains(t, out, "[2] sub-2 damage_affinity target=hero passes=2 applied=[ward]")
	assert.Contains(t, out, "[2] hero.ward on sub-2 (pass 1, behavior 0)")
	assert.Contains(t, out, "Subevents: 2")
	assert.Contains(t, out, "Max depth: 1")
}

func TestTrace_RunJSON(t *testing.T) {
	db := recordedDB(t)

	out, err := execute(t, "--db", db, "--format", "json", "trace", "--run", "run-1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		RunID  string      `json:"run_id"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "fire_ward", resp.Data.Run.Label)
	require.Len(t, resp.Data.Subevents, 2)
	assert.Equal(t, "sub-1", resp.Data.Subevents[1].ParentID)
	assert.NotEmpty(t, resp.Data.Subevents[0].Hash)
	assert.Equal(t, TraceStats{Subevents: 2, Applications: 1, MaxDepth: 1, MaxPasses: 2}, resp.Data.Stats)
}

func TestTrace_UnknownRun(t *testing.T) {
	db := recordedDB(t)

	out, err := execute(t, "--db", db, "trace", "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNoRun)
}

func TestTrace_Export(t *testing.T) {
	db := recordedDB(t)
	path := filepath.Join(t.TempDir(), "latest.jsonl.zst")

	out, err := execute(t, "--db", db, "trace", "--export", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Exported run run-1")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	entries, err := store.ReadExport(f)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, store.EntryRun, entries[0].Type)
	assert.Equal(t, store.EntrySubevent, entries[1].Type)
	assert.Equal(t, store.EntrySubevent, entries[2].Type)
	assert.Equal(t, store.EntryApplication, entries[3].Type)
}

func TestTrace_DatabaseRequired(t *testing.T) {
	t.Setenv("GRIMOIRE_DB", "")

	_, err := execute(t, "trace")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "--db", filepath.Join(t.TempDir(), "missing.db"), "trace")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
