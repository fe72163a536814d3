package store

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func subevent(id, parent string, seq int64, kind string) engine.SubeventRecord {
	return engine.SubeventRecord{
		ID:       id,
		ParentID: parent,
		Seq:      seq,
		Kind:     kind,
		Target:   "hero",
		Passes:   1,
		Applied:  []string{"fx-1"},
		Doc:      doc.MustParseObject(`{"kind":"` + kind + `","target":"hero","amount":{"fire":10}}`),
	}
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM subevents").Scan(&count))
	assert.Zero(t, count)
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_MigratesLegacyRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE runs (
		ord INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO runs (id, label) VALUES ('old', 'legacy')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, Run{ID: "old", Label: "legacy"}, runs[0])
}

func TestRecord_RequiresRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.RecordSubevent(ctx, subevent("sub-1", "", 1, "damage"))
	assert.ErrorIs(t, err, ErrNoRun)

	err = s.RecordApplication(ctx, engine.Application{SubeventID: "sub-1", Effect: "fx-1"})
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestRecordSubevent_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1", Label: "smoke"}))

	rec := subevent("sub-1", "", 1, "damage")
	rec.Depth = 0
	require.NoError(t, s.RecordSubevent(ctx, rec))

	got, ok, err := s.ReadSubevent(ctx, "run-1", "sub-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "damage", got.Kind)
	assert.Equal(t, "hero", got.Target)
	assert.Equal(t, []string{"fx-1"}, got.Applied)
	assert.True(t, doc.Equal(rec.Doc, got.Doc))

	want, err := doc.Hash(doc.DomainSubevent, rec.Doc)
	require.NoError(t, err)
	assert.Equal(t, want, got.Hash)
}

func TestReadSubevent_Missing(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.ReadSubevent(context.Background(), "run-1", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordSubevent_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1"}))

	rec := subevent("sub-1", "", 1, "damage")
	require.NoError(t, s.RecordSubevent(ctx, rec))
	require.NoError(t, s.RecordSubevent(ctx, rec))

	subs, err := s.ReadSubevents(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestRecordSubevent_NilAppliedAndDoc(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1"}))

	require.NoError(t, s.RecordSubevent(ctx, engine.SubeventRecord{ID: "sub-1", Seq: 1, Kind: "heal"}))

	got, ok, err := s.ReadSubevent(ctx, "run-1", "sub-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, got.Applied)
	assert.Empty(t, got.Applied)
	assert.Equal(t, 0, got.Doc.Len())
}

func TestReadSubevents_Ordering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1"}))

	// Nested subevents settle before their parent but carry a later seq.
	require.NoError(t, s.RecordSubevent(ctx, subevent("sub-b", "sub-a", 3, "affinity")))
	require.NoError(t, s.RecordSubevent(ctx, subevent("sub-a", "", 1, "damage")))
	require.NoError(t, s.RecordSubevent(ctx, subevent("sub-c", "sub-a", 2, "affinity")))

	subs, err := s.ReadSubevents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "sub-a", subs[0].ID)
	assert.Equal(t, "sub-c", subs[1].ID)
	assert.Equal(t, "sub-b", subs[2].ID)
	assert.Equal(t, "sub-a", subs[2].ParentID)
}

func TestReadSubevents_EmptyRun(t *testing.T) {
	s := openTestStore(t)

	subs, err := s.ReadSubevents(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)

	apps, err := s.ReadApplications(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, apps)
	assert.Empty(t, apps)
}

func TestRecordApplication_OncePerSubevent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1"}))

	first := engine.Application{SubeventID: "sub-1", Seq: 1, Pass: 1, Entity: "hero", Effect: "fx-1", Behavior: 0}
	second := engine.Application{SubeventID: "sub-1", Seq: 1, Pass: 2, Entity: "hero", Effect: "fx-2", Behavior: 1}

	require.NoError(t, s.RecordApplication(ctx, first))
	require.NoError(t, s.RecordApplication(ctx, second))
	// Same effect on the same subevent is ignored.
	dup := first
	dup.Pass = 3
	require.NoError(t, s.RecordApplication(ctx, dup))

	apps, err := s.ReadApplications(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []engine.Application{first, second}, apps)
}

func TestRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.BeginRun(ctx, Run{ID: "b", Label: "first", Content: "testdata/core"}))
	require.NoError(t, s.BeginRun(ctx, Run{ID: "a", Label: "second"}))
	require.NoError(t, s.BeginRun(ctx, Run{ID: "b", Label: "ignored"}))
	assert.Equal(t, "b", s.CurrentRun())

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Run{
		{ID: "b", Label: "first", Content: "testdata/core"},
		{ID: "a", Label: "second"},
	}, runs)

	latest, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", latest.ID)

	got, ok, err := s.GetRun(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", got.Label)

	_, ok, err = s.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, s.BeginRun(ctx, Run{}))
}

func TestRunsIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1"}))
	require.NoError(t, s.RecordSubevent(ctx, subevent("sub-1", "", 1, "damage")))
	require.NoError(t, s.RecordApplication(ctx, engine.Application{SubeventID: "sub-1", Seq: 1, Pass: 1, Entity: "hero", Effect: "fx-1"}))
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-2"}))
	require.NoError(t, s.RecordSubevent(ctx, subevent("sub-1", "", 1, "heal")))
	require.NoError(t, s.RecordApplication(ctx, engine.Application{SubeventID: "sub-1", Seq: 1, Pass: 1, Entity: "hero", Effect: "fx-1"}))

	one, err := s.ReadSubevents(ctx, "run-1")
	require.NoError(t, err)
	two, err := s.ReadSubevents(ctx, "run-2")
	require.NoError(t, err)

	require.Len(t, one, 1)
	require.Len(t, two, 1)
	assert.Equal(t, "damage", one[0].Kind)
	assert.Equal(t, "heal", two[0].Kind)

	for _, run := range []string{"run-1", "run-2"} {
		apps, err := s.ReadApplications(ctx, run)
		require.NoError(t, err)
		assert.Len(t, apps, 1, run)
	}
}

func TestExport_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1", Label: "export"}))

	rec := subevent("sub-1", "", 1, "damage")
	require.NoError(t, s.RecordSubevent(ctx, rec))
	require.NoError(t, s.RecordApplication(ctx, engine.Application{
		SubeventID: "sub-1", Seq: 1, Pass: 1, Entity: "hero", Effect: "fx-1",
	}))

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, "run-1", &buf))

	entries, err := ReadExport(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, EntryRun, entries[0].Type)
	assert.Equal(t, "export", entries[0].Label)

	assert.Equal(t, EntrySubevent, entries[1].Type)
	assert.Equal(t, "sub-1", entries[1].ID)
	canonical, err := doc.MarshalCanonical(rec.Doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(canonical), string(entries[1].Doc))

	assert.Equal(t, EntryApplication, entries[2].Type)
	assert.Equal(t, "fx-1", entries[2].Effect)
	assert.Equal(t, 1, entries[2].Pass)
}

func TestExport_UnknownRun(t *testing.T) {
	s := openTestStore(t)

	var buf bytes.Buffer
	assert.Error(t, s.Export(context.Background(), "missing", &buf))
}

func TestReadExport_Garbage(t *testing.T) {
	_, err := ReadExport(bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
}
