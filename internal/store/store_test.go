package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spgt/internal/emit"
	"spgt/internal/facts"
	"spgt/internal/grounding"
	"spgt/internal/pddl"
)

func onoff(t *testing.T) *emit.Program {
	t.Helper()
	d, err := pddl.LoadDomain("../pddl/testdata/onoff-domain.yaml")
	require.NoError(t, err)
	p, err := pddl.LoadProblem("../pddl/testdata/onoff-p01.yaml")
	require.NoError(t, err)
	tr, err := grounding.New(d, p)
	require.NoError(t, err)
	require.NoError(t, tr.Ground(context.Background()))
	return emit.FromTranslator(tr)
}

func openMemory(t *testing.T) *ProgramStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func render(t *testing.T, p *emit.Program) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf))
	return buf.String()
}

func TestKey(t *testing.T) {
	a := Key([]byte("domain"), []byte("problem"))
	assert.Equal(t, a, Key([]byte("domain"), []byte("problem")))
	assert.Len(t, a, 64)
	assert.NotEqual(t, Key([]byte("ab"), []byte("c")), Key([]byte("a"), []byte("bc")))
}

func TestPutGet(t *testing.T) {
	s := openMemory(t)
	prog := onoff(t)

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put("k1", prog))
	got, ok, err := s.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, prog.Name, got.Name)
	if diff := cmp.Diff(render(t, prog), render(t, got)); diff != "" {
		t.Errorf("program mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, prog.Stats(), got.Stats())
}

func TestPut_ReplacesAndKeepsEmptySections(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.Put("k", onoff(t)))

	small := &emit.Program{Name: "small", Sections: []emit.Section{
		{Name: emit.SectionVariables, Facts: []facts.Fact{facts.New(facts.RelVariableValue, "v", "true")}},
		{Name: emit.SectionGoal},
		{Name: emit.SectionActions, Facts: []facts.Fact{facts.New(facts.RelAction, "a")}},
	}}
	require.NoError(t, s.Put("k", small))

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "small", got.Name)
	assert.Equal(t, 2, got.Len())
	require.Len(t, got.Sections, 3)
	assert.Empty(t, got.Sections[1].Facts)
	assert.Equal(t, []string{"variable_value(v,true).", "action(a)."}, got.Lines())

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Programs)
	assert.Equal(t, 2, st.Facts)
}

func TestRuns(t *testing.T) {
	s := openMemory(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, s.RecordRun(Run{ID: "r1", Target: "p01", Key: "k", Facts: 17, CreatedAt: base}))
	require.NoError(t, s.RecordRun(Run{ID: "r2", Target: "p01", Key: "k", Facts: 17, CacheHit: true, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.RecordRun(Run{ID: "r3", Target: "p02", Error: "boom", CreatedAt: base.Add(2 * time.Minute)}))

	runs, err := s.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Equal(t, "", runs[0].Key)
	assert.True(t, runs[1].CacheHit)
	assert.Equal(t, base, runs[2].CreatedAt)

	latest, err := s.Runs(1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "r3", latest[0].ID)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Runs)
	assert.Equal(t, 1, st.Hits)

	assert.Error(t, s.RecordRun(Run{ID: "r1", Target: "dup"}))
}

func TestPrune(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.Put("old", onoff(t)))
	require.NoError(t, s.RecordRun(Run{ID: "r1", Target: "p01", CreatedAt: time.Now().Add(-48 * time.Hour)}))

	n, err := s.Prune(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := s.Get("old")
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spgt.db")

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, GetSchemaVersion(s.db))
	assert.True(t, columnExists(s.db, "runs", "cache_hit"))
	assert.False(t, columnExists(s.db, "runs", "no_such_column"))
	assert.True(t, tableExists(s.db, "program_facts"))
	require.NoError(t, s.Put("k", onoff(t)))
	require.NoError(t, s.Close())

	// Reopening leaves an up-to-date schema and its data alone.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, CurrentSchemaVersion, GetSchemaVersion(s.db))
	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
}
