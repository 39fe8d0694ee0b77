package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spgt/internal/config"
	"spgt/internal/emit"
)

const (
	onoffDomain   = "../../internal/pddl/testdata/onoff-domain.yaml"
	onoffProblem  = "../../internal/pddl/testdata/onoff-p01.yaml"
	acroDomain    = "../../internal/pddl/testdata/acrobatics-domain.yaml"
	acroProblem   = "../../internal/pddl/testdata/acrobatics-p01.yaml"
	mismatchProbl = "../../internal/pddl/testdata/mismatch-p01.yaml"
)

// resetFlags restores every command flag variable to its default.
func resetFlags(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	configPath = "spgt.yaml"
	outputPath, goalText = "", ""
	noCompact, watchMode, showStats = false, false, false
	workers = 0
	cachePath, noCache = "", false
	historyLimit, historyPrune = 20, 0
	inspectQuery, inspectExplain, inspectRules = "", "", ""
	inspectJSON = false
	formulaNNF, formulaSimplify, formulaFacts = false, false, false
	forceInit = false
}

// run invokes a handler with captured stdout and stderr.
func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) (string, string, error) {
	t.Helper()
	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := fn(cmd, args)
	return out.String(), errOut.String(), err
}

func TestCompile_Stdout(t *testing.T) {
	resetFlags(t)

	out, errOut, err := run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "variable_value(on_la_r,false).\n"))
	assert.Contains(t, out, "\ngoal(conj(has_value(on_la_r,true),has_value(on_lb_r,true))).\n")
	assert.Contains(t, out, "add(toggle_lb_r_ueffect_u0,on_lb_r,true).\n")
	assert.Contains(t, errOut, "onoff/p01: 17 facts")
}

func TestCompile_OutputFileAndStats(t *testing.T) {
	resetFlags(t)
	outputPath = filepath.Join(t.TempDir(), "out", "onoff.lp")
	showStats = true

	out, errOut, err := run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "variable_value")

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "action(toggle_la_r).\n")
}

func TestCompile_ConfigOutputPath(t *testing.T) {
	resetFlags(t)
	cfg.Output.Path = filepath.Join(t.TempDir(), "cfg.lp")

	_, _, err := run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.FileExists(t, cfg.Output.Path)
}

func TestCompile_GoalOverride(t *testing.T) {
	resetFlags(t)
	goalText = "⊤"

	out, _, err := run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Contains(t, out, "\ngoal(verum).\n")
	assert.NotContains(t, out, "goal(conj(")
}

func TestCompile_Workers(t *testing.T) {
	resetFlags(t)
	workers = 1

	out, _, err := run(t, runCompile, acroDomain, acroProblem)
	require.NoError(t, err)
	assert.Contains(t, out, "action(walk_hon_hbeam_lp0_cp1_r).\n")
}

func TestCompile_Errors(t *testing.T) {
	resetFlags(t)

	_, _, err := run(t, runCompile, onoffDomain, mismatchProbl)
	assert.Error(t, err)

	_, _, err = run(t, runCompile, "missing-domain.yaml", onoffProblem)
	assert.Error(t, err)
}

func TestCompile_Cache(t *testing.T) {
	resetFlags(t)
	cachePath = filepath.Join(t.TempDir(), "cache.db")

	first, errOut, err := run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Contains(t, errOut, "compiled")

	second, errOut, err := run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Contains(t, errOut, "cached")
	assert.Equal(t, first, second)

	goalText = "⊤"
	third, errOut, err := run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Contains(t, errOut, "compiled")
	assert.Contains(t, third, "goal(verum).")

	goalText = ""
	_, _, err = run(t, runCompile, onoffDomain, mismatchProbl)
	require.Error(t, err)

	out, _, err := run(t, runHistory)
	require.NoError(t, err)
	assert.Contains(t, out, "program cache")
	assert.Contains(t, out, "cached")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "onoff-p01.yaml")

	historyPrune = time.Nanosecond
	out, _, err = run(t, runHistory)
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 2 program(s)")
	assert.Contains(t, out, "no runs recorded")
}

func TestCompile_CacheKeyTracksFormat(t *testing.T) {
	resetFlags(t)
	defer func() { cacheFormat = emit.FormatVersion }()
	cachePath = filepath.Join(t.TempDir(), "cache.db")

	key, err := cacheKey(cfg, onoffDomain, onoffProblem)
	require.NoError(t, err)

	_, errOut, err := run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Contains(t, errOut, "compiled")

	cacheFormat = emit.FormatVersion + "-next"
	next, err := cacheKey(cfg, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.NotEqual(t, key, next)

	_, errOut, err = run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Contains(t, errOut, "compiled")
	assert.NotContains(t, errOut, "cached")
}

func TestCompile_NoCache(t *testing.T) {
	resetFlags(t)
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	noCache = true

	_, _, err := run(t, runCompile, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.NoFileExists(t, cfg.Cache.Path)

	_, _, err = run(t, runHistory)
	assert.ErrorContains(t, err, "no program cache")
}

func TestInspect_Report(t *testing.T) {
	resetFlags(t)

	out, _, err := run(t, runInspect, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Contains(t, out, "onoff/p01")
	assert.Contains(t, out, "touched (2)")
	assert.Contains(t, out, "static_variable (0)")
	assert.Contains(t, out, "V=on_la_r X=false")
}

func TestInspect_ReportJSON(t *testing.T) {
	resetFlags(t)
	inspectJSON = true

	out, _, err := run(t, runInspect, acroDomain, acroProblem)
	require.NoError(t, err)

	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"walk_hon_hbeam_lp0_cp1_r"}, got["nondeterministic"])
	assert.Equal(t, []string{"broken_hleg", "position", "up"}, got["touched"])
	assert.Empty(t, got["unreachable_value"])
}

func TestInspect_Query(t *testing.T) {
	resetFlags(t)
	inspectQuery = "touched(V)"

	out, _, err := run(t, runInspect, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Equal(t, "V=on_la_r\nV=on_lb_r\n", out)

	inspectQuery = "unknown_relation(V)"
	_, _, err = run(t, runInspect, onoffDomain, onoffProblem)
	assert.Error(t, err)
}

func TestInspect_Explain(t *testing.T) {
	resetFlags(t)
	inspectExplain = "touched(V)"

	out, _, err := run(t, runInspect, onoffDomain, onoffProblem)
	require.NoError(t, err)
	assert.Contains(t, out, "Query: touched(V)")
	assert.Contains(t, out, "[IDB:touches]")
	assert.Contains(t, out, "[EDB]")

	inspectJSON = true
	out, _, err = run(t, runInspect, onoffDomain, onoffProblem)
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "touched(V)", got["query"])
}

func TestInspect_Rules(t *testing.T) {
	resetFlags(t)
	rules := filepath.Join(t.TempDir(), "extra.mg")
	require.NoError(t, os.WriteFile(rules, []byte(
		"Decl multi_touch(A) descr [mode(\"-\")].\nmulti_touch(A) :- nondeterministic(A).\n"), 0644))
	inspectRules = rules
	inspectQuery = "multi_touch(A)"

	out, _, err := run(t, runInspect, acroDomain, acroProblem)
	require.NoError(t, err)
	assert.Equal(t, "A=walk_hon_hbeam_lp0_cp1_r\n", out)

	require.NoError(t, os.WriteFile(rules, []byte("action(X) :- touched(X).\n"), 0644))
	_, _, err = run(t, runInspect, acroDomain, acroProblem)
	assert.ErrorContains(t, err, "protected")
}

func TestFormula(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		nnf      bool
		simplify bool
		facts    bool
		want     string
	}{
		{name: "print", in: "a&b", want: "(a∧b)"},
		{name: "nnf", in: "!(a&b)", nnf: true, want: "(¬a∨¬b)"},
		{name: "simplify", in: "a&⊤", simplify: true, want: "a"},
		{name: "facts", in: "(c&(e|d))&(!b)", facts: true, want: "conj(conj(c,disj(e,d)),has_value(b,false))"},
		{name: "nnf facts", in: "!(a&b)", nnf: true, facts: true, want: "disj(has_value(a,false),has_value(b,false))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			formulaNNF, formulaSimplify, formulaFacts = tt.nnf, tt.simplify, tt.facts

			out, _, err := run(t, runFormula, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestConfigInitAndShow(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "spgt.yaml")

	out, _, err := run(t, runConfigInit, path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)

	_, _, err = run(t, runConfigInit, path)
	assert.ErrorContains(t, err, "already exists")

	forceInit = true
	_, _, err = run(t, runConfigInit, path)
	assert.NoError(t, err)

	out, _, err = run(t, runConfigShow)
	require.NoError(t, err)
	assert.Contains(t, out, "compact_unary: true")
}

func TestSetup(t *testing.T) {
	resetFlags(t)
	t.Setenv("SPGT_LOG_LEVEL", "")
	dir := t.TempDir()
	configPath = filepath.Join(dir, "spgt.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: warn\n  format: json\n"), 0644))
	verbose = true
	defer func() { verbose = false }()

	require.NoError(t, setup(&cobra.Command{}, nil))
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotNil(t, logger)

	verbose = false
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: loud\n"), 0644))
	assert.ErrorContains(t, setup(&cobra.Command{}, nil), "invalid log level")
}
