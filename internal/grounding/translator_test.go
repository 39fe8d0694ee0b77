package grounding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"spgt/internal/domain"
	"spgt/internal/logic"
	"spgt/internal/pddl"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const fixtures = "../pddl/testdata/"

func load(t *testing.T, domainFile, problemFile string, opts ...Option) *Translator {
	t.Helper()
	d, err := pddl.LoadDomain(fixtures + domainFile)
	require.NoError(t, err)
	p, err := pddl.LoadProblem(fixtures + problemFile)
	require.NoError(t, err)
	tr, err := New(d, p, opts...)
	require.NoError(t, err)
	return tr
}

func decode(t *testing.T, domainDoc, problemDoc string, opts ...Option) *Translator {
	t.Helper()
	d, err := pddl.DecodeDomain(strings.NewReader(domainDoc))
	require.NoError(t, err)
	p, err := pddl.DecodeProblem(strings.NewReader(problemDoc))
	require.NoError(t, err)
	tr, err := New(d, p, opts...)
	require.NoError(t, err)
	return tr
}

func acrobatics(t *testing.T, opts ...Option) *Translator {
	return load(t, "acrobatics-domain.yaml", "acrobatics-p01.yaml", opts...)
}

func action(t *testing.T, tr *Translator, name string) pddl.Action {
	t.Helper()
	for _, a := range tr.domain.Actions {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("no action %s", name)
	return pddl.Action{}
}

func names[T any](items []T, name func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = name(it)
	}
	return out
}

func actionNames(actions []*domain.GroundedAction) []string {
	return names(actions, func(a *domain.GroundedAction) string { return a.Name })
}

func TestUnchangingPredicates(t *testing.T) {
	tr := acrobatics(t)
	assert.Equal(t, []string{"ladder-at", "next-bwd", "next-fwd"}, tr.UnchangingPredicates())
}

func TestParameterPossibilities(t *testing.T) {
	tr := acrobatics(t)

	tests := []struct {
		action string
		want   []map[string]string
	}{
		{"walk-on-beam", []map[string]string{{"from": "p0", "to": "p1"}}},
		{"walk-left", []map[string]string{{"from": "p1", "to": "p0"}}},
		{"walk-right", []map[string]string{{"from": "p0", "to": "p1"}}},
		{"climb", []map[string]string{{"p": "p0"}}},
		{"climb-down", []map[string]string{{}}},
		{"jump-over", nil},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got, err := tr.ParameterPossibilities(action(t, tr, tt.action))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("bindings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnaryCompaction(t *testing.T) {
	tr := acrobatics(t)
	require.NoError(t, tr.Ground(context.Background()))

	assert.Equal(t, []logic.Variable{logic.NewVariable("position", "p0", "p1")}, tr.CompactedVariables())
	assert.Equal(t, []logic.Variable{
		logic.BinaryVariable("broken-leg"),
		logic.NewVariable("position", "p0", "p1"),
		logic.BinaryVariable("up"),
	}, tr.Variables())

	initial := names(tr.InitialValues(), func(l domain.Literal) string { return l.String() })
	assert.Equal(t, []string{"broken-leg=false", "position=p0", "up=false"}, initial)
}

func TestSelfMoveOnCompactedVariable(t *testing.T) {
	tr := decode(t, `
domain: moves
types: loc
predicates:
  - name: at
    params: "?p - loc"
  - name: adj
    params: "?a ?b - loc"
actions:
  - name: move
    parameters: "?from ?to - loc"
    precondition:
      - at ?from
      - adj ?from ?to
    effect:
      - not: at ?from
      - at ?to
`, `
problem: p
domain: moves
objects: p0 p1 - loc
init:
  - at p0
  - adj p0 p0
  - adj p0 p1
goal: at p1
`)
	require.NoError(t, tr.Ground(context.Background()))
	assert.Equal(t, []logic.Variable{logic.NewVariable("at", "p0", "p1")}, tr.CompactedVariables())

	effects := names(tr.Effects(), func(e *domain.GroundedEffect) string { return e.String() })
	assert.Contains(t, effects, "Effect(move(p0,p0)_effect_0, adds(at=p0), deletes())")
	assert.Contains(t, effects, "Effect(move(p0,p1)_effect_0, adds(at=p1), deletes(at=p0))")
}

func TestUnaryCompactionDisabled(t *testing.T) {
	tr := acrobatics(t, WithUnaryCompaction(false))
	require.NoError(t, tr.Ground(context.Background()))

	assert.Empty(t, tr.CompactedVariables())
	initial := names(tr.InitialValues(), func(l domain.Literal) string { return l.String() })
	assert.Equal(t, []string{
		"broken-leg=false",
		"position(p0)=true",
		"position(p1)=false",
		"up=false",
	}, initial)
}

func TestGroundAcrobatics(t *testing.T) {
	tr := acrobatics(t)
	require.NoError(t, tr.Ground(context.Background()))

	assert.Equal(t, []string{
		"walk-on-beam(p0,p1)",
		"walk-left(p1,p0)",
		"walk-right(p0,p1)",
		"climb(p0)",
		"climb-down",
	}, actionNames(tr.Actions()))

	beam := tr.Actions()[0]
	assert.True(t, beam.Nondeterministic())
	assert.Equal(t,
		"conj(neg(has_value(broken_hleg,true)),has_value(up,true),has_value(position,p0))",
		beam.Precondition.FactLanguage())
	require.Len(t, beam.Effects, 2)
	assert.Equal(t,
		"Effect(walk-on-beam(p0,p1)_effect_0, adds(position=p1), deletes(position=p0))",
		beam.Effects[0].String())
	assert.Equal(t,
		"Effect(walk-on-beam(p0,p1)_effect_1, adds(broken-leg=true,up=false), deletes(broken-leg=false,up=true))",
		beam.Effects[1].String())

	assert.Len(t, tr.Effects(), 6)
	assert.Equal(t, "has_value(position,p1)", tr.Goal().FactLanguage())
}

func TestGroundIsIdempotent(t *testing.T) {
	tr := acrobatics(t)
	require.NoError(t, tr.Ground(context.Background()))
	require.NoError(t, tr.Ground(context.Background()))
	assert.Len(t, tr.Actions(), 5)
}

func TestGroundOnOff(t *testing.T) {
	tr := load(t, "onoff-domain.yaml", "onoff-p01.yaml")
	require.NoError(t, tr.Ground(context.Background()))

	assert.Equal(t, []string{"off"}, tr.UnchangingPredicates())
	assert.Empty(t, tr.CompactedVariables(), "toggle only ever adds on")

	vars := tr.Variables()
	require.Len(t, vars, 2)
	for _, v := range vars {
		assert.True(t, v.IsBinary(), v.Name)
	}
	assert.Equal(t, []string{"on(a)", "on(b)"}, names(vars, func(v logic.Variable) string { return v.Name }))

	var trueValues []string
	for _, l := range tr.InitialValues() {
		if l.Value == logic.TrueValue {
			trueValues = append(trueValues, l.Variable.Name)
		}
	}
	assert.Equal(t, []string{"on(a)"}, trueValues)

	assert.Equal(t, []string{"toggle(a)", "toggle(b)"}, actionNames(tr.Actions()))

	var facts []string
	for _, f := range tr.Effects()[0].Facts() {
		facts = append(facts, f.String())
	}
	assert.ElementsMatch(t, []string{
		"add(toggle_la_r_ueffect_u0,on_la_r,true).",
		"del(toggle_la_r_ueffect_u0,on_la_r,false).",
	}, facts)

	assert.Equal(t, "conj(has_value(on_la_r,true),has_value(on_lb_r,true))", tr.Goal().FactLanguage())
}

func TestSetGoal(t *testing.T) {
	tr := acrobatics(t)
	require.NoError(t, tr.Ground(context.Background()))

	tr.SetGoal("(up=true)&(position=p0)")
	assert.Equal(t, "((up=true)∧(position=p0))", tr.Goal().String())

	// No validation against the variables.
	tr.SetGoal("(ghost=boo)")
	assert.Equal(t, "has_value(ghost,boo)", tr.Goal().FactLanguage())
}

func TestDomainMismatch(t *testing.T) {
	d, err := pddl.LoadDomain(fixtures + "onoff-domain.yaml")
	require.NoError(t, err)
	p, err := pddl.LoadProblem(fixtures + "mismatch-p01.yaml")
	require.NoError(t, err)

	_, err = New(d, p)
	assert.True(t, errors.Is(err, ErrDomainMismatch))
}

const moveDomain = `
domain: move
types: loc
predicates:
  - name: at
    params: "?p - loc"
  - name: adj
    params: "?a ?b - loc"
actions:
  - name: move
    parameters: "?from ?to - loc"
    precondition:
      - at ?from
      - adj ?from ?to
    effect:
      - not: at ?from
      - at ?to
`

func TestDomainViolation(t *testing.T) {
	tr := decode(t, moveDomain, `
problem: bad
domain: move
objects: p0 p1 - loc q9 - dock
init:
  - at q9
  - adj p0 p1
goal: at p1
`)
	err := tr.Ground(context.Background())
	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr), "got %v", err)
	assert.Equal(t, "at", domainErr.Variable)
	assert.Equal(t, "q9", domainErr.Value)
	assert.Equal(t, []string{"p0", "p1"}, domainErr.Domain)
}

func TestNestedOneOf(t *testing.T) {
	tr := decode(t, `
domain: coin
predicates:
  - name: heads
  - name: lost
actions:
  - name: flip
    effect:
      oneof:
        - heads
        - oneof:
            - lost
            - not: heads
`, `
problem: p
domain: coin
goal: heads
`)
	err := tr.Ground(context.Background())
	var unsupported *logic.UnsupportedError
	require.True(t, errors.As(err, &unsupported), "got %v", err)
	assert.Equal(t, "nested oneof", unsupported.Construct)
}

const linkDomain = `
domain: links
predicates:
  - name: linked
    params: "?a ?b"
  - name: blocked
    params: "?a"
actions:
  - name: connect
    parameters: "?a ?b"
    precondition:
      - not: = ?a ?b
      - not: blocked ?a
    effect: linked ?a ?b
  - name: twin
    parameters: "?a ?b"
    precondition:
      - = ?a ?b
    effect: linked ?a ?b
`

func TestEqualityAndProhibitions(t *testing.T) {
	tr := decode(t, linkDomain, `
problem: p
domain: links
objects: x y z
init:
  - blocked z
goal: linked x y
`)

	got, err := tr.ParameterPossibilities(action(t, tr, "connect"))
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{
		{"a": "x", "b": "y"},
		{"a": "x", "b": "z"},
		{"a": "y", "b": "x"},
		{"a": "y", "b": "z"},
	}, got)

	got, err = tr.ParameterPossibilities(action(t, tr, "twin"))
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"a": "x", "b": "x"}, {"a": "y", "b": "y"}, {"a": "z", "b": "z"}}, got)
}

func TestConsistencyError(t *testing.T) {
	// A disjunction hides the unchanging literal from the binding filter.
	tr := decode(t, `
domain: hidden
predicates:
  - name: ok
    params: "?a"
  - name: done
actions:
  - name: finish
    parameters: "?a"
    precondition:
      or:
        - ok ?a
    effect: done
`, `
problem: p
domain: hidden
objects: x y
init:
  - ok x
goal: done
`)
	err := tr.Ground(context.Background())
	var consistency *ConsistencyError
	require.True(t, errors.As(err, &consistency), "got %v", err)
	assert.Equal(t, "finish(y)", consistency.Action)
}

func TestObjectsOfType(t *testing.T) {
	tr := decode(t, `
domain: fleet
types: vehicle place - object car truck - vehicle
constants: depot - place
`, `
problem: p
domain: fleet
objects: c1 - car t1 - truck x
goal: true
`)

	assert.Equal(t, []string{"c1", "t1"}, tr.ObjectsOfType("vehicle"))
	assert.Equal(t, []string{"c1"}, tr.ObjectsOfType("car"))
	assert.Equal(t, []string{"depot"}, tr.ObjectsOfType("place"))
	assert.Equal(t, []string{"depot", "c1", "t1", "x"}, tr.ObjectsOfType(pddl.RootType))
}

func TestWorkersDoNotChangeOutput(t *testing.T) {
	serial := acrobatics(t, WithWorkers(1))
	require.NoError(t, serial.Ground(context.Background()))
	parallel := acrobatics(t, WithWorkers(8))
	require.NoError(t, parallel.Ground(context.Background()))

	if diff := cmp.Diff(actionNames(serial.Actions()), actionNames(parallel.Actions())); diff != "" {
		t.Errorf("action order depends on workers (-serial +parallel):\n%s", diff)
	}
	effectNames := func(tr *Translator) []string {
		return names(tr.Effects(), func(e *domain.GroundedEffect) string { return e.String() })
	}
	assert.Equal(t, effectNames(serial), effectNames(parallel))
}

func TestGroundCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := acrobatics(t).Ground(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
