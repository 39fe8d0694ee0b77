// Package grounding compiles a lifted planning domain and problem into
// multi-valued state variables, initial values and fully instantiated
// actions. Predicates no action changes are folded into constants, and
// unary predicates that always hold for exactly one object are collapsed
// into a single variable over that object's type.
package grounding

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"spgt/internal/domain"
	"spgt/internal/logic"
	"spgt/internal/pddl"
)

// Translator holds the lifted input and the grounded result. It is built
// once per domain/problem pair and read-only after Ground, except for
// SetGoal.
type Translator struct {
	domain  *pddl.Domain
	problem *pddl.Problem
	opts    options

	typeNames []string
	objects   []pddl.Object

	// initial holds the initially true tuples per predicate, in problem
	// order without duplicates; initialSet indexes them by tupleKey.
	initial    map[string][][]string
	initialSet map[string]map[string]bool

	unchanging map[string]bool
	unary      map[string]logic.Variable

	grounded      bool
	variables     map[string]logic.Variable
	initialValues map[string]domain.Literal
	actions       []*domain.GroundedAction
	goal          logic.Formula
}

// New validates that problem belongs to d and computes the invariants the
// grounding relies on. No grounding happens until Ground.
func New(d *pddl.Domain, problem *pddl.Problem, opts ...Option) (*Translator, error) {
	if d == nil || problem == nil {
		return nil, fmt.Errorf("domain and problem are required")
	}
	if problem.DomainName != d.Name {
		return nil, fmt.Errorf("%w: problem %s expects %q, got %q",
			ErrDomainMismatch, problem.Name, problem.DomainName, d.Name)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	t := &Translator{
		domain:        d,
		problem:       problem,
		opts:          o,
		typeNames:     sortedKeys(d.Types),
		initial:       make(map[string][][]string),
		initialSet:    make(map[string]map[string]bool),
		variables:     make(map[string]logic.Variable),
		initialValues: make(map[string]domain.Literal),
	}

	seen := make(map[string]bool)
	for _, obj := range append(append([]pddl.Object(nil), d.Constants...), problem.Objects...) {
		if seen[obj.Name] {
			continue
		}
		seen[obj.Name] = true
		if len(obj.Types) == 0 {
			obj.Types = []string{pddl.RootType}
		}
		t.objects = append(t.objects, obj)
	}

	for _, atom := range problem.Init {
		if atom.Negated {
			continue
		}
		key := tupleKey(atom.Args)
		set, ok := t.initialSet[atom.Predicate]
		if !ok {
			set = make(map[string]bool)
			t.initialSet[atom.Predicate] = set
		}
		if set[key] {
			continue
		}
		set[key] = true
		t.initial[atom.Predicate] = append(t.initial[atom.Predicate], atom.Args)
	}

	t.unchanging = computeUnchanging(d)
	t.unary = make(map[string]logic.Variable)
	if o.compactUnary {
		t.unary = t.computeUnary()
	}

	o.log.Debugf("domain %s: unchanging predicates %v", d.Name, sortedKeys(t.unchanging))
	o.log.Debugf("domain %s: compacted predicates %v", d.Name, sortedKeys(t.unary))
	return t, nil
}

// Ground builds the variables, initial values, grounded actions and goal.
// Lifted actions are instantiated concurrently and merged in declaration
// order. Calling Ground again is a no-op.
func (t *Translator) Ground(ctx context.Context) error {
	if t.grounded {
		return nil
	}

	for _, p := range t.domain.Predicates {
		if err := t.groundPredicate(p); err != nil {
			return err
		}
	}

	results := make([][]*domain.GroundedAction, len(t.domain.Actions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.workers)
	for i, a := range t.domain.Actions {
		g.Go(func() error {
			actions, err := t.instantiate(gctx, a)
			if err != nil {
				return err
			}
			results[i] = actions
			t.opts.log.Debugf("action %s: %d instances", a.Name, len(actions))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, r := range results {
		t.actions = append(t.actions, r...)
	}

	goal, err := t.convert(t.problem.Goal, binding{})
	if err != nil {
		return fmt.Errorf("goal: %w", err)
	}
	t.goal = logic.SimplifyConstants(goal)

	t.grounded = true
	t.opts.log.Infof("grounded %s/%s: %d variables, %d actions, %d effects",
		t.domain.Name, t.problem.Name, len(t.variables), len(t.actions), len(t.Effects()))
	return nil
}

// groundPredicate adds the variables of a changing predicate: one
// multi-valued variable for a compacted predicate, otherwise one binary
// variable per well-typed argument tuple.
func (t *Translator) groundPredicate(p pddl.Predicate) error {
	if t.unchanging[p.Name] {
		return nil
	}

	if v, ok := t.unary[p.Name]; ok {
		value := t.initial[p.Name][0][0]
		if !v.Contains(value) {
			return &DomainError{Variable: v.Name, Value: value, Domain: v.Domain}
		}
		t.addVariable(v, value)
		return nil
	}

	tuples := [][]string{{}}
	for _, param := range p.Params {
		var next [][]string
		for _, tuple := range tuples {
			for _, obj := range t.objectsOfTerm(param) {
				next = append(next, append(append([]string(nil), tuple...), obj))
			}
		}
		tuples = next
	}
	for _, tuple := range tuples {
		value := logic.FalseValue
		if t.initiallyTrue(p.Name, tuple) {
			value = logic.TrueValue
		}
		t.addVariable(logic.BinaryVariable(atomName(p.Name, tuple)), value)
	}
	return nil
}

func (t *Translator) addVariable(v logic.Variable, initial string) {
	t.variables[v.Key()] = v
	l := domain.Literal{Variable: v, Value: initial}
	t.initialValues[v.Key()] = l
}

func (t *Translator) initiallyTrue(pred string, args []string) bool {
	return t.initialSet[pred][tupleKey(args)]
}

// SetGoal replaces the compiled goal with the parsed text. The result is
// not checked against the variables.
func (t *Translator) SetGoal(text string) {
	t.goal = logic.Parse(text)
}

// Name identifies the compiled pair as "domain/problem".
func (t *Translator) Name() string {
	return t.domain.Name + "/" + t.problem.Name
}

// UnchangingPredicates returns the predicates no effect mentions, sorted.
func (t *Translator) UnchangingPredicates() []string {
	return sortedKeys(t.unchanging)
}

// CompactedVariables returns the variables standing for whole unary
// predicates, sorted by name.
func (t *Translator) CompactedVariables() []logic.Variable {
	out := make([]logic.Variable, 0, len(t.unary))
	for _, name := range sortedKeys(t.unary) {
		out = append(out, t.unary[name])
	}
	return out
}

// Variables returns every state variable, sorted by name.
func (t *Translator) Variables() []logic.Variable {
	out := make([]logic.Variable, 0, len(t.variables))
	for _, key := range sortedKeys(t.variables) {
		out = append(out, t.variables[key])
	}
	return out
}

// InitialValues returns one literal per variable, sorted by variable name.
func (t *Translator) InitialValues() []domain.Literal {
	out := make([]domain.Literal, 0, len(t.initialValues))
	for _, key := range sortedKeys(t.initialValues) {
		out = append(out, t.initialValues[key])
	}
	return out
}

// Actions returns the grounded actions in lifted declaration order, then
// binding order.
func (t *Translator) Actions() []*domain.GroundedAction {
	return append([]*domain.GroundedAction(nil), t.actions...)
}

// Effects returns the effects of all grounded actions, sorted by name.
func (t *Translator) Effects() []*domain.GroundedEffect {
	var out []*domain.GroundedEffect
	for _, a := range t.actions {
		out = append(out, a.Effects...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Goal returns the compiled goal, or nil before Ground.
func (t *Translator) Goal() logic.Formula {
	return t.goal
}
