package grounding

import (
	"sort"

	"spgt/internal/logic"
	"spgt/internal/pddl"
)

// computeUnchanging collects the declared predicates that no action effect
// mentions. The branches of a one-of effect count as one effect.
func computeUnchanging(d *pddl.Domain) map[string]bool {
	inEffects := make(map[string]bool)
	for _, a := range d.Actions {
		for _, name := range pddl.PredicatesIn(a.Effect) {
			inEffects[name] = true
		}
	}
	out := make(map[string]bool)
	for _, p := range d.Predicates {
		if !inEffects[p.Name] {
			out[p.Name] = true
		}
	}
	return out
}

// computeUnary selects the changing unary predicates that behave as a
// single-valued function: exactly one instance holds initially and every
// effect outcome touching the predicate moves it from one argument to a
// syntactically different one.
func (t *Translator) computeUnary() map[string]logic.Variable {
	out := make(map[string]logic.Variable)
	for _, p := range t.domain.Predicates {
		if p.Arity() != 1 || t.unchanging[p.Name] {
			continue
		}
		if len(t.initial[p.Name]) != 1 {
			continue
		}
		if !t.functional(p.Name) {
			continue
		}
		out[p.Name] = logic.NewVariable(p.Name, t.objectsOfTerm(p.Params[0])...)
	}
	return out
}

func (t *Translator) functional(name string) bool {
	for _, a := range t.domain.Actions {
		outcomes, err := pddl.Outcomes(a.Effect)
		if err != nil {
			return false
		}
		for _, o := range outcomes {
			pos := literalsNamed(pddl.PositiveLiterals(o), name)
			neg := literalsNamed(pddl.NegativeLiterals(o), name)
			if mentions(o, name) != len(pos)+len(neg) {
				return false
			}
			if len(pos) == 0 && len(neg) == 0 {
				continue
			}
			if len(pos) != 1 || len(neg) != 1 {
				return false
			}
			if pos[0].Terms[0].String() == neg[0].Terms[0].String() {
				return false
			}
		}
	}
	return true
}

func literalsNamed(ps []pddl.Pred, name string) []pddl.Pred {
	var out []pddl.Pred
	for _, p := range ps {
		if p.Name == name && len(p.Terms) == 1 {
			out = append(out, p)
		}
	}
	return out
}

// mentions counts the occurrences of predicate name in f.
func mentions(f pddl.Formula, name string) int {
	switch f := f.(type) {
	case pddl.Pred:
		if f.Name == name {
			return 1
		}
	case pddl.Not:
		return mentions(f.Arg, name)
	case pddl.And:
		return mentionsAll(f, name)
	case pddl.Or:
		return mentionsAll(f, name)
	case pddl.OneOf:
		return mentionsAll(f, name)
	case pddl.Imply:
		return mentions(f.If, name) + mentions(f.Then, name)
	}
	return 0
}

func mentionsAll(fs []pddl.Formula, name string) int {
	n := 0
	for _, f := range fs {
		n += mentions(f, name)
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
