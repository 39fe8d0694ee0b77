package grounding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spgt/internal/domain"
	"spgt/internal/logic"
	"spgt/internal/pddl"
)

// ParameterPossibilities enumerates the bindings under which action a is
// worth instantiating. Top-level literals over unchanging predicates decide it:
// positive ones ("requirements") bind their parameters to initially true
// tuples, negative ones ("prohibitions") exclude bindings containing an
// initially true tuple. Parameters no requirement binds range over the
// objects of their type. Equality literals filter the result.
func (t *Translator) ParameterPossibilities(a pddl.Action) ([]map[string]string, error) {
	var requirements, prohibitions, equal, distinct []pddl.Pred
	for _, p := range pddl.PositiveLiterals(a.Precondition) {
		switch {
		case p.Name == pddl.EqualityPredicate:
			equal = append(equal, p)
		case t.unchanging[p.Name]:
			requirements = append(requirements, p)
		}
	}
	for _, p := range pddl.NegativeLiterals(a.Precondition) {
		switch {
		case p.Name == pddl.EqualityPredicate:
			distinct = append(distinct, p)
		case t.unchanging[p.Name]:
			prohibitions = append(prohibitions, p)
		}
	}

	allowed := make(map[string]map[string]bool, len(a.Parameters))
	for _, param := range a.Parameters {
		set := make(map[string]bool)
		for _, obj := range t.objectsOfTerm(param) {
			set[obj] = true
		}
		allowed[param.Name] = set
	}

	bound := make(map[string]bool)
	for _, r := range requirements {
		for _, term := range r.Terms {
			if v, ok := term.(pddl.Var); ok {
				bound[string(v)] = true
			}
		}
	}

	bindings := []binding{{}}
	for _, param := range a.Parameters {
		if bound[param.Name] {
			continue
		}
		var next []binding
		for _, b := range bindings {
			for _, obj := range t.objectsOfTerm(param) {
				next = append(next, b.with(param.Name, obj))
			}
		}
		bindings = next
	}

	for _, r := range requirements {
		var next []binding
		for _, b := range bindings {
			for _, cand := range t.candidates(r) {
				if merged, ok := b.merge(cand); ok {
					next = append(next, merged)
				}
			}
		}
		bindings = next
	}

	var prohibited []binding
	for _, p := range prohibitions {
		prohibited = append(prohibited, t.candidates(p)...)
	}

	var out []map[string]string
	for _, b := range bindings {
		if !b.complete(a.Parameters) || !b.welltyped(allowed) {
			continue
		}
		if b.containsAny(prohibited) {
			continue
		}
		ok, err := b.satisfiesEquality(equal, distinct)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", a.Name, err)
		}
		if ok {
			out = append(out, map[string]string(b))
		}
	}
	return out, nil
}

// candidates zips each initially true tuple of p against its terms.
// Tuples clashing with a constant term or a repeated variable are skipped.
func (t *Translator) candidates(p pddl.Pred) []binding {
	var out []binding
	for _, tuple := range t.initial[p.Name] {
		if len(tuple) != len(p.Terms) {
			continue
		}
		b := binding{}
		ok := true
		for i, term := range p.Terms {
			switch term := term.(type) {
			case pddl.Constant:
				ok = string(term) == tuple[i]
			case pddl.Var:
				if prev, seen := b[string(term)]; seen && prev != tuple[i] {
					ok = false
				}
				b[string(term)] = tuple[i]
			}
			if !ok {
				break
			}
		}
		if ok {
			out = append(out, b)
		}
	}
	return out
}

func (b binding) with(name, obj string) binding {
	out := make(binding, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	out[name] = obj
	return out
}

// merge joins two bindings, failing if they disagree on a parameter.
func (b binding) merge(other binding) (binding, bool) {
	out := make(binding, len(b)+len(other))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range other {
		if prev, ok := out[k]; ok && prev != v {
			return nil, false
		}
		out[k] = v
	}
	return out, true
}

func (b binding) complete(params []pddl.TypedTerm) bool {
	for _, p := range params {
		if _, ok := b[p.Name]; !ok {
			return false
		}
	}
	return true
}

func (b binding) welltyped(allowed map[string]map[string]bool) bool {
	for name, obj := range b {
		if set, ok := allowed[name]; ok && !set[obj] {
			return false
		}
	}
	return true
}

// containsAny reports whether some prohibited tuple is a subset of b.
func (b binding) containsAny(prohibited []binding) bool {
	for _, p := range prohibited {
		subset := true
		for k, v := range p {
			if b[k] != v {
				subset = false
				break
			}
		}
		if subset {
			return true
		}
	}
	return false
}

func (b binding) satisfiesEquality(equal, distinct []pddl.Pred) (bool, error) {
	for _, group := range []struct {
		preds []pddl.Pred
		want  bool
	}{{equal, true}, {distinct, false}} {
		for _, p := range group.preds {
			args, err := b.resolve(p.Terms)
			if err != nil {
				return false, err
			}
			if len(args) != 2 {
				return false, fmt.Errorf("%s: equality takes two arguments", p)
			}
			if (args[0] == args[1]) != group.want {
				return false, nil
			}
		}
	}
	return true, nil
}

// actionName renders the grounded action identity: the lifted name and
// the bound objects ordered by parameter name.
func actionName(name string, b map[string]string) string {
	params := sortedKeys(b)
	if len(params) == 0 {
		return name
	}
	args := make([]string, len(params))
	for i, p := range params {
		args[i] = b[p]
	}
	return name + "(" + strings.Join(args, ",") + ")"
}

// instantiate grounds one lifted action under every binding. Each effect
// outcome becomes its own named effect, numbered in branch order.
func (t *Translator) instantiate(ctx context.Context, a pddl.Action) ([]*domain.GroundedAction, error) {
	outcomes, err := pddl.Outcomes(a.Effect)
	if errors.Is(err, pddl.ErrNestedOneOf) {
		return nil, &logic.UnsupportedError{Op: "ground " + a.Name, Construct: "nested oneof"}
	}
	if err != nil {
		return nil, err
	}

	bindings, err := t.ParameterPossibilities(a)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.GroundedAction, 0, len(bindings))
	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := actionName(a.Name, b)
		pre, err := t.convert(a.Precondition, b)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", name, err)
		}
		pre = logic.SimplifyConstants(pre)
		if _, ok := pre.(logic.Falsum); ok {
			return nil, &ConsistencyError{Action: name}
		}

		action := &domain.GroundedAction{Name: name, Precondition: pre}
		for i, o := range outcomes {
			f, err := t.convert(o, b)
			if err != nil {
				return nil, fmt.Errorf("action %s: %w", name, err)
			}
			effect, err := domain.EffectFromFormula(fmt.Sprintf("%s_effect_%d", name, i), f)
			if err != nil {
				return nil, err
			}
			action.Effects = append(action.Effects, effect)
		}
		out = append(out, action)
	}
	return out, nil
}
