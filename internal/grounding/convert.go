package grounding

import (
	"fmt"
	"strings"

	"spgt/internal/logic"
	"spgt/internal/pddl"
)

// binding maps parameter names (without '?') to object names.
type binding map[string]string

// atomName renders a ground predicate instance, e.g. "at(p0,p1)". Nullary
// predicates keep their bare name.
func atomName(pred string, args []string) string {
	if len(args) == 0 {
		return pred
	}
	return pred + "(" + strings.Join(args, ",") + ")"
}

func tupleKey(args []string) string {
	return strings.Join(args, "\x00")
}

func (b binding) resolve(terms []pddl.Term) ([]string, error) {
	args := make([]string, len(terms))
	for i, term := range terms {
		switch term := term.(type) {
		case pddl.Constant:
			args[i] = string(term)
		case pddl.Var:
			obj, ok := b[string(term)]
			if !ok {
				return nil, fmt.Errorf("unbound parameter %s", term)
			}
			args[i] = obj
		default:
			return nil, logic.Unsupported("resolve", term)
		}
	}
	return args, nil
}

// convert substitutes b into a lifted formula. Unchanging predicates and
// equality resolve to constants, compacted predicates to assignments of
// their multi-valued variable and every other predicate to its binary
// variable being true.
func (t *Translator) convert(f pddl.Formula, b binding) (logic.Formula, error) {
	switch f := f.(type) {
	case pddl.Truth:
		if f {
			return logic.Verum{}, nil
		}
		return logic.Falsum{}, nil
	case pddl.Pred:
		return t.convertPred(f, b)
	case pddl.Not:
		arg, err := t.convert(f.Arg, b)
		if err != nil {
			return nil, err
		}
		return logic.Neg{Arg: arg}, nil
	case pddl.And:
		args, err := t.convertAll(f, b)
		if err != nil {
			return nil, err
		}
		if len(args) == 1 {
			return args[0], nil
		}
		return logic.Conj(args), nil
	case pddl.Or:
		args, err := t.convertAll(f, b)
		if err != nil {
			return nil, err
		}
		if len(args) == 1 {
			return args[0], nil
		}
		return logic.Disj(args), nil
	case pddl.Imply:
		cond, err := t.convert(f.If, b)
		if err != nil {
			return nil, err
		}
		then, err := t.convert(f.Then, b)
		if err != nil {
			return nil, err
		}
		return logic.Disj{logic.Neg{Arg: cond}, then}, nil
	case nil:
		return logic.Verum{}, nil
	}
	return nil, logic.Unsupported("convert", f)
}

func (t *Translator) convertAll(fs []pddl.Formula, b binding) ([]logic.Formula, error) {
	out := make([]logic.Formula, len(fs))
	for i, f := range fs {
		c, err := t.convert(f, b)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (t *Translator) convertPred(p pddl.Pred, b binding) (logic.Formula, error) {
	args, err := b.resolve(p.Terms)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	if p.Name == pddl.EqualityPredicate {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: equality takes two arguments", p)
		}
		return constant(args[0] == args[1]), nil
	}
	if t.unchanging[p.Name] {
		return constant(t.initiallyTrue(p.Name, args)), nil
	}
	if v, ok := t.unary[p.Name]; ok {
		if !v.Contains(args[0]) {
			return nil, &DomainError{Variable: v.Name, Value: args[0], Domain: v.Domain}
		}
		return v.Is(args[0]), nil
	}
	if _, ok := t.domain.Predicate(p.Name); !ok {
		return nil, fmt.Errorf("undeclared predicate %s", p.Name)
	}
	return logic.BinaryVariable(atomName(p.Name, args)).Is(logic.TrueValue), nil
}

func constant(v bool) logic.Formula {
	if v {
		return logic.Verum{}
	}
	return logic.Falsum{}
}
