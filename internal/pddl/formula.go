package pddl

import (
	"errors"
	"strings"
)

// EqualityPredicate is the built-in binary predicate comparing two terms.
const EqualityPredicate = "="

// ErrNestedOneOf is returned when a non-deterministic choice appears
// anywhere but the root of an effect.
var ErrNestedOneOf = errors.New("nested oneof is not supported")

// Term is an argument of a lifted predicate.
type Term interface {
	String() string
	term()
}

// Constant names an object.
type Constant string

// Var names an action parameter, without the leading '?'.
type Var string

func (c Constant) String() string { return string(c) }
func (v Var) String() string      { return "?" + string(v) }

func (Constant) term() {}
func (Var) term()      {}

// ParseTerm reads "?x" as a variable and anything else as a constant.
func ParseTerm(s string) Term {
	if name, ok := strings.CutPrefix(s, "?"); ok {
		return Var(name)
	}
	return Constant(s)
}

// Formula is a lifted formula.
type Formula interface {
	String() string
	lifted()
}

// Pred applies a predicate to terms.
type Pred struct {
	Name  string
	Terms []Term
}

// Not negates a formula.
type Not struct{ Arg Formula }

// And is an n-ary conjunction.
type And []Formula

// Or is an n-ary disjunction.
type Or []Formula

// Imply is material implication.
type Imply struct{ If, Then Formula }

// OneOf is a non-deterministic choice between effect outcomes.
type OneOf []Formula

// Truth is a constant formula.
type Truth bool

func (Pred) lifted()  {}
func (Not) lifted()   {}
func (And) lifted()   {}
func (Or) lifted()    {}
func (Imply) lifted() {}
func (OneOf) lifted() {}
func (Truth) lifted() {}

func (p Pred) String() string {
	parts := []string{p.Name}
	for _, t := range p.Terms {
		parts = append(parts, t.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (n Not) String() string   { return "(not " + n.Arg.String() + ")" }
func (a And) String() string   { return joinList("and", a) }
func (o Or) String() string    { return joinList("or", o) }
func (i Imply) String() string { return "(imply " + i.If.String() + " " + i.Then.String() + ")" }
func (o OneOf) String() string { return joinList("oneof", o) }

func (t Truth) String() string {
	if t {
		return "(and)"
	}
	return "(or)"
}

func joinList(op string, fs []Formula) string {
	var b strings.Builder
	b.WriteString("(" + op)
	for _, f := range fs {
		b.WriteString(" " + f.String())
	}
	b.WriteString(")")
	return b.String()
}

// PositiveLiterals returns the predicates occurring unnegated in the
// top-level conjunction of f.
func PositiveLiterals(f Formula) []Pred {
	var out []Pred
	for _, c := range conjuncts(f) {
		if p, ok := c.(Pred); ok {
			out = append(out, p)
		}
	}
	return out
}

// NegativeLiterals returns the predicates occurring directly under a
// negation in the top-level conjunction of f.
func NegativeLiterals(f Formula) []Pred {
	var out []Pred
	for _, c := range conjuncts(f) {
		if n, ok := c.(Not); ok {
			if p, ok := n.Arg.(Pred); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

func conjuncts(f Formula) []Formula {
	and, ok := f.(And)
	if !ok {
		if f == nil {
			return nil
		}
		return []Formula{f}
	}
	var out []Formula
	for _, sub := range and {
		out = append(out, conjuncts(sub)...)
	}
	return out
}

// PredicatesIn returns the names of every predicate mentioned anywhere in
// f, in order of first occurrence.
func PredicatesIn(f Formula) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Formula)
	walk = func(f Formula) {
		switch f := f.(type) {
		case Pred:
			if !seen[f.Name] {
				seen[f.Name] = true
				out = append(out, f.Name)
			}
		case Not:
			walk(f.Arg)
		case And:
			for _, sub := range f {
				walk(sub)
			}
		case Or:
			for _, sub := range f {
				walk(sub)
			}
		case OneOf:
			for _, sub := range f {
				walk(sub)
			}
		case Imply:
			walk(f.If)
			walk(f.Then)
		}
	}
	walk(f)
	return out
}

// Outcomes splits an effect into its alternative outcomes. A deterministic
// effect has exactly one outcome. A OneOf below the root yields
// ErrNestedOneOf.
func Outcomes(effect Formula) ([]Formula, error) {
	branches := []Formula{effect}
	if oneOf, ok := effect.(OneOf); ok {
		branches = oneOf
	}
	for _, b := range branches {
		if containsOneOf(b) {
			return nil, ErrNestedOneOf
		}
	}
	return branches, nil
}

func containsOneOf(f Formula) bool {
	switch f := f.(type) {
	case OneOf:
		return true
	case Not:
		return containsOneOf(f.Arg)
	case And:
		return anyOneOf(f)
	case Or:
		return anyOneOf(f)
	case Imply:
		return containsOneOf(f.If) || containsOneOf(f.Then)
	}
	return false
}

func anyOneOf(fs []Formula) bool {
	for _, f := range fs {
		if containsOneOf(f) {
			return true
		}
	}
	return false
}
