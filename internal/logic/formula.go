// Package logic implements the propositional/temporal formula language used
// for preconditions and goals: the AST, its textual grammar, the NNF and
// constant-simplification rewrites and the fact-language rendering.
package logic

import (
	"strings"

	"spgt/internal/facts"
)

// Formula is a node of the formula tree. The set of node types is closed:
// every rewrite in this package switches over all of them.
type Formula interface {
	// String renders the node with display symbols, binary nodes fully
	// parenthesised.
	String() string
	// FactLanguage renders the node as a fact-language term.
	FactLanguage() string

	formula()
}

// Atom is a propositional atom. Its name is free text.
type Atom string

// Value is an atom naming a domain element, the right operand of Assign.
type Value string

// Verum is the constant true.
type Verum struct{}

// Falsum is the constant false.
type Falsum struct{}

// Neg is negation.
type Neg struct {
	Arg Formula
}

// Conj is n-ary conjunction.
type Conj []Formula

// Disj is n-ary disjunction.
type Disj []Formula

// Assign states that a state variable holds a value.
type Assign struct {
	Variable Variable
	Value    Value
}

// Yesterday holds if its argument held in the previous state.
type Yesterday struct {
	Arg Formula
}

// Since holds if Right held at some point and Left has held ever since.
type Since struct {
	Left, Right Formula
}

// DualSince is the dual of Since.
type DualSince struct {
	Left, Right Formula
}

func (Atom) formula()      {}
func (Value) formula()     {}
func (Verum) formula()     {}
func (Falsum) formula()    {}
func (Neg) formula()       {}
func (Conj) formula()      {}
func (Disj) formula()      {}
func (Assign) formula()    {}
func (Yesterday) formula() {}
func (Since) formula()     {}
func (DualSince) formula() {}

// Display symbols.
const (
	SymbolVerum     = "⊤"
	SymbolFalsum    = "⊥"
	SymbolNeg       = "¬"
	SymbolConj      = "∧"
	SymbolDisj      = "∨"
	SymbolAssign    = "="
	SymbolYesterday = "Y"
	SymbolSince     = "S"
	SymbolDualSince = "Z"
)

func (a Atom) String() string  { return string(a) }
func (v Value) String() string { return string(v) }
func (Verum) String() string   { return SymbolVerum }
func (Falsum) String() string  { return SymbolFalsum }
func (n Neg) String() string   { return SymbolNeg + n.Arg.String() }
func (c Conj) String() string  { return joinInfix(SymbolConj, c...) }
func (d Disj) String() string  { return joinInfix(SymbolDisj, d...) }

func (y Yesterday) String() string {
	return SymbolYesterday + y.Arg.String()
}

func (s Since) String() string {
	return joinInfix(SymbolSince, s.Left, s.Right)
}

func (s DualSince) String() string {
	return joinInfix(SymbolDualSince, s.Left, s.Right)
}

func (a Assign) String() string {
	return "(" + a.Variable.Name + SymbolAssign + string(a.Value) + ")"
}

func joinInfix(symbol string, args ...Formula) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return "(" + strings.Join(parts, symbol) + ")"
}

func (a Atom) FactLanguage() string  { return facts.Sanitize(string(a)) }
func (v Value) FactLanguage() string { return facts.Sanitize(string(v)) }
func (Verum) FactLanguage() string   { return facts.RelVerum }
func (Falsum) FactLanguage() string  { return facts.RelFalsum }

// FactLanguage renders a negated atom as the atom holding the false value,
// following the boolean-variable convention. Other negations are wrapped.
func (n Neg) FactLanguage() string {
	if a, ok := n.Arg.(Atom); ok {
		return facts.New(facts.RelHasValue, a.FactLanguage(), FalseValue).Term()
	}
	return facts.New(facts.RelNeg, n.Arg.FactLanguage()).Term()
}

func (c Conj) FactLanguage() string { return renderApply(facts.RelConj, c...) }
func (d Disj) FactLanguage() string { return renderApply(facts.RelDisj, d...) }

func (a Assign) FactLanguage() string {
	return facts.New(facts.RelHasValue,
		facts.Sanitize(a.Variable.Name),
		facts.Sanitize(string(a.Value)),
	).Term()
}

func (y Yesterday) FactLanguage() string {
	return renderApply(facts.RelYesterday, y.Arg)
}

func (s Since) FactLanguage() string {
	return renderApply(facts.RelSince, s.Left, s.Right)
}

func (s DualSince) FactLanguage() string {
	return renderApply(facts.RelDualSince, s.Left, s.Right)
}

func renderApply(relation string, args ...Formula) string {
	rendered := make([]string, len(args))
	for i, a := range args {
		rendered[i] = a.FactLanguage()
	}
	return facts.New(relation, rendered...).Term()
}

// Literals flattens nested conjunctions into the list of their conjuncts.
// A formula that is not a conjunction is its own single literal.
func Literals(f Formula) []Formula {
	c, ok := f.(Conj)
	if !ok {
		return []Formula{f}
	}
	var out []Formula
	for _, sub := range c {
		out = append(out, Literals(sub)...)
	}
	return out
}
