// Package domain holds the grounded model produced by the grounding engine:
// fully instantiated actions and their effect outcomes.
package domain

import (
	"sort"
	"strings"

	"spgt/internal/facts"
	"spgt/internal/logic"
)

// Literal pairs a state variable with one of its values.
type Literal struct {
	Variable logic.Variable
	Value    string
}

func (l Literal) key() string {
	return l.Variable.Key() + "\x01" + l.Value
}

func (l Literal) String() string {
	return l.Variable.Name + "=" + l.Value
}

// GroundedEffect is one outcome of a grounded action: the values it adds and
// deletes. Binary variables always flip, so for them every add carries the
// delete of the complementary value and every delete carries the
// complementary add.
type GroundedEffect struct {
	Name   string
	Add    []Literal
	Delete []Literal
}

// NewGroundedEffect builds an effect, closing binary complements and
// removing duplicates. A value both added and deleted stays added, so a
// move onto the current value is a no-op. Add and Delete come out sorted.
func NewGroundedEffect(name string, add, del []Literal) *GroundedEffect {
	adds := newLiteralSet()
	dels := newLiteralSet()
	explicit := newLiteralSet()
	for _, l := range add {
		explicit.put(l)
		adds.put(l)
		if other, ok := l.Variable.Complement(l.Value); ok {
			dels.put(Literal{Variable: l.Variable, Value: other})
		}
	}
	for _, l := range del {
		if _, added := explicit[l.key()]; added {
			continue
		}
		dels.put(l)
		if other, ok := l.Variable.Complement(l.Value); ok {
			adds.put(Literal{Variable: l.Variable, Value: other})
		}
	}
	return &GroundedEffect{Name: name, Add: adds.sorted(), Delete: dels.sorted()}
}

// EffectFromFormula builds an effect from a conjunction of literals.
// Assignments become adds, negated assignments deletes. Bare atoms stand
// for binary variables set to true. Verum contributes nothing.
func EffectFromFormula(name string, f logic.Formula) (*GroundedEffect, error) {
	var add, del []Literal
	for _, lit := range logic.Literals(f) {
		switch l := lit.(type) {
		case logic.Verum:
		case logic.Assign:
			add = append(add, Literal{Variable: l.Variable, Value: string(l.Value)})
		case logic.Atom:
			add = append(add, Literal{Variable: logic.BinaryVariable(string(l)), Value: logic.TrueValue})
		case logic.Neg:
			switch arg := l.Arg.(type) {
			case logic.Assign:
				del = append(del, Literal{Variable: arg.Variable, Value: string(arg.Value)})
			case logic.Atom:
				del = append(del, Literal{Variable: logic.BinaryVariable(string(arg)), Value: logic.TrueValue})
			default:
				return nil, logic.Unsupported("effect "+name, l)
			}
		default:
			return nil, logic.Unsupported("effect "+name, lit)
		}
	}
	return NewGroundedEffect(name, add, del), nil
}

// Facts returns the add and delete facts of the effect.
func (e *GroundedEffect) Facts() []facts.Fact {
	name := facts.Sanitize(e.Name)
	out := make([]facts.Fact, 0, len(e.Add)+len(e.Delete))
	for _, l := range e.Add {
		out = append(out, facts.New(facts.RelAdd, name, facts.Sanitize(l.Variable.Name), facts.Sanitize(l.Value)))
	}
	for _, l := range e.Delete {
		out = append(out, facts.New(facts.RelDelete, name, facts.Sanitize(l.Variable.Name), facts.Sanitize(l.Value)))
	}
	return out
}

func (e *GroundedEffect) String() string {
	return "Effect(" + e.Name +
		", adds(" + joinLiterals(e.Add) + ")" +
		", deletes(" + joinLiterals(e.Delete) + "))"
}

func joinLiterals(ls []Literal) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = l.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

type literalSet map[string]Literal

func newLiteralSet() literalSet { return make(literalSet) }

func (s literalSet) put(l Literal) { s[l.key()] = l }

func (s literalSet) sorted() []Literal {
	out := make([]Literal, 0, len(s))
	for _, l := range s {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Variable.Name != out[j].Variable.Name {
			return out[i].Variable.Name < out[j].Variable.Name
		}
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].key() < out[j].key()
	})
	return out
}
