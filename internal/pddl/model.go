// Package pddl is the lifted planning model handed to the grounding engine:
// typed objects, predicates, actions and formulas over parameters, as
// produced by an external PDDL front end. Documents are loaded from YAML.
package pddl

import (
	"fmt"
	"strings"
)

// RootType is the implicit ancestor of every declared type. Untyped
// objects and parameters belong to it.
const RootType = "object"

// TypedTerm is a name with its type tags, used for predicate and action
// parameters (without the leading '?') and for objects.
type TypedTerm struct {
	Name  string
	Types []string
}

// Object is a problem object or domain constant.
type Object = TypedTerm

// Predicate is a lifted predicate declaration.
type Predicate struct {
	Name   string
	Params []TypedTerm
}

// Arity returns the number of parameters.
func (p Predicate) Arity() int { return len(p.Params) }

// Action is a lifted action schema. Effect may be a OneOf at the root
// when the action is non-deterministic.
type Action struct {
	Name         string
	Parameters   []TypedTerm
	Precondition Formula
	Effect       Formula
}

// Domain is a lifted planning domain.
type Domain struct {
	Name string
	// Types maps each declared type to its parent type.
	Types      map[string]string
	Constants  []Object
	Predicates []Predicate
	Actions    []Action
}

// Predicate returns the declaration with the given name.
func (d *Domain) Predicate(name string) (Predicate, bool) {
	for _, p := range d.Predicates {
		if p.Name == name {
			return p, true
		}
	}
	return Predicate{}, false
}

// GroundAtom is a predicate applied to objects, as listed in an initial
// state.
type GroundAtom struct {
	Predicate string
	Args      []string
	Negated   bool
}

func (g GroundAtom) String() string {
	s := "(" + strings.Join(append([]string{g.Predicate}, g.Args...), " ") + ")"
	if g.Negated {
		return "(not " + s + ")"
	}
	return s
}

// Problem is a planning instance over a named domain.
type Problem struct {
	Name       string
	DomainName string
	Objects    []Object
	Init       []GroundAtom
	Goal       Formula
}

// ParseTypedList reads a PDDL typed list such as "?from ?to - loc ?x".
// Names not followed by a type are tagged with RootType. A type written as
// "either:a,b" tags the names with both types.
func ParseTypedList(s string) ([]TypedTerm, error) {
	fields := strings.Fields(s)
	var out, pending []TypedTerm
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if tok != "-" {
			pending = append(pending, TypedTerm{Name: strings.TrimPrefix(tok, "?")})
			continue
		}
		if len(pending) == 0 {
			return nil, fmt.Errorf("typed list %q: type without names", s)
		}
		if i+1 >= len(fields) {
			return nil, fmt.Errorf("typed list %q: missing type after '-'", s)
		}
		i++
		types := parseTypeTags(fields[i])
		for _, t := range pending {
			t.Types = types
			out = append(out, t)
		}
		pending = nil
	}
	for _, t := range pending {
		t.Types = []string{RootType}
		out = append(out, t)
	}
	return out, nil
}

func parseTypeTags(tok string) []string {
	if rest, ok := strings.CutPrefix(tok, "either:"); ok {
		return strings.Split(rest, ",")
	}
	return []string{tok}
}
