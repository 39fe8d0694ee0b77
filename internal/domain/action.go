package domain

import (
	"spgt/internal/facts"
	"spgt/internal/logic"
)

// GroundedAction is a lifted action under one parameter binding. A
// non-deterministic action has one effect per outcome.
type GroundedAction struct {
	Name         string
	Precondition logic.Formula
	Effects      []*GroundedEffect
}

// Facts returns the existence, precondition and effect-link facts.
func (a *GroundedAction) Facts() []facts.Fact {
	name := facts.Sanitize(a.Name)
	out := []facts.Fact{
		facts.New(facts.RelAction, name),
		facts.New(facts.RelPrecondition, name, a.Precondition.FactLanguage()),
	}
	for _, e := range a.Effects {
		out = append(out, facts.New(facts.RelActionEffect, name, facts.Sanitize(e.Name)))
	}
	return out
}

// Nondeterministic reports whether the action has more than one outcome.
func (a *GroundedAction) Nondeterministic() bool {
	return len(a.Effects) > 1
}
