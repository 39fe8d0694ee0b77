// Package facts defines the vocabulary of the solver's fact language:
// reserved relation names, identifier sanitization and the Fact record.
package facts

import (
	"strings"
)

// Relation names of the emitted program.
const (
	RelVariableValue = "variable_value"
	RelInitialValue  = "initial_value"
	RelGoal          = "goal"
	RelAction        = "action"
	RelPrecondition  = "precondition"
	RelActionEffect  = "action_effect"
	RelAdd           = "add"
	RelDelete        = "del"
)

// Relation names used when rendering formulas.
const (
	RelConj      = "conj"
	RelDisj      = "disj"
	RelNeg       = "neg"
	RelHasValue  = "has_value"
	RelSince     = "since"
	RelDualSince = "dual_since"
	RelYesterday = "yest"
	RelVerum     = "verum"
	RelFalsum    = "falsum"
)

// Fact is a single ground fact: a relation applied to already-rendered
// arguments. Arguments are emitted verbatim; callers sanitize names.
type Fact struct {
	Relation string
	Args     []string
}

// New builds a fact.
func New(relation string, args ...string) Fact {
	return Fact{Relation: relation, Args: args}
}

// String returns the fact-language line, terminated by a period.
func (f Fact) String() string {
	return f.Term() + "."
}

// Term renders the fact without the trailing period, for nesting.
func (f Fact) Term() string {
	if len(f.Args) == 0 {
		return f.Relation
	}
	var sb strings.Builder
	sb.WriteString(f.Relation)
	sb.WriteByte('(')
	for i, a := range f.Args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a)
	}
	sb.WriteByte(')')
	return sb.String()
}
