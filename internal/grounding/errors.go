package grounding

import (
	"errors"
	"fmt"
)

// ErrDomainMismatch is returned by New when the problem names a different
// domain than the one supplied.
var ErrDomainMismatch = errors.New("problem references a different domain")

// DomainError reports a value assigned to a compacted variable that lies
// outside the variable's domain. It points at inconsistent input, such as
// an initial state naming an object of the wrong type.
type DomainError struct {
	Variable string
	Value    string
	Domain   []string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("value %q is not in the domain %v of variable %s", e.Value, e.Domain, e.Variable)
}

// ConsistencyError reports a grounded precondition that simplified to
// false although its binding passed the prohibition filter. It signals a
// defect in invariant detection and aborts grounding.
type ConsistencyError struct {
	Action string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("precondition of %s is unsatisfiable after binding", e.Action)
}
