package mangle

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/parse"
)

// protectedHeads are the relations a user rule file may not define: the
// emitted program owns the base relations and the grounding schema owns
// the derived ones.
var protectedHeads = map[string]string{
	"variable_value": "emitted by the compiler",
	"initial_value":  "emitted by the compiler",
	"goal":           "emitted by the compiler",
	"action":         "emitted by the compiler",
	"precondition":   "emitted by the compiler",
	"action_effect":  "emitted by the compiler",
	"add":            "emitted by the compiler",
	"del":            "emitted by the compiler",
}

// RuleValidator checks user rule files against the predicates a kernel
// declares, so that a rule over a misspelled relation fails loudly
// instead of never firing.
type RuleValidator struct {
	arities map[string]int
	derived map[string]bool
}

// NewRuleValidator builds a validator from the kernel's current schema.
func NewRuleValidator(k *Kernel) *RuleValidator {
	sigs := k.signatures()
	v := &RuleValidator{
		arities: make(map[string]int, len(sigs)),
		derived: make(map[string]bool),
	}
	for name, sig := range sigs {
		v.arities[name] = sig.arity
		if sig.derived {
			v.derived[name] = true
		}
	}
	return v
}

// Validate parses text and reports every clause that redefines a protected
// or schema-derived relation, uses an undeclared predicate, or calls a
// predicate with the wrong number of arguments.
func (v *RuleValidator) Validate(text string) error {
	unit, err := parse.Unit(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	local := make(map[string]int)
	for _, d := range unit.Decls {
		local[d.DeclaredAtom.Predicate.Symbol] = d.DeclaredAtom.Predicate.Arity
	}
	for _, c := range unit.Clauses {
		local[c.Head.Predicate.Symbol] = c.Head.Predicate.Arity
	}

	var problems []string
	for _, c := range unit.Clauses {
		head := c.Head.Predicate
		if reason, ok := protectedHeads[head.Symbol]; ok {
			problems = append(problems, fmt.Sprintf("%s: defines protected predicate %s (%s)", c.Head, head.Symbol, reason))
			continue
		}
		if v.derived[head.Symbol] {
			problems = append(problems, fmt.Sprintf("%s: redefines derived predicate %s", c.Head, head.Symbol))
			continue
		}
		if err := v.checkArity(head); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", c.Head, err))
		}

		for _, premise := range c.Premises {
			var atom ast.Atom
			switch p := premise.(type) {
			case ast.Atom:
				atom = p
			case ast.NegAtom:
				atom = p.Atom
			default:
				continue
			}
			sym := atom.Predicate
			if strings.HasPrefix(sym.Symbol, ":") {
				continue
			}
			if _, ok := local[sym.Symbol]; ok {
				continue
			}
			if _, ok := v.arities[sym.Symbol]; !ok {
				problems = append(problems, fmt.Sprintf("%s: undefined predicate %s (available: %s)",
					c.Head, sym.Symbol, strings.Join(v.Predicates(), ", ")))
				continue
			}
			if err := v.checkArity(sym); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", c.Head, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

func (v *RuleValidator) checkArity(sym ast.PredicateSym) error {
	want, ok := v.arities[sym.Symbol]
	if !ok || want == sym.Arity {
		return nil
	}
	return fmt.Errorf("arity mismatch for %s: expected %d arguments, got %d", sym.Symbol, want, sym.Arity)
}

// Predicates returns the declared predicate names, sorted.
func (v *RuleValidator) Predicates() []string {
	out := make([]string, 0, len(v.arities))
	for name := range v.arities {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadRules validates text against the kernel's schema and adds it. Facts
// already loaded are re-evaluated under the extended program.
func (k *Kernel) LoadRules(text string) error {
	if err := NewRuleValidator(k).Validate(text); err != nil {
		return err
	}
	if err := k.LoadSchemaString(text); err != nil {
		return err
	}
	return k.RecomputeRules()
}

// LoadRulesFile reads and loads a rule file.
func (k *Kernel) LoadRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	if err := k.LoadRules(string(data)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
