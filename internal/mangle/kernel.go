package mangle

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"time"

	"spgt/internal/emit"
	"spgt/internal/facts"
	"spgt/internal/logging"
)

//go:embed grounding.mg
var groundingSchema string

// formulaArgs lists, per relation, the argument positions holding rendered
// formulas. Every other argument is a name.
var formulaArgs = map[string]int{
	facts.RelGoal:         0,
	facts.RelPrecondition: 1,
}

// Kernel is an engine preloaded with the grounding schema and its derived
// relations, for inspecting compiled programs.
type Kernel struct {
	*Engine
}

// NewKernel creates a kernel with the grounding schema loaded.
func NewKernel(cfg Config) (*Kernel, error) {
	e := NewEngine(cfg)
	if err := e.LoadSchemaString(groundingSchema); err != nil {
		return nil, fmt.Errorf("grounding schema: %w", err)
	}
	return &Kernel{Engine: e}, nil
}

// Schema returns the source of the grounding schema.
func Schema() string {
	return groundingSchema
}

// ToFact converts an emitted fact into a kernel fact.
func ToFact(f facts.Fact) Fact {
	args := make([]interface{}, len(f.Args))
	pos, hasFormula := formulaArgs[f.Relation]
	for i, a := range f.Args {
		if hasFormula && i == pos {
			args[i] = a
			continue
		}
		args[i] = "/" + a
	}
	return Fact{Predicate: f.Relation, Args: args}
}

// LoadProgram inserts every fact of p and evaluates the derived relations.
func (k *Kernel) LoadProgram(p *emit.Program) error {
	all := p.Facts()
	batch := make([]Fact, len(all))
	for i, f := range all {
		batch[i] = ToFact(f)
	}
	if err := k.AddFacts(batch); err != nil {
		return fmt.Errorf("load %s: %w", p.Name, err)
	}
	logging.Kernel("loaded %s: %d facts", p.Name, len(batch))
	logging.Audit().KernelLoad(len(batch))
	return nil
}

// Select runs query and renders each binding as "Var=value" pairs ordered
// by variable name, names without their leading "/". Rows are sorted and
// deduplicated.
func (k *Kernel) Select(ctx context.Context, query string) ([]string, error) {
	start := time.Now()
	res, err := k.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(res.Bindings))
	rows := make([]string, 0, len(res.Bindings))
	for _, b := range res.Bindings {
		row := renderBinding(b)
		if seen[row] {
			continue
		}
		seen[row] = true
		rows = append(rows, row)
	}
	sort.Strings(rows)
	logging.Audit().KernelQuery(query, len(rows), time.Since(start).Milliseconds())
	return rows, nil
}

func renderBinding(b map[string]interface{}) string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	out := ""
	for i, name := range names {
		if i > 0 {
			out += " "
		}
		out += name + "=" + trimName(fmt.Sprint(b[name]))
	}
	return out
}

// Names returns the first argument of every fact of predicate, without the
// leading "/", sorted.
func (k *Kernel) Names(predicate string) ([]string, error) {
	fs, err := k.GetFacts(predicate)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		if len(f.Args) == 0 {
			continue
		}
		out = append(out, trimName(fmt.Sprint(f.Args[0])))
	}
	sort.Strings(out)
	return out, nil
}

func trimName(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}
