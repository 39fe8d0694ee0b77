// Package mangle evaluates emitted fact programs with Google Mangle so their
// structure can be queried and explained.
package mangle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"
	"github.com/google/mangle/unionfind"

	"spgt/internal/logging"
)

var errNoSchema = errors.New("no schema loaded")

// Config holds the engine limits.
type Config struct {
	FactLimit    int `yaml:"fact_limit" json:"fact_limit"`       // 0 is unlimited
	QueryTimeout int `yaml:"query_timeout" json:"query_timeout"` // seconds
}

// DefaultConfig returns the limits used by the CLI.
func DefaultConfig() Config {
	return Config{FactLimit: 100000, QueryTimeout: 30}
}

// Fact is a fact as seen from Go. String arguments with a leading "/" are
// names, other strings are string constants.
type Fact struct {
	Predicate string        `json:"predicate"`
	Args      []interface{} `json:"args"`
}

// String renders the fact in Mangle syntax.
func (f Fact) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		if s, ok := a.(string); ok && !strings.HasPrefix(s, "/") {
			args[i] = strconv.Quote(s)
			continue
		}
		args[i] = fmt.Sprint(a)
	}
	return f.Predicate + "(" + strings.Join(args, ", ") + ")."
}

// QueryResult holds one binding of the query variables per answer.
type QueryResult struct {
	Bindings []map[string]interface{} `json:"bindings"`
	Duration time.Duration            `json:"duration"`
}

// Stats counts the stored facts, derived ones included.
type Stats struct {
	TotalFacts      int            `json:"total_facts"`
	PredicateCounts map[string]int `json:"predicate_counts"`
}

// Engine evaluates the program assembled from every loaded schema fragment
// over an in-memory store. Rules are evaluated after each batch of facts.
type Engine struct {
	cfg Config

	mu       sync.RWMutex
	units    []parse.SourceUnit
	program  *analysis.ProgramInfo
	symbols  map[string]ast.PredicateSym
	eval     *mengine.QueryContext
	store    factstore.ConcurrentFactStore
	inserted int
}

// NewEngine creates an engine with no schema.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:   cfg,
		store: factstore.NewConcurrentFactStore(factstore.NewSimpleInMemoryStore()),
	}
}

// LoadSchemaString adds a schema fragment and re-analyzes it together with
// the fragments loaded before. A fragment that fails analysis is dropped
// and the previous program stays in place.
func (e *Engine) LoadSchemaString(text string) error {
	unit, err := parse.Unit(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("failed to parse schema: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	units := append(e.units[:len(e.units):len(e.units)], unit)
	if err := e.analyzeLocked(units); err != nil {
		return fmt.Errorf("failed to analyze schema: %w", err)
	}
	e.units = units
	return nil
}

func (e *Engine) analyzeLocked(units []parse.SourceUnit) error {
	var merged parse.SourceUnit
	for _, u := range units {
		merged.Decls = append(merged.Decls, u.Decls...)
		merged.Clauses = append(merged.Clauses, u.Clauses...)
	}
	program, err := analysis.AnalyzeOneUnit(merged, nil)
	if err != nil {
		return err
	}

	symbols := make(map[string]ast.PredicateSym, len(program.Decls))
	for sym := range program.Decls {
		symbols[sym.Symbol] = sym
	}
	rules := make(map[ast.PredicateSym][]ast.Clause)
	for _, c := range program.Rules {
		rules[c.Head.Predicate] = append(rules[c.Head.Predicate], c)
	}

	e.program = program
	e.symbols = symbols
	e.eval = &mengine.QueryContext{PredToRules: rules, PredToDecl: program.Decls, Store: e.store}
	return nil
}

// AddFacts stores a batch of facts, then evaluates the rules once.
func (e *Engine) AddFacts(facts []Fact) error {
	if len(facts) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.program == nil {
		return errNoSchema
	}
	for _, f := range facts {
		atom, err := e.atomLocked(f)
		if err != nil {
			return err
		}
		if e.cfg.FactLimit > 0 && e.inserted >= e.cfg.FactLimit {
			return fmt.Errorf("fact limit exceeded: %d", e.cfg.FactLimit)
		}
		if e.store.Add(atom) {
			e.inserted++
		}
	}
	return e.evalLocked()
}

// RecomputeRules evaluates the current program over the stored facts. It is
// needed after a schema fragment adds rules over facts already stored.
func (e *Engine) RecomputeRules() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.program == nil {
		return errNoSchema
	}
	return e.evalLocked()
}

func (e *Engine) evalLocked() error {
	start := time.Now()
	stats, err := mengine.EvalProgramWithStats(e.program, e.store)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	logging.KernelDebug("evaluated rules in %v: %+v", time.Since(start), stats)
	return nil
}

func (e *Engine) atomLocked(f Fact) (ast.Atom, error) {
	sym, ok := e.symbols[f.Predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("predicate %s is not declared", f.Predicate)
	}
	if len(f.Args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("predicate %s expects %d args, got %d", f.Predicate, sym.Arity, len(f.Args))
	}
	args := make([]ast.BaseTerm, len(f.Args))
	for i, a := range f.Args {
		c, err := toConstant(a)
		if err != nil {
			return ast.Atom{}, fmt.Errorf("predicate %s arg %d: %w", f.Predicate, i, err)
		}
		args[i] = c
	}
	return ast.Atom{Predicate: sym, Args: args}, nil
}

func toConstant(v interface{}) (ast.Constant, error) {
	switch v := v.(type) {
	case string:
		if strings.HasPrefix(v, "/") {
			return ast.Name(v)
		}
		return ast.String(v), nil
	case int64:
		return ast.Number(v), nil
	case int:
		return ast.Number(int64(v)), nil
	}
	return ast.Constant{}, fmt.Errorf("unsupported value %T", v)
}

func fromTerm(t ast.BaseTerm) interface{} {
	c, ok := t.(ast.Constant)
	if !ok {
		return fmt.Sprint(t)
	}
	switch c.Type {
	case ast.NameType, ast.StringType:
		return c.Symbol
	case ast.NumberType:
		return c.NumValue
	}
	return c.String()
}

func factOf(a ast.Atom) Fact {
	args := make([]interface{}, len(a.Args))
	for i, t := range a.Args {
		args[i] = fromTerm(t)
	}
	return Fact{Predicate: a.Predicate.Symbol, Args: args}
}

// Query evaluates a single atom such as "touches(A, V)" and
// binds its variables once per answer. The predicate needs a mode
// declaration. Without a deadline on ctx the configured timeout applies.
func (e *Engine) Query(ctx context.Context, query string) (*QueryResult, error) {
	goal, err := parseQueryAtom(query)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.eval == nil {
		return nil, errNoSchema
	}
	decl, ok := e.eval.PredToDecl[goal.Predicate]
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", goal.Predicate.Symbol)
	}
	modes := decl.Modes()
	if len(modes) == 0 {
		return nil, fmt.Errorf("predicate %s has no modes declared", goal.Predicate.Symbol)
	}

	if _, ok := ctx.Deadline(); !ok && e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.QueryTimeout)*time.Second)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", query, err)
	}

	start := time.Now()
	res := &QueryResult{}
	err = e.eval.EvalQuery(goal, modes[0], unionfind.New(), func(answer ast.Atom) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := make(map[string]interface{}, len(goal.Args))
		for i, arg := range goal.Args {
			v, ok := arg.(ast.Variable)
			if !ok || v.Symbol == "_" || i >= len(answer.Args) {
				continue
			}
			row[v.Symbol] = fromTerm(answer.Args[i])
		}
		res.Bindings = append(res.Bindings, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", query, err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

func parseQueryAtom(query string) (ast.Atom, error) {
	text := strings.TrimSpace(query)
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, "?"), "."))
	if text == "" {
		return ast.Atom{}, fmt.Errorf("empty query")
	}
	atom, err := parse.Atom(text)
	if err != nil {
		return ast.Atom{}, fmt.Errorf("failed to parse query %q: %w", query, err)
	}
	return atom, nil
}

// GetFacts returns the stored facts of predicate, derived ones included.
func (e *Engine) GetFacts(predicate string) ([]Fact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sym, ok := e.symbols[predicate]
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}
	var out []Fact
	err := e.store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
		out = append(out, factOf(a))
		return nil
	})
	return out, err
}

// GetStats counts the stored facts per predicate.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{PredicateCounts: make(map[string]int)}
	for _, sym := range e.store.ListPredicates() {
		n := 0
		_ = e.store.GetFacts(ast.NewQuery(sym), func(ast.Atom) error {
			n++
			return nil
		})
		s.PredicateCounts[sym.Symbol] = n
		s.TotalFacts += n
	}
	return s
}

// signature is what rule validation needs to know about a predicate.
type signature struct {
	arity   int
	derived bool
}

func (e *Engine) signatures() map[string]signature {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]signature, len(e.symbols))
	for name, sym := range e.symbols {
		out[name] = signature{arity: sym.Arity, derived: len(e.eval.PredToRules[sym]) > 0}
	}
	return out
}

// isDerived reports whether predicate is the head of some rule.
func (e *Engine) isDerived(predicate string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sym, ok := e.symbols[predicate]
	return ok && len(e.eval.PredToRules[sym]) > 0
}
