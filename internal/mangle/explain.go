package mangle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/ast"
)

// DerivationNode is a fact in a proof tree together with the facts it was
// derived from.
type DerivationNode struct {
	ID       string
	ParentID string
	Fact     Fact
	RuleName string // head predicate of the deriving rule, empty for base facts
	Source   DerivationSource
	Children []*DerivationNode
	Depth    int
}

// DerivationSource indicates whether a fact came from EDB or IDB.
type DerivationSource string

const (
	SourceEDB DerivationSource = "EDB" // emitted facts
	SourceIDB DerivationSource = "IDB" // derived by the grounding rules
)

// DerivationTrace is the proof forest for one query.
type DerivationTrace struct {
	Query     string
	RootNodes []*DerivationNode
	AllNodes  []*DerivationNode
	Duration  time.Duration
}

// maxTraceDepth bounds premise expansion.
const maxTraceDepth = 10

// Tracer explains derived facts of a kernel by walking back to the emitted
// facts that support them.
type Tracer struct {
	mu        sync.Mutex
	kernel    *Kernel
	nodeIDSeq int64
}

// NewTracer creates a tracer over k.
func NewTracer(k *Kernel) *Tracer {
	return &Tracer{kernel: k}
}

// Trace runs query and builds one derivation tree per distinct answer.
func (t *Tracer) Trace(ctx context.Context, query string) (*DerivationTrace, error) {
	start := time.Now()

	goal, err := parseQueryAtom(query)
	if err != nil {
		return nil, err
	}
	result, err := t.kernel.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	trace := &DerivationTrace{Query: query}
	seen := make(map[string]bool)
	for _, binding := range result.Bindings {
		fact := Fact{
			Predicate: goal.Predicate.Symbol,
			Args:      make([]interface{}, len(goal.Args)),
		}
		for i, arg := range goal.Args {
			if v, ok := arg.(ast.Variable); ok {
				if val, exists := binding[v.Symbol]; exists {
					fact.Args[i] = val
					continue
				}
			}
			fact.Args[i] = fromTerm(arg)
		}
		if seen[fact.String()] {
			continue
		}
		seen[fact.String()] = true

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := t.buildNode(fact, "", 0)
		trace.RootNodes = append(trace.RootNodes, node)
		trace.AllNodes = append(trace.AllNodes, flattenTree(node)...)
	}

	trace.Duration = time.Since(start)
	return trace, nil
}

func (t *Tracer) buildNode(fact Fact, parentID string, depth int) *DerivationNode {
	t.mu.Lock()
	t.nodeIDSeq++
	id := fmt.Sprintf("node_%d", t.nodeIDSeq)
	t.mu.Unlock()

	node := &DerivationNode{
		ID:       id,
		ParentID: parentID,
		Fact:     fact,
		Depth:    depth,
		Source:   SourceEDB,
	}
	if !t.kernel.isDerived(fact.Predicate) {
		return node
	}

	node.Source = SourceIDB
	node.RuleName = fact.Predicate
	if depth < maxTraceDepth {
		for _, premise := range t.premises(fact) {
			node.Children = append(node.Children, t.buildNode(premise, id, depth+1))
		}
	}
	return node
}

// premises returns the facts a derived fact rests on, following the rules
// of the grounding schema. Negated premises have no supporting facts and
// are not listed.
func (t *Tracer) premises(f Fact) []Fact {
	arg := func(i int) interface{} {
		if i < len(f.Args) {
			return f.Args[i]
		}
		return nil
	}

	switch f.Predicate {
	case "variable":
		return t.matching("variable_value", map[int]interface{}{0: arg(0)})
	case "touches":
		var out []Fact
		for _, link := range t.matching("action_effect", map[int]interface{}{0: arg(0)}) {
			var changes []Fact
			for _, rel := range []string{"add", "del"} {
				changes = append(changes, t.matching(rel, map[int]interface{}{0: link.Args[1], 1: arg(1)})...)
			}
			if len(changes) > 0 {
				out = append(out, link)
				out = append(out, changes...)
			}
		}
		return out
	case "touched":
		return t.matching("touches", map[int]interface{}{1: arg(0)})
	case "static_variable":
		return t.matching("variable", map[int]interface{}{0: arg(0)})
	case "nondeterministic", "has_effect":
		return t.matching("action_effect", map[int]interface{}{0: arg(0)})
	case "inert_action":
		return t.matching("action", map[int]interface{}{0: arg(0)})
	case "added_value":
		return t.matching("add", map[int]interface{}{1: arg(0), 2: arg(1)})
	case "unreachable_value":
		return t.matching("variable_value", map[int]interface{}{0: arg(0), 1: arg(1)})
	}
	return nil
}

// matching returns the stored facts of predicate whose arguments equal
// want at the given positions.
func (t *Tracer) matching(predicate string, want map[int]interface{}) []Fact {
	all, err := t.kernel.GetFacts(predicate)
	if err != nil {
		return nil
	}
	var out []Fact
	for _, f := range all {
		ok := true
		for i, v := range want {
			if i >= len(f.Args) || f.Args[i] != v {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, f)
		}
	}
	return out
}

func flattenTree(node *DerivationNode) []*DerivationNode {
	nodes := []*DerivationNode{node}
	for _, child := range node.Children {
		nodes = append(nodes, flattenTree(child)...)
	}
	return nodes
}

// RenderASCII renders the trace as an indented tree.
func (trace *DerivationTrace) RenderASCII() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Query: %s\n", trace.Query))
	for i, root := range trace.RootNodes {
		sb.WriteString(fmt.Sprintf("\nDerivation %d:\n", i+1))
		renderNodeASCII(&sb, root, "", true)
	}

	return sb.String()
}

func renderNodeASCII(sb *strings.Builder, node *DerivationNode, prefix string, isLast bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}

	source := "[EDB]"
	if node.Source == SourceIDB {
		source = fmt.Sprintf("[IDB:%s]", node.RuleName)
	}
	sb.WriteString(fmt.Sprintf("%s%s%s %s\n", prefix, connector, node.Fact.String(), source))

	childPrefix := prefix
	if isLast {
		childPrefix += "    "
	} else {
		childPrefix += "│   "
	}
	for i, child := range node.Children {
		renderNodeASCII(sb, child, childPrefix, i == len(node.Children)-1)
	}
}

// RenderJSON renders the trace as indented JSON.
func (trace *DerivationTrace) RenderJSON() ([]byte, error) {
	type jsonNode struct {
		ID       string      `json:"id"`
		ParentID string      `json:"parent_id,omitempty"`
		Fact     string      `json:"fact"`
		Source   string      `json:"source"`
		Rule     string      `json:"rule,omitempty"`
		Depth    int         `json:"depth"`
		Children []*jsonNode `json:"children,omitempty"`
	}

	var convertNode func(*DerivationNode) *jsonNode
	convertNode = func(n *DerivationNode) *jsonNode {
		jn := &jsonNode{
			ID:       n.ID,
			ParentID: n.ParentID,
			Fact:     n.Fact.String(),
			Source:   string(n.Source),
			Rule:     n.RuleName,
			Depth:    n.Depth,
		}
		for _, child := range n.Children {
			jn.Children = append(jn.Children, convertNode(child))
		}
		return jn
	}

	type jsonTrace struct {
		Query    string      `json:"query"`
		Duration string      `json:"duration"`
		Roots    []*jsonNode `json:"roots"`
	}

	jt := jsonTrace{
		Query:    trace.Query,
		Duration: trace.Duration.String(),
	}
	for _, root := range trace.RootNodes {
		jt.Roots = append(jt.Roots, convertNode(root))
	}

	return json.MarshalIndent(jt, "", "  ")
}
