package pddl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type domainDoc struct {
	Domain     string         `yaml:"domain"`
	Types      string         `yaml:"types"`
	Constants  string         `yaml:"constants"`
	Predicates []predicateDoc `yaml:"predicates"`
	Actions    []actionDoc    `yaml:"actions"`
}

type predicateDoc struct {
	Name   string `yaml:"name"`
	Params string `yaml:"params"`
}

type actionDoc struct {
	Name         string    `yaml:"name"`
	Parameters   string    `yaml:"parameters"`
	Precondition yaml.Node `yaml:"precondition"`
	Effect       yaml.Node `yaml:"effect"`
}

type problemDoc struct {
	Problem string      `yaml:"problem"`
	Domain  string      `yaml:"domain"`
	Objects string      `yaml:"objects"`
	Init    []yaml.Node `yaml:"init"`
	Goal    yaml.Node   `yaml:"goal"`
}

// LoadDomain reads a domain document from disk.
func LoadDomain(path string) (*Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read domain: %w", err)
	}
	d, err := DecodeDomain(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// LoadProblem reads a problem document from disk.
func LoadProblem(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem: %w", err)
	}
	p, err := DecodeProblem(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// DecodeDomain decodes a single domain document.
func DecodeDomain(r io.Reader) (*Domain, error) {
	var doc domainDoc
	if err := decodeKnownFields(r, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse domain YAML: %w", err)
	}
	if doc.Domain == "" {
		return nil, errors.New("missing required field: domain")
	}

	d := &Domain{Name: doc.Domain, Types: make(map[string]string)}

	types, err := ParseTypedList(doc.Types)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		d.Types[t.Name] = t.Types[0]
	}

	if d.Constants, err = ParseTypedList(doc.Constants); err != nil {
		return nil, err
	}

	for _, pd := range doc.Predicates {
		if pd.Name == "" {
			return nil, errors.New("predicate without name")
		}
		params, err := ParseTypedList(pd.Params)
		if err != nil {
			return nil, fmt.Errorf("predicate %s: %w", pd.Name, err)
		}
		d.Predicates = append(d.Predicates, Predicate{Name: pd.Name, Params: params})
	}

	for _, ad := range doc.Actions {
		a, err := ad.action()
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", ad.Name, err)
		}
		d.Actions = append(d.Actions, a)
	}
	return d, nil
}

func (ad actionDoc) action() (Action, error) {
	if ad.Name == "" {
		return Action{}, errors.New("missing required field: name")
	}
	params, err := ParseTypedList(ad.Parameters)
	if err != nil {
		return Action{}, err
	}
	pre, err := decodeFormula(&ad.Precondition)
	if err != nil {
		return Action{}, fmt.Errorf("precondition: %w", err)
	}
	eff, err := decodeFormula(&ad.Effect)
	if err != nil {
		return Action{}, fmt.Errorf("effect: %w", err)
	}
	return Action{Name: ad.Name, Parameters: params, Precondition: pre, Effect: eff}, nil
}

// DecodeProblem decodes a single problem document.
func DecodeProblem(r io.Reader) (*Problem, error) {
	var doc problemDoc
	if err := decodeKnownFields(r, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse problem YAML: %w", err)
	}
	if doc.Problem == "" {
		return nil, errors.New("missing required field: problem")
	}
	if doc.Domain == "" {
		return nil, errors.New("missing required field: domain")
	}

	objects, err := ParseTypedList(doc.Objects)
	if err != nil {
		return nil, err
	}
	p := &Problem{Name: doc.Problem, DomainName: doc.Domain, Objects: objects}

	for i := range doc.Init {
		f, err := decodeFormula(&doc.Init[i])
		if err != nil {
			return nil, fmt.Errorf("init: %w", err)
		}
		atom, err := groundAtom(f)
		if err != nil {
			return nil, fmt.Errorf("init: %w", err)
		}
		p.Init = append(p.Init, atom)
	}

	if p.Goal, err = decodeFormula(&doc.Goal); err != nil {
		return nil, fmt.Errorf("goal: %w", err)
	}
	return p, nil
}

func groundAtom(f Formula) (GroundAtom, error) {
	negated := false
	if n, ok := f.(Not); ok {
		negated = true
		f = n.Arg
	}
	p, ok := f.(Pred)
	if !ok {
		return GroundAtom{}, fmt.Errorf("%s is not a literal", f)
	}
	atom := GroundAtom{Predicate: p.Name, Negated: negated}
	for _, t := range p.Terms {
		c, ok := t.(Constant)
		if !ok {
			return GroundAtom{}, fmt.Errorf("%s is not ground", f)
		}
		atom.Args = append(atom.Args, string(c))
	}
	return atom, nil
}

// decodeFormula reads a formula node. Scalars are predicates written as
// "name arg...", or the constants true and false. Sequences are
// conjunctions. Mappings have a single key among and, or, not, imply,
// oneof and pred. An absent node is the empty conjunction.
func decodeFormula(n *yaml.Node) (Formula, error) {
	switch n.Kind {
	case 0:
		return Truth(true), nil
	case yaml.ScalarNode:
		return decodeScalar(n)
	case yaml.SequenceNode:
		args, err := decodeList(n)
		if err != nil {
			return nil, err
		}
		return And(args), nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return nil, fmt.Errorf("line %d: formula mapping must have exactly one key", n.Line)
		}
		return decodeTagged(n.Content[0].Value, n.Content[1])
	}
	return nil, fmt.Errorf("line %d: unexpected YAML node", n.Line)
}

func decodeScalar(n *yaml.Node) (Formula, error) {
	if n.Tag == "!!bool" {
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return Truth(b), nil
	}
	return predFromFields(n.Line, strings.Fields(n.Value))
}

func predFromFields(line int, fields []string) (Formula, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("line %d: empty predicate", line)
	}
	p := Pred{Name: fields[0]}
	for _, f := range fields[1:] {
		p.Terms = append(p.Terms, ParseTerm(f))
	}
	return p, nil
}

func decodeTagged(op string, n *yaml.Node) (Formula, error) {
	switch op {
	case "and", "or", "oneof":
		if n.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: %s expects a list", n.Line, op)
		}
		args, err := decodeList(n)
		if err != nil {
			return nil, err
		}
		switch op {
		case "and":
			return And(args), nil
		case "or":
			return Or(args), nil
		}
		return OneOf(args), nil
	case "not":
		arg, err := decodeFormula(n)
		if err != nil {
			return nil, err
		}
		return Not{Arg: arg}, nil
	case "imply":
		if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
			return nil, fmt.Errorf("line %d: imply expects two operands", n.Line)
		}
		args, err := decodeList(n)
		if err != nil {
			return nil, err
		}
		return Imply{If: args[0], Then: args[1]}, nil
	case "pred":
		switch n.Kind {
		case yaml.ScalarNode:
			return predFromFields(n.Line, strings.Fields(n.Value))
		case yaml.SequenceNode:
			var fields []string
			if err := n.Decode(&fields); err != nil {
				return nil, err
			}
			return predFromFields(n.Line, fields)
		}
		return nil, fmt.Errorf("line %d: pred expects a string or a list", n.Line)
	}
	return nil, fmt.Errorf("line %d: unknown formula operator %q", n.Line, op)
}

func decodeList(n *yaml.Node) ([]Formula, error) {
	out := make([]Formula, 0, len(n.Content))
	for _, c := range n.Content {
		f, err := decodeFormula(c)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeKnownFields(r io.Reader, out interface{}) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	var extra interface{}
	if err := dec.Decode(&extra); err == nil {
		return fmt.Errorf("multiple YAML documents are not supported")
	} else if !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed after first YAML document: %w", err)
	}
	return nil
}
