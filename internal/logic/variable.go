package logic

import (
	"sort"
	"strings"
)

// Reserved domain values of binary variables.
const (
	TrueValue  = "true"
	FalseValue = "false"
)

// Variable is a multi-valued state component of the compiled program.
// Domain is kept sorted and free of duplicates; two variables are the same
// variable when their names and domains match.
type Variable struct {
	Name   string
	Domain []string
}

// NewVariable builds a variable over the given domain values.
func NewVariable(name string, domain ...string) Variable {
	d := make([]string, 0, len(domain))
	seen := make(map[string]bool, len(domain))
	for _, v := range domain {
		if seen[v] {
			continue
		}
		seen[v] = true
		d = append(d, v)
	}
	sort.Strings(d)
	return Variable{Name: name, Domain: d}
}

// BinaryVariable builds a variable over {true, false}.
func BinaryVariable(name string) Variable {
	return NewVariable(name, TrueValue, FalseValue)
}

// Key identifies the variable by name and sorted domain.
func (v Variable) Key() string {
	d := append([]string(nil), v.Domain...)
	sort.Strings(d)
	return v.Name + "\x00" + strings.Join(d, "\x00")
}

// IsBinary reports whether the domain is exactly {true, false}.
func (v Variable) IsBinary() bool {
	if len(v.Domain) != 2 {
		return false
	}
	return v.Contains(TrueValue) && v.Contains(FalseValue)
}

// Contains reports whether value is in the domain.
func (v Variable) Contains(value string) bool {
	for _, d := range v.Domain {
		if d == value {
			return true
		}
	}
	return false
}

// Complement returns the other value of a binary variable.
func (v Variable) Complement(value string) (string, bool) {
	if !v.IsBinary() {
		return "", false
	}
	switch value {
	case TrueValue:
		return FalseValue, true
	case FalseValue:
		return TrueValue, true
	}
	return "", false
}

// Is returns the assignment of value to v.
func (v Variable) Is(value string) Assign {
	return Assign{Variable: v, Value: Value(value)}
}
