package logic

import (
	"strings"
	"unicode"
)

// Op identifies an operator of the textual grammar.
type Op int

const (
	OpAssign Op = iota
	OpDisj
	OpConj
	OpSince
	OpDualSince
	OpNeg
	OpYesterday
)

// binaryOps and unaryOps map operator symbols to operators. The ASCII forms
// are the input syntax; the display forms are accepted so that printed
// formulas parse back.
var binaryOps = map[rune]Op{
	'=': OpAssign,
	'|': OpDisj,
	'∨': OpDisj,
	'&': OpConj,
	'∧': OpConj,
	'S': OpSince,
	'Z': OpDualSince,
}

var unaryOps = map[rune]Op{
	'!': OpNeg,
	'¬': OpNeg,
	'Y': OpYesterday,
}

// Parse reads a formula from text.
//
// A parenthesised subformula spanning the whole text is unwrapped first.
// Otherwise the leftmost operator at bracket depth zero becomes the root, so
// grouping is positional rather than by precedence and callers parenthesise
// to control it. Failing that, a leading unary operator applies to the rest,
// and anything else is an atom.
//
// Parse never fails. Text that does not form a formula (unmatched brackets,
// missing operands, assignments between non-atoms) is kept as an atom name.
func Parse(s string) Formula {
	return parseRunes([]rune(s))
}

func parseRunes(s []rune) Formula {
	s = trimSpace(s)
	if len(s) == 0 {
		return Atom("")
	}

	if s[0] == '(' {
		if end, ok := matchingBracket(s); ok && end == len(s)-1 {
			inner := trimSpace(s[1:end])
			if len(inner) == 0 {
				return atomFromText(s)
			}
			return parseRunes(inner)
		}
	}

	if i, op, ok := topLevelBinary(s); ok {
		right := trimSpace(s[i+1:])
		if len(right) == 0 {
			return atomFromText(s)
		}
		return buildBinary(op, parseRunes(s[:i]), right, s)
	}

	if op, ok := unaryOps[s[0]]; ok && len(trimSpace(s[1:])) > 0 {
		arg := parseRunes(s[1:])
		if op == OpYesterday {
			return Yesterday{Arg: arg}
		}
		return Neg{Arg: arg}
	}

	return atomFromText(s)
}

// topLevelBinary finds the leftmost binary operator outside brackets that
// has a non-empty left operand.
func topLevelBinary(s []rune) (int, Op, bool) {
	level := 0
	for i, r := range s {
		if level == 0 {
			if op, ok := binaryOps[r]; ok && len(trimSpace(s[:i])) > 0 {
				return i, op, true
			}
		}
		switch r {
		case '(':
			level++
		case ')':
			level--
		}
	}
	return 0, 0, false
}

// matchingBracket returns the index of the bracket closing s[0].
func matchingBracket(s []rune) (int, bool) {
	level := 0
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '(':
			level++
		case ')':
			if level == 0 {
				return i, true
			}
			level--
		}
	}
	return 0, false
}

func buildBinary(op Op, left Formula, rightText []rune, whole []rune) Formula {
	right := parseRunes(rightText)
	wrapped := isWrapped(rightText)

	switch op {
	case OpAssign:
		variable, lok := left.(Atom)
		value, rok := right.(Atom)
		if !lok || !rok {
			return atomFromText(whole)
		}
		return Assign{Variable: Variable{Name: string(variable)}, Value: Value(value)}
	case OpConj:
		// An unbracketed chain a&b&c reads as one n-ary conjunction.
		if rc, ok := right.(Conj); ok && !wrapped {
			return append(Conj{left}, rc...)
		}
		return Conj{left, right}
	case OpDisj:
		if rd, ok := right.(Disj); ok && !wrapped {
			return append(Disj{left}, rd...)
		}
		return Disj{left, right}
	case OpSince:
		return Since{Left: left, Right: right}
	case OpDualSince:
		return DualSince{Left: left, Right: right}
	}
	return atomFromText(whole)
}

// isWrapped reports whether s is entirely enclosed in one bracket pair.
func isWrapped(s []rune) bool {
	s = trimSpace(s)
	if len(s) == 0 || s[0] != '(' {
		return false
	}
	end, ok := matchingBracket(s)
	return ok && end == len(s)-1
}

func atomFromText(s []rune) Formula {
	text := strings.TrimSpace(string(s))
	switch text {
	case SymbolVerum:
		return Verum{}
	case SymbolFalsum:
		return Falsum{}
	}
	return Atom(text)
}

func trimSpace(s []rune) []rune {
	for len(s) > 0 && unicode.IsSpace(s[0]) {
		s = s[1:]
	}
	for len(s) > 0 && unicode.IsSpace(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}
