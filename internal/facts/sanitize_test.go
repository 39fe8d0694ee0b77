package facts

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var identifierPattern = regexp.MustCompile(`^_?[a-z][a-z0-9_]*$`)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a", "a"},
		{"p0", "p0"},
		{"next-fwd", "next_hfwd"},
		{"on_table", "on_utable"},
		{"on(a)", "on_la_r"},
		{"at(p0,p1)", "at_lp0_cp1_r"},
		{"Robot", "_krobot"},
		{"1st", "_d1st"},
		{"a b", "a_sb"},
		{"é", "_xe9_"},
		{"", "_e"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_ValidIdentifiers(t *testing.T) {
	inputs := []string{"a", "next-fwd", "_x", "-", "(", "9", "A", "a\xffb", "ünï", "walk-on-beam(p0,p1)_effect_0"}
	for _, in := range inputs {
		out := Sanitize(in)
		assert.Regexp(t, identifierPattern, out, "input %q", in)
	}
}

func TestSanitize_Injective(t *testing.T) {
	// Pairs that a naive substitution scheme would merge.
	inputs := []string{
		"a-b", "a_b", "a__b", "a--b", "a_hb", "a-_b",
		"1a", "_d1a", "d1a",
		"A", "_ka", "ka",
		"x", "_xx", "é", "_xe9_",
		"a\xff", "a\xfe", "a�",
		"(", ")", ",", " ", "_l", "_r",
	}
	seen := make(map[string]string, len(inputs))
	for _, in := range inputs {
		out := Sanitize(in)
		if prev, ok := seen[out]; ok {
			t.Errorf("Sanitize(%q) and Sanitize(%q) both produce %q", prev, in, out)
		}
		seen[out] = in
	}
}

func TestSanitize_Deterministic(t *testing.T) {
	for _, in := range []string{"next-fwd", "on(a)", "Walk On Beam"} {
		assert.Equal(t, Sanitize(in), Sanitize(in))
	}
}

func TestFactString(t *testing.T) {
	tests := []struct {
		name string
		fact Fact
		want string
	}{
		{"no args", New(RelVerum), "verum."},
		{"one arg", New(RelAction, "move"), "action(move)."},
		{"many args", New(RelAdd, "e", "v", "true"), "add(e,v,true)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fact.String())
		})
	}
}
