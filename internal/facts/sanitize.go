package facts

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// escapeChar starts every escape sequence. Each sequence is the escape
// character followed by a single code letter (plus a payload for some
// codes), which keeps the encoding prefix-free and therefore injective.
const escapeChar = '_'

var escapes = map[rune]byte{
	'_': 'u',
	'-': 'h',
	' ': 's',
	'(': 'l',
	')': 'r',
	',': 'c',
}

// Sanitize turns an arbitrary name into a lowercase fact-language
// identifier.
//
//	[a-z0-9]      kept as is (a leading digit d becomes "_d"+d)
//	_ - ␠ ( ) ,   "_u" "_h" "_s" "_l" "_r" "_c"
//	A-Z           "_k" + lowercase letter
//	anything else "_x" + lowercase hex code point + "_"
//	invalid UTF-8  "_y" + two hex digits per byte
//
// The output always starts with a lowercase letter or an underscore
// followed by a lowercase letter. Distinct inputs never share an output.
// Applying Sanitize twice is not the identity, so names are sanitized
// exactly once, at rendering time.
func Sanitize(name string) string {
	if name == "" {
		return "_e"
	}
	if isSafe(name) {
		return name
	}

	var sb strings.Builder
	sb.Grow(len(name) + 8)
	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteRune(escapeChar)
				sb.WriteByte('d')
			}
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(escapeChar)
			sb.WriteByte('k')
			sb.WriteRune(r - 'A' + 'a')
		case r == utf8.RuneError && size == 1:
			// invalid byte, encoded on its own
			sb.WriteRune(escapeChar)
			sb.WriteByte('y')
			sb.WriteString(hex2(name[i]))
		default:
			sb.WriteRune(escapeChar)
			if code, ok := escapes[r]; ok {
				sb.WriteByte(code)
				break
			}
			sb.WriteByte('x')
			sb.WriteString(strconv.FormatInt(int64(r), 16))
			sb.WriteRune(escapeChar)
		}
		i += size
	}
	return sb.String()
}

// isSafe reports whether name already is a valid identifier that Sanitize
// leaves untouched: a lowercase letter followed by lowercase letters and
// digits.
func isSafe(name string) bool {
	if name[0] < 'a' || name[0] > 'z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func hex2(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0f]})
}
