package cxx

// punctuators longest first, so the first prefix match is the maximal munch.
var punctuators = []string{
	"%:%:", "<<=", ">>=", "...", "->*", "<=>",
	"::", "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", ".*", "##",
}

// tokenLen returns the length of the preprocessing token at the start of b,
// or zero when b starts with whitespace or is empty.
func tokenLen(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	c := b[0]
	switch {
	case isIdentStart(c):
		n := 1
		for n < len(b) && isIdentChar(b[n]) {
			n++
		}
		// Encoding prefixes such as L"..." and u8'x'.
		if n < len(b) && (b[n] == '"' || b[n] == '\'') && isLiteralPrefix(string(b[:n])) {
			return n + quotedLen(b[n:])
		}
		return n
	case isDigit(c) || (c == '.' && len(b) > 1 && isDigit(b[1])):
		n := 1
		for n < len(b) {
			switch d := b[n]; {
			case (d == '+' || d == '-') && isExponent(b[n-1]):
				n++
			case isIdentChar(d) || d == '.' || d == '\'':
				n++
			default:
				return n
			}
		}
		return n
	case c == '"' || c == '\'':
		return quotedLen(b)
	case isSpace(c):
		return 0
	}
	for _, p := range punctuators {
		if len(b) >= len(p) && string(b[:len(p)]) == p {
			return len(p)
		}
	}
	return 1
}

// quotedLen returns the length of the string or character literal at the
// start of b, stopping at an unescaped closing quote or the end of the line.
func quotedLen(b []byte) int {
	q := b[0]
	for n := 1; n < len(b); n++ {
		switch b[n] {
		case '\\':
			n++
		case q:
			return n + 1
		case '\n':
			return n
		}
	}
	return len(b)
}

func isLiteralPrefix(s string) bool {
	switch s {
	case "L", "u", "U", "u8", "R", "LR", "uR", "UR", "u8R":
		return true
	}
	return false
}

func isExponent(c byte) bool {
	return c == 'e' || c == 'E' || c == 'p' || c == 'P'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\v', '\r', '\n', '\f':
		return true
	}
	return false
}

// lastTokenStart returns the offset, relative to b, of the last token in b.
func lastTokenStart(b []byte) int {
	last := 0
	for i := 0; i < len(b); {
		if isSpace(b[i]) {
			i++
			continue
		}
		if b[i] == '\\' && i+1 < len(b) && (b[i+1] == '\n' || b[i+1] == '\r') {
			i += 2
			continue
		}
		last = i
		i += max(tokenLen(b[i:]), 1)
	}
	return last
}
