package dartast

import (
	"strings"

	"github.com/signalize/signalize/internal/ir"
)

// Textual scanning helpers. The tree gives reliable boundaries for classes
// and identifiers; member segmentation and delimiter matching run directly
// on the source bytes so the exact grammar shape of declarations stays out
// of the picture. Every scanner skips string literals (raw, triple-quoted,
// and interpolated forms) and comments, so structural characters inside
// them never affect depth tracking.

// SkipSpace advances past whitespace and comments.
func SkipSpace(src []byte, i, end int) int {
	for i < end {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '/' && i+1 < end && src[i+1] == '/':
			for i < end && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < end && src[i+1] == '*':
			i += 2
			for i+1 < end && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			if i+1 < end {
				i += 2
			} else {
				i = end
			}
		default:
			return i
		}
	}
	return end
}

// skipBlank advances past whitespace only, stopping at comments.
func skipBlank(src []byte, i, end int) int {
	for i < end {
		c := src[i]
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			return i
		}
		i++
	}
	return end
}

// SkipString advances past the string literal whose opening quote is at i.
// Raw literals have no escapes and no interpolation. Interpolation
// expressions are scanned as code, so nested strings and braces do not cut
// the literal short.
func SkipString(src []byte, i int, raw bool) int {
	end := len(src)
	q := src[i]
	triple := i+2 < end && src[i+1] == q && src[i+2] == q
	if triple {
		i += 3
	} else {
		i++
	}
	for i < end {
		c := src[i]
		if !raw && c == '\\' {
			i += 2
			continue
		}
		if !raw && c == '$' && i+1 < end && src[i+1] == '{' {
			i = Balanced(src, i+1, end)
			continue
		}
		if c == q {
			if !triple {
				return i + 1
			}
			if i+2 < end && src[i+1] == q && src[i+2] == q {
				return i + 3
			}
		}
		i++
	}
	return end
}

// Balanced advances past a () / [] / {} group. i must point at the opening
// delimiter; the returned index is just past its match, or end when the
// group never closes.
func Balanced(src []byte, i, end int) int {
	open := src[i]
	var close byte
	switch open {
	case '(':
		close = ')'
	case '[':
		close = ']'
	case '{':
		close = '}'
	default:
		return i + 1
	}
	depth := 0
	for i < end {
		c := src[i]
		switch {
		case c == '/' && i+1 < end && (src[i+1] == '/' || src[i+1] == '*'):
			i = SkipSpace(src, i, end)
		case c == 'r' && i+1 < end && (src[i+1] == '\'' || src[i+1] == '"'):
			i = SkipString(src, i+1, true)
		case c == '\'' || c == '"':
			i = SkipString(src, i, false)
		default:
			if c == open {
				depth++
			} else if c == close {
				depth--
				if depth == 0 {
					return i + 1
				}
			}
			i++
		}
	}
	return end
}

// TopLevelIndex returns the index of the first byte from stops found at the
// starting delimiter depth, skipping strings, comments, and nested groups.
// It returns end when no stop occurs.
func TopLevelIndex(src []byte, i, end int, stops string) int {
	for i < end {
		c := src[i]
		switch {
		case c == '/' && i+1 < end && (src[i+1] == '/' || src[i+1] == '*'):
			i = SkipSpace(src, i, end)
		case c == 'r' && i+1 < end && (src[i+1] == '\'' || src[i+1] == '"'):
			i = SkipString(src, i+1, true)
		case c == '\'' || c == '"':
			i = SkipString(src, i, false)
		case strings.IndexByte(stops, c) >= 0:
			return i
		case c == '(' || c == '[' || c == '{':
			i = Balanced(src, i, end)
		case c == ')' || c == ']' || c == '}':
			// stray close: the caller's range was wrong, give up
			return end
		default:
			i++
		}
	}
	return end
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// identAt reads the identifier starting at i, returning its text and the
// index just past it.
func identAt(src []byte, i, end int) (string, int) {
	j := i
	for j < end && isIdentByte(src[j]) {
		j++
	}
	return string(src[i:j]), j
}

// segmentMembers splits src[start:end) into declaration spans: a class body
// into members, or a whole file into top-level declarations. Each span runs
// from its first annotation through the terminating semicolon or block
// close.
func segmentMembers(u *Unit, start, end int) []Member {
	src := u.Src
	var members []Member
	i := start
	for i < end {
		lead := skipBlank(src, i, end)
		i = SkipSpace(src, lead, end)
		if i >= end {
			break
		}
		m := Member{Lead: lead, Start: i}

		// leading annotations
		for i < end && src[i] == '@' {
			annStart := i
			j := i + 1
			for j < end && (isIdentByte(src[j]) || src[j] == '.') {
				j++
			}
			name := string(src[i+1 : j])
			if name == "" {
				j++
				i = SkipSpace(src, j, end)
				continue
			}
			args := ""
			k := SkipSpace(src, j, end)
			if k < end && src[k] == '(' {
				past := Balanced(src, k, end)
				args = string(src[k+1 : past-1])
				k = past
			}
			m.Annotations = append(m.Annotations, ir.RawAnnotation{
				Name: name,
				Args: args,
				Loc:  ir.Location{File: u.File, Line: u.lineOf(annStart)},
			})
			i = SkipSpace(src, k, end)
		}
		if i >= end {
			break
		}

		m.DeclStart = i
		m.Line = u.lineOf(i)
		m.End = end

		// decide where the declaration terminates: the first top-level
		// semicolon, an = initializer or => body running to a semicolon, or
		// a block body's matching close brace. Constructor initializer
		// lists (`: x = 1`) keep scanning past their assignments.
		j := i
		sawParams := false
		ctorInit := false
	scan:
		for j < end {
			k := TopLevelIndex(src, j, end, ";={(:")
			if k >= end {
				m.End = end
				break
			}
			switch src[k] {
			case ';':
				m.End = k + 1
				break scan
			case '(':
				sawParams = true
				j = Balanced(src, k, end)
			case ':':
				if sawParams {
					ctorInit = true
				}
				j = k + 1
			case '{':
				m.End = Balanced(src, k, end)
				break scan
			case '=':
				if k+1 < end && src[k+1] == '>' {
					t := TopLevelIndex(src, k+2, end, ";")
					m.End = min(t+1, end)
					break scan
				}
				if k+1 < end && src[k+1] == '=' {
					j = k + 2
					continue
				}
				if k > start && (src[k-1] == '!' || src[k-1] == '<' || src[k-1] == '>') {
					j = k + 1
					continue
				}
				if ctorInit {
					j = k + 1
					continue
				}
				t := TopLevelIndex(src, k+1, end, ";")
				m.End = min(t+1, end)
				break scan
			}
		}

		members = append(members, m)
		i = m.End
	}
	return members
}

// interpolationRefs recovers identifier occurrences inside string
// interpolations in src[start:end). Plain string contents are opaque to the
// grammar's tokenizer, so `$name` and `${expr}` references are collected
// textually and merged with the tree walk by position.
func interpolationRefs(src []byte, start, end int) []Ident {
	var out []Ident
	i := start
	for i < end {
		c := src[i]
		switch {
		case c == '/' && i+1 < end && (src[i+1] == '/' || src[i+1] == '*'):
			i = SkipSpace(src, i, end)
		case c == 'r' && i+1 < end && (src[i+1] == '\'' || src[i+1] == '"'):
			i = SkipString(src, i+1, true)
		case c == '\'' || c == '"':
			past := SkipString(src, i, false)
			out = append(out, stringRefs(src, i, past)...)
			i = past
		default:
			i++
		}
	}
	return out
}

// stringRefs scans one non-raw string literal for interpolation references.
func stringRefs(src []byte, i, end int) []Ident {
	var out []Ident
	for i < end {
		c := src[i]
		if c == '\\' {
			i += 2
			continue
		}
		if c != '$' || i+1 >= end {
			i++
			continue
		}
		if src[i+1] == '{' {
			past := Balanced(src, i+1, end)
			out = append(out, exprRefs(src, i+2, past-1)...)
			i = past
			continue
		}
		if isIdentStart(src[i+1]) {
			name, j := identAt(src, i+1, end)
			out = append(out, Ident{Name: name, Start: i + 1, End: j})
			i = j
			continue
		}
		i++
	}
	return out
}

// exprRefs textually collects identifiers in an interpolation expression.
func exprRefs(src []byte, i, end int) []Ident {
	var out []Ident
	for i < end {
		c := src[i]
		switch {
		case c == 'r' && i+1 < end && (src[i+1] == '\'' || src[i+1] == '"'):
			i = SkipString(src, i+1, true)
		case c == '\'' || c == '"':
			i = SkipString(src, i, false)
		case isIdentStart(c):
			name, j := identAt(src, i, end)
			out = append(out, Ident{Name: name, Start: i, End: j})
			i = j
		default:
			i++
		}
	}
	return out
}
