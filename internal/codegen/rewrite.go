package codegen

import (
	"strings"

	"github.com/signalize/signalize/internal/dartast"
)

// Accessor rewriting. One engine covers every context the transformer needs:
// bare reads, assignment targets, ++/--, and string interpolation all reduce
// to suffixing a word-bounded occurrence, and the already-suffixed guard
// makes repeated application a no-op.

// RewriteAccessors routes every read/write of the named dependencies in body
// through the .value accessor.
func RewriteAccessors(body string, names []string) string {
	for _, n := range names {
		body = rewriteName(body, n, ".value")
	}
	return body
}

// RewriteEnvironment routes environment-sourced names through the double
// accessor (the ambient lookup hands out a cell wrapped in a cell). Two
// guarded passes: fresh names pick up one suffix per pass and the full form
// is the fixed point.
func RewriteEnvironment(body string, names []string) string {
	for _, n := range names {
		body = rewriteName(body, n, ".value.value")
		body = rewriteName(body, n, ".value.value")
	}
	return body
}

// declKeywords mark a following identifier as a declaration site, which is
// never rewritten.
var declKeywords = map[string]bool{"var": true, "final": true, "const": true, "late": true}

// rewriteName appends one .value to occurrences of name in body, unless the
// occurrence already carries the guard suffix. It skips string contents
// (interpolations are code), comments, call positions, member-access tails,
// and declaration sites.
func rewriteName(body, name, guard string) string {
	src := []byte(body)
	var b strings.Builder
	b.Grow(len(body) + 16)
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && (src[i+1] == '/' || src[i+1] == '*'):
			j := commentEnd(src, i)
			b.Write(src[i:j])
			i = j
		case c == 'r' && i+1 < len(src) && (src[i+1] == '\'' || src[i+1] == '"'):
			j := dartast.SkipString(src, i+1, true)
			b.Write(src[i:j])
			i = j
		case c == '\'' || c == '"':
			j := dartast.SkipString(src, i, false)
			b.WriteString(rewriteInString(string(src[i:j]), name, guard))
			i = j
		case isWordStart(c):
			word, j := readWord(src, i)
			if word == name && !skipOccurrence(src, i, j, guard) {
				b.WriteString(word)
				b.WriteString(".value")
			} else {
				b.WriteString(word)
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func skipOccurrence(src []byte, start, end int, guard string) bool {
	// declaration site: var/final/const/late name
	if declKeywords[prevWord(src, start)] {
		return true
	}
	// member-access tail (one or two dots); a spread's three dots keep the
	// occurrence rewritable
	dots := 0
	for k := start - 1; k >= 0 && src[k] == '.'; k-- {
		dots++
	}
	if dots == 1 || dots == 2 {
		return true
	}
	// call position
	if nextNonSpace(src, end) == '(' {
		return true
	}
	// adjacent named-argument label
	if end < len(src) && src[end] == ':' {
		return true
	}
	// already suffixed to the target depth
	return hasGuard(src, end, guard)
}

// hasGuard reports whether the guard suffix follows end, token-bounded.
func hasGuard(src []byte, end int, guard string) bool {
	if end+len(guard) > len(src) {
		return false
	}
	if string(src[end:end+len(guard)]) != guard {
		return false
	}
	rest := end + len(guard)
	return rest >= len(src) || !isWordByte(src[rest])
}

// rewriteInString handles one non-raw string literal: $name becomes
// ${name-with-suffix} and ${expr} interiors are rewritten as code.
func rewriteInString(lit, name, guard string) string {
	src := []byte(lit)
	var b strings.Builder
	b.Grow(len(lit) + 16)
	i := 0
	for i < len(src) {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			b.Write(src[i : i+2])
			i += 2
			continue
		}
		if c == '$' && i+1 < len(src) && src[i+1] == '{' {
			past := dartast.Balanced(src, i+1, len(src))
			inner := string(src[i+2 : past-1])
			b.WriteString("${")
			b.WriteString(rewriteName(inner, name, guard))
			b.WriteString("}")
			i = past
			continue
		}
		if c == '$' && i+1 < len(src) && isWordStart(src[i+1]) {
			word, j := readWord(src, i+1)
			if word == name {
				b.WriteString("${")
				b.WriteString(word)
				b.WriteString(".value}")
			} else {
				b.WriteByte('$')
				b.WriteString(word)
			}
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// RewriteWidgetRefs prefixes reads of constructor-bound fields with the
// widget accessor, for bodies that move onto the state half of a converted
// widget pair while the fields stay on the widget.
func RewriteWidgetRefs(body string, names []string) string {
	for _, n := range names {
		body = prefixName(body, n)
	}
	return body
}

func prefixName(body, name string) string {
	src := []byte(body)
	var b strings.Builder
	b.Grow(len(body) + 16)
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && (src[i+1] == '/' || src[i+1] == '*'):
			j := commentEnd(src, i)
			b.Write(src[i:j])
			i = j
		case c == 'r' && i+1 < len(src) && (src[i+1] == '\'' || src[i+1] == '"'):
			j := dartast.SkipString(src, i+1, true)
			b.Write(src[i:j])
			i = j
		case c == '\'' || c == '"':
			j := dartast.SkipString(src, i, false)
			b.WriteString(prefixInString(string(src[i:j]), name))
			i = j
		case isWordStart(c):
			word, j := readWord(src, i)
			if word == name && !skipPrefix(src, i, j) {
				b.WriteString("widget.")
			}
			b.WriteString(word)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func skipPrefix(src []byte, start, end int) bool {
	if declKeywords[prevWord(src, start)] {
		return true
	}
	dots := 0
	for k := start - 1; k >= 0 && src[k] == '.'; k-- {
		dots++
	}
	if dots == 1 || dots == 2 {
		return true
	}
	if end < len(src) && src[end] == ':' {
		return true
	}
	return false
}

func prefixInString(lit, name string) string {
	src := []byte(lit)
	var b strings.Builder
	b.Grow(len(lit) + 16)
	i := 0
	for i < len(src) {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			b.Write(src[i : i+2])
			i += 2
			continue
		}
		if c == '$' && i+1 < len(src) && src[i+1] == '{' {
			past := dartast.Balanced(src, i+1, len(src))
			inner := string(src[i+2 : past-1])
			b.WriteString("${")
			b.WriteString(prefixName(inner, name))
			b.WriteString("}")
			i = past
			continue
		}
		if c == '$' && i+1 < len(src) && isWordStart(src[i+1]) {
			word, j := readWord(src, i+1)
			if word == name {
				b.WriteString("${widget.")
				b.WriteString(word)
				b.WriteString("}")
			} else {
				b.WriteByte('$')
				b.WriteString(word)
			}
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func commentEnd(src []byte, i int) int {
	if src[i+1] == '/' {
		for i < len(src) && src[i] != '\n' {
			i++
		}
		return i
	}
	i += 2
	for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
		i++
	}
	if i+1 < len(src) {
		return i + 2
	}
	return len(src)
}

func prevWord(src []byte, i int) string {
	for i > 0 && isSpace(src[i-1]) {
		i--
	}
	end := i
	for i > 0 && isWordByte(src[i-1]) {
		i--
	}
	return string(src[i:end])
}

func nextNonSpace(src []byte, i int) byte {
	for i < len(src) {
		if !isSpace(src[i]) {
			return src[i]
		}
		i++
	}
	return 0
}

func readWord(src []byte, i int) (string, int) {
	j := i
	for j < len(src) && isWordByte(src[j]) {
		j++
	}
	return string(src[i:j]), j
}

func isWordStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordByte(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
