package transform

import (
	"regexp"
	"sort"

	"github.com/signalize/signalize/internal/dartast"
)

// Rebuild-boundary wrapping. Reads of a reactive name only retrigger a
// rebuild from inside a Watch builder, so the pre-wrap pass puts the
// boundary around the smallest widget construction that performs the read
// and leaves the rest of the tree alone.

var watchRe = regexp.MustCompile(`\bWatch\s*\(`)

type span struct{ start, end int }

// wrapReactive wraps the minimal widget-constructor calls in text whose
// arguments read one of the trigger names in Watch((context) => ...).
// Tri-state dispatches on a query name are wrapped as whole expressions. A
// method already containing a Watch call is left alone.
func wrapReactive(text string, triggers, queries []string) string {
	if len(triggers) == 0 || watchRe.MatchString(text) {
		return text
	}
	src := []byte(text)

	var wraps []span
	for _, q := range queries {
		wraps = append(wraps, dispatchSpans(src, q)...)
	}

	groups := callGroups(src)
	for _, name := range triggers {
		for _, occ := range codeOccurrences(src, 0, len(src), name) {
			if inSpans(wraps, occ) {
				continue
			}
			if g, ok := minimalGroup(groups, occ); ok {
				wraps = append(wraps, g)
			}
		}
	}
	if len(wraps) == 0 {
		return text
	}

	wraps = outermost(wraps)
	edits := make([]edit, 0, len(wraps))
	for _, w := range wraps {
		edits = append(edits, edit{w.start, w.end, "Watch((context) => " + string(src[w.start:w.end]) + ")"})
	}
	out, err := applyEdits(src, edits)
	if err != nil {
		return text
	}
	return string(out)
}

// codeOccurrences finds offsets where name is read in the code region
// [start, end): word occurrences outside declaration sites, member-access
// tails, and named-argument labels, plus references inside string
// interpolations.
func codeOccurrences(src []byte, start, end int, name string) []int {
	var out []int
	i := start
	for i < end {
		c := src[i]
		switch {
		case c == '/' && i+1 < end && (src[i+1] == '/' || src[i+1] == '*'):
			i = dartast.SkipSpace(src, i, end)
		case c == 'r' && i+1 < end && (src[i+1] == '\'' || src[i+1] == '"'):
			i = dartast.SkipString(src, i+1, true)
		case c == '\'' || c == '"':
			j := dartast.SkipString(src, i, false)
			out = append(out, stringOccurrences(src, i, j, name)...)
			i = j
		case wordStart(c):
			w, j := word(src, i)
			if w == name && readsName(src, i, j) {
				out = append(out, i)
			}
			i = j
		default:
			i++
		}
	}
	return out
}

// stringOccurrences finds interpolation references to name inside one
// non-raw string literal.
func stringOccurrences(src []byte, start, end int, name string) []int {
	var out []int
	i := start
	for i < end {
		c := src[i]
		if c == '\\' {
			i += 2
			continue
		}
		if c == '$' && i+1 < end && src[i+1] == '{' {
			past := dartast.Balanced(src, i+1, end)
			out = append(out, codeOccurrences(src, i+2, past-1, name)...)
			i = past
			continue
		}
		if c == '$' && i+1 < end && wordStart(src[i+1]) {
			w, j := word(src, i+1)
			if w == name {
				out = append(out, i+1)
			}
			i = j
			continue
		}
		i++
	}
	return out
}

func readsName(src []byte, start, end int) bool {
	if start > 0 && src[start-1] == '.' {
		return false
	}
	if prevWordIsDecl(src, start) {
		return false
	}
	if end < len(src) && src[end] == ':' {
		return false
	}
	return true
}

// dispatchSpans finds name.state.on(...) expressions, balanced over the
// dispatch arguments.
func dispatchSpans(src []byte, name string) []span {
	var out []span
	for _, occ := range codeOccurrences(src, 0, len(src), name) {
		i := expectMember(src, occ+len(name), "state")
		i = expectMember(src, i, "on")
		if i < 0 {
			continue
		}
		j := spaceEnd(src, i)
		if j >= len(src) || src[j] != '(' {
			continue
		}
		out = append(out, span{occ, dartast.Balanced(src, j, len(src))})
	}
	return out
}

// expectMember matches `.member` from i, spaces tolerated, returning the
// offset past the member name or -1.
func expectMember(src []byte, i int, member string) int {
	if i < 0 {
		return -1
	}
	i = spaceEnd(src, i)
	if i >= len(src) || src[i] != '.' {
		return -1
	}
	i = spaceEnd(src, i+1)
	w, j := word(src, i)
	if w != member {
		return -1
	}
	return j
}

// callGroup is one constructor-call expression: callee identifier through
// the matching close paren.
type callGroup struct {
	start int // callee identifier offset
	end   int // one past the close paren
}

// callGroups collects widget-constructor calls (uppercase callee, private
// prefix tolerated) anywhere in src, nested ones included.
func callGroups(src []byte) []callGroup {
	type opening struct {
		start  int
		widget bool
	}
	var stack []opening
	var out []callGroup

	lastWord := -1
	lastEnd := -1
	lastText := ""
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && (src[i+1] == '/' || src[i+1] == '*'):
			i = dartast.SkipSpace(src, i, len(src))
			lastWord = -1
		case c == 'r' && i+1 < len(src) && (src[i+1] == '\'' || src[i+1] == '"'):
			i = dartast.SkipString(src, i+1, true)
			lastWord = -1
		case c == '\'' || c == '"':
			i = dartast.SkipString(src, i, false)
			lastWord = -1
		case wordStart(c):
			lastText, i = word(src, i)
			lastWord = i - len(lastText)
			lastEnd = i
		case c == '<':
			if lastWord >= 0 && spaceEnd(src, lastEnd) == i {
				if g := angleSpan(src, i); g > 0 {
					lastEnd = g
					i = g
					continue
				}
			}
			lastWord = -1
			i++
		case c == '(':
			o := opening{start: -1}
			if lastWord >= 0 && spaceEnd(src, lastEnd) == i {
				o.start = lastWord
				o.widget = widgetName(lastText)
			}
			stack = append(stack, o)
			lastWord = -1
			i++
		case c == ')':
			if n := len(stack); n > 0 {
				o := stack[n-1]
				stack = stack[:n-1]
				if o.start >= 0 && o.widget {
					out = append(out, callGroup{start: o.start, end: i + 1})
				}
			}
			lastWord = -1
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		default:
			if c != ',' && c != '[' && c != ']' && c != '{' && c != '}' {
				lastWord = -1
			}
			i++
		}
	}
	return out
}

// angleSpan scans a type-argument group starting at '<', returning the
// offset past the matching '>' or -1 when the content cannot be a type
// list.
func angleSpan(src []byte, i int) int {
	depth := 0
	for ; i < len(src); i++ {
		switch c := src[i]; {
		case c == '<':
			depth++
		case c == '>':
			depth--
			if depth == 0 {
				return i + 1
			}
		case wordByte(c) || c == ',' || c == '?' || c == '.' || c == ' ' || c == '\t':
		default:
			return -1
		}
	}
	return -1
}

// widgetName reports whether an identifier looks like a widget
// constructor: uppercase first letter, leading underscores allowed.
func widgetName(name string) bool {
	for k := 0; k < len(name); k++ {
		if name[k] == '_' {
			continue
		}
		return name[k] >= 'A' && name[k] <= 'Z'
	}
	return false
}

// minimalGroup picks the smallest call group whose arguments contain occ.
func minimalGroup(groups []callGroup, occ int) (span, bool) {
	best := span{}
	found := false
	for _, g := range groups {
		if occ <= g.start || occ >= g.end-1 {
			continue
		}
		if !found || g.end-g.start < best.end-best.start {
			best = span{g.start, g.end}
			found = true
		}
	}
	return best, found
}

func inSpans(spans []span, occ int) bool {
	for _, s := range spans {
		if occ >= s.start && occ < s.end {
			return true
		}
	}
	return false
}

// outermost drops spans contained in another selected span, so nested wrap
// candidates collapse into the enclosing one.
func outermost(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})
	var kept []span
	for _, s := range spans {
		contained := false
		for _, k := range kept {
			if s.start >= k.start && s.end <= k.end {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, s)
		}
	}
	return kept
}
