// Package analyze classifies segmented class members and extracts their
// structural descriptors: field name/type/initializer, getter body
// expression, method body and parameters. It is annotation-unaware; the
// transformer decides what to do with the result.
package analyze

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/signalize/signalize/internal/dartast"
	"github.com/signalize/signalize/internal/ir"
)

// Decl is a classified member with its descriptor. Exactly one of Field,
// Getter, Method is set for the matching kind; constructors carry only
// ThisParams.
type Decl struct {
	Kind ir.MemberKind
	Name string

	Field  *ir.Field
	Getter *ir.Getter
	Method *ir.Method

	// ThisParams lists field names bound by this.x constructor parameters.
	ThisParams []string
}

var declModifiers = map[string]bool{
	"static": true, "final": true, "const": true, "late": true,
	"covariant": true, "var": true, "external": true, "factory": true,
	"required": true,
}

var (
	getterRe = regexp.MustCompile(`\bget\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	thisRe   = regexp.MustCompile(`\bthis\.([A-Za-z_$][A-Za-z0-9_$]*)`)
)

// Member classifies and extracts one segmented member of the named class.
// A declaration whose structure cannot be read yields an AnalysisError.
func Member(u *dartast.Unit, className string, m dartast.Member) (decl *Decl, err error) {
	loc := ir.Location{File: u.File, Line: m.Line}

	// a malformed shape can drive the span scans out of bounds; the panic
	// is confined to this member
	defer func() {
		if r := recover(); r != nil {
			decl, err = nil, &ir.AnalysisError{Decl: className, Reason: fmt.Sprintf("unreadable declaration: %v", r), Loc: loc}
		}
	}()

	src := u.Src
	start, end := m.DeclStart, m.End
	text := u.Text(start, end)

	if gm := getterRe.FindStringIndex(text); gm != nil && gm[0] < structuralLimit(src, start, end)-start {
		return getter(u, m, gm, loc)
	}

	parenIdx := dartast.TopLevelIndex(src, start, end, "(")
	if parenIdx < firstAssignOrSemi(src, start, end) {
		return callable(u, className, m, parenIdx, loc)
	}

	return field(u, m, loc)
}

// structuralLimit is the offset of the first top-level =, (, { or ; in the
// declaration: a getter keyword is only real when it appears before any of
// them.
func structuralLimit(src []byte, start, end int) int {
	return dartast.TopLevelIndex(src, start, end, "=({;")
}

// firstAssignOrSemi finds the first top-level assignment = or ; so that a
// paren after it (a closure initializer) does not look like a method.
func firstAssignOrSemi(src []byte, start, end int) int {
	i := start
	for i < end {
		k := dartast.TopLevelIndex(src, i, end, "=;")
		if k >= end {
			return end
		}
		if src[k] == ';' {
			return k
		}
		if k+1 < end && (src[k+1] == '=' || src[k+1] == '>') {
			i = k + 2
			continue
		}
		if k > start && (src[k-1] == '!' || src[k-1] == '<' || src[k-1] == '>') {
			i = k + 1
			continue
		}
		return k
	}
	return end
}

func getter(u *dartast.Unit, m dartast.Member, gm []int, loc ir.Location) (*Decl, error) {
	src := u.Src
	start, end := m.DeclStart, m.End
	text := u.Text(start, end)

	name := getterRe.FindStringSubmatch(text[gm[0]:gm[1]])[1]
	retType := strings.TrimSpace(stripModifiers(text[:gm[0]]))
	if retType == "" {
		retType = "dynamic"
	}

	g := &ir.Getter{
		Name:     name,
		Type:     retType,
		Nullable: strings.HasSuffix(retType, "?"),
		Loc:      loc,
	}

	bodyIdx := dartast.TopLevelIndex(src, start+gm[1], end, "={")
	switch {
	case bodyIdx < end && src[bodyIdx] == '=' && bodyIdx+1 < end && src[bodyIdx+1] == '>':
		exprStart := dartast.SkipSpace(src, bodyIdx+2, end)
		exprEnd := trimExprEnd(src, exprStart, end)
		g.BodySpan = ir.Span{Start: exprStart, End: exprEnd}
		g.Body = u.Text(exprStart, exprEnd)
	case bodyIdx < end && src[bodyIdx] == '{':
		open := bodyIdx
		close := dartast.Balanced(src, open, end) - 1
		if span, ok := blockReturnExpr(src, open+1, close); ok {
			g.BodySpan = span
			g.Body = u.Text(span.Start, span.End)
		}
	}

	return &Decl{Kind: ir.MemberGetter, Name: name, Getter: g}, nil
}

// blockReturnExpr reads the value expression of a block body whose last
// statement is a return. Any return earlier in the block, or a block ending
// in something other than a return, yields no expression.
func blockReturnExpr(src []byte, start, end int) (ir.Span, bool) {
	r := firstReturnWord(src, start, end)
	if r >= end {
		return ir.Span{}, false
	}
	// the return must open its own statement in the block
	if p := lastCodeByte(src, start, r); p >= start && src[p] != ';' && src[p] != '}' {
		return ir.Span{}, false
	}
	semi := dartast.TopLevelIndex(src, r, end, ";")
	if semi >= end || dartast.SkipSpace(src, semi+1, end) < end {
		return ir.Span{}, false
	}
	exprStart := dartast.SkipSpace(src, r+len("return"), semi)
	return ir.Span{Start: exprStart, End: semi}, true
}

// firstReturnWord finds the first return keyword in src[i:end) at any
// nesting depth, skipping strings and comments. Returns end when the range
// has none.
func firstReturnWord(src []byte, i, end int) int {
	for i < end {
		c := src[i]
		switch {
		case c == '/' && i+1 < end && (src[i+1] == '/' || src[i+1] == '*'):
			i = dartast.SkipSpace(src, i, end)
		case c == 'r' && i+1 < end && (src[i+1] == '\'' || src[i+1] == '"'):
			i = dartast.SkipString(src, i+1, true)
		case c == '\'' || c == '"':
			i = dartast.SkipString(src, i, false)
		case isIdentByteAt(src, i):
			word, j := identWord(src, i, end)
			if word == "return" {
				return i
			}
			i = j
		default:
			i++
		}
	}
	return end
}

// lastCodeByte returns the index of the last byte in src[start:end) that is
// not whitespace or comment text, or -1 when the range holds none.
func lastCodeByte(src []byte, start, end int) int {
	last := -1
	i := start
	for i < end {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '/' && i+1 < end && (src[i+1] == '/' || src[i+1] == '*'):
			i = dartast.SkipSpace(src, i, end)
		case c == 'r' && i+1 < end && (src[i+1] == '\'' || src[i+1] == '"'):
			i = dartast.SkipString(src, i+1, true)
			last = i - 1
		case c == '\'' || c == '"':
			i = dartast.SkipString(src, i, false)
			last = i - 1
		default:
			last = i
			i++
		}
	}
	return last
}

func callable(u *dartast.Unit, className string, m dartast.Member, parenIdx int, loc ir.Location) (*Decl, error) {
	src := u.Src
	start, end := m.DeclStart, m.End

	nameEnd := parenIdx
	for nameEnd > start && (src[nameEnd-1] == ' ' || src[nameEnd-1] == '\t' || src[nameEnd-1] == '\n' || src[nameEnd-1] == '\r') {
		nameEnd--
	}
	nameStart := nameEnd
	for nameStart > start && isIdentByteAt(src, nameStart-1) {
		nameStart--
	}
	if nameStart == nameEnd {
		return nil, &ir.AnalysisError{Decl: className, Reason: "callable declaration has no name", Loc: loc}
	}
	name := u.Text(nameStart, nameEnd)

	paramsEnd := dartast.Balanced(src, parenIdx, end)
	paramsText := u.Text(parenIdx+1, paramsEnd-1)

	// constructor: the name (or its dotted prefix) is the class name
	isCtor := name == className
	if !isCtor && nameStart > start && src[nameStart-1] == '.' {
		prefixEnd := nameStart - 1
		prefixStart := prefixEnd
		for prefixStart > start && isIdentByteAt(src, prefixStart-1) {
			prefixStart--
		}
		if u.Text(prefixStart, prefixEnd) == className {
			isCtor = true
			name = className + "." + name
		}
	}
	if isCtor {
		d := &Decl{Kind: ir.MemberConstructor, Name: name}
		for _, tm := range thisRe.FindAllStringSubmatch(paramsText, -1) {
			d.ThisParams = append(d.ThisParams, tm[1])
		}
		return d, nil
	}

	retType := strings.TrimSpace(stripModifiers(u.Text(start, nameStart)))

	meth := &ir.Method{
		Name:       name,
		ReturnType: retType,
		Params:     parseParams(paramsText),
		Loc:        loc,
	}

	bodyStart := dartast.SkipSpace(src, paramsEnd, end)
	if bodyStart < end && src[bodyStart] != ';' {
		bodyEnd := trimExprEnd(src, bodyStart, end)
		meth.BodySpan = ir.Span{Start: bodyStart, End: bodyEnd}
		meth.Body = u.Text(bodyStart, bodyEnd)
		meth.Async = strings.HasPrefix(meth.Body, "async")
	}

	return &Decl{Kind: ir.MemberMethod, Name: name, Method: meth}, nil
}

func field(u *dartast.Unit, m dartast.Member, loc ir.Location) (*Decl, error) {
	src := u.Src
	start, end := m.DeclStart, m.End

	i := start
	var isFinal, isConst bool
	for {
		j := dartast.SkipSpace(src, i, end)
		if j >= end || !isIdentByteAt(src, j) {
			i = j
			break
		}
		word, k := identWord(src, j, end)
		if !declModifiers[word] {
			i = j
			break
		}
		switch word {
		case "final":
			isFinal = true
		case "const":
			isConst = true
		}
		i = k
	}

	boundary := firstVariableBoundary(src, i, end)
	nameEnd := boundary
	for nameEnd > i && isSpaceAt(src, nameEnd-1) {
		nameEnd--
	}
	nameStart := nameEnd
	for nameStart > i && isIdentByteAt(src, nameStart-1) {
		nameStart--
	}
	if nameStart == nameEnd {
		return nil, &ir.AnalysisError{Reason: "field declaration names no variable", Loc: loc}
	}

	f := &ir.Field{
		Name:  u.Text(nameStart, nameEnd),
		Type:  strings.TrimSpace(u.Text(i, nameStart)),
		Final: isFinal,
		Const: isConst,
		Loc:   loc,
	}
	if f.Type == "" {
		f.Type = "dynamic"
	}
	f.Nullable = strings.HasSuffix(f.Type, "?")

	if boundary < end && src[boundary] == '=' {
		initStart := dartast.SkipSpace(src, boundary+1, end)
		initEnd := dartast.TopLevelIndex(src, initStart, end, ",;")
		f.InitSpan = ir.Span{Start: initStart, End: initEnd}
		f.Initializer = strings.TrimSpace(u.Text(initStart, initEnd))
	}

	return &Decl{Kind: ir.MemberField, Name: f.Name, Field: f}, nil
}

// firstVariableBoundary finds the top-level =, , or ; ending the first
// declared variable, stepping over ==-style operators.
func firstVariableBoundary(src []byte, i, end int) int {
	for i < end {
		k := dartast.TopLevelIndex(src, i, end, "=,;")
		if k >= end || src[k] != '=' {
			return k
		}
		if k+1 < end && (src[k+1] == '=' || src[k+1] == '>') {
			i = k + 2
			continue
		}
		if k > 0 && (src[k-1] == '!' || src[k-1] == '<' || src[k-1] == '>') {
			i = k + 1
			continue
		}
		return k
	}
	return end
}

// trimExprEnd trims trailing whitespace and one terminating semicolon.
func trimExprEnd(src []byte, start, end int) int {
	for end > start && isSpaceAt(src, end-1) {
		end--
	}
	if end > start && src[end-1] == ';' {
		end--
	}
	for end > start && isSpaceAt(src, end-1) {
		end--
	}
	return end
}

// parseParams splits a parameter list into descriptors. Optional positional
// ([]) and named ({}) groups mark their members; this./super. forwarding
// parameters keep the bare field name.
func parseParams(params string) []ir.Param {
	var out []ir.Param
	parsePart := func(part string, named, optional bool) {
		src := []byte(part)
		i := 0
		for i < len(src) {
			j := dartast.TopLevelIndex(src, i, len(src), ",")
			one := strings.TrimSpace(part[i:j])
			i = j + 1
			if one == "" {
				continue
			}
			out = append(out, parseParam(one, named, optional))
		}
	}

	src := []byte(params)
	groupIdx := dartast.TopLevelIndex(src, 0, len(src), "[{")
	if groupIdx >= len(src) {
		parsePart(params, false, false)
		return out
	}
	parsePart(params[:groupIdx], false, false)
	groupEnd := dartast.Balanced(src, groupIdx, len(src))
	inner := params[groupIdx+1 : groupEnd-1]
	parsePart(inner, src[groupIdx] == '{', src[groupIdx] == '[')
	return out
}

func parseParam(text string, named, optional bool) ir.Param {
	p := ir.Param{Named: named, Optional: optional}

	src := []byte(text)
	eq := firstVariableBoundary(src, 0, len(src))
	if eq < len(src) && src[eq] == '=' {
		p.Default = strings.TrimSpace(text[eq+1:])
	}

	nameEnd := eq
	for nameEnd > 0 && isSpaceAt(src, nameEnd-1) {
		nameEnd--
	}
	nameStart := nameEnd
	for nameStart > 0 && isIdentByteAt(src, nameStart-1) {
		nameStart--
	}
	p.Name = text[nameStart:nameEnd]

	head := strings.TrimSpace(stripModifiers(text[:nameStart]))
	head = strings.TrimSuffix(strings.TrimSpace(head), ".")
	switch head {
	case "this", "super":
		// forwarding parameter, the type lives on the field
	default:
		p.Type = head
	}
	return p
}

// stripModifiers removes leading declaration modifiers from a type text.
func stripModifiers(text string) string {
	for {
		trimmed := strings.TrimLeft(text, " \t\r\n")
		word := trimmed
		if i := strings.IndexFunc(trimmed, func(r rune) bool {
			return !(r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
		}); i >= 0 {
			word = trimmed[:i]
		}
		if !declModifiers[word] || word == "" {
			return trimmed
		}
		text = trimmed[len(word):]
	}
}

// identWord reads the identifier starting at i, returning it and the index
// just past it.
func identWord(src []byte, i, end int) (string, int) {
	j := i
	for j < end && isIdentByteAt(src, j) {
		j++
	}
	return string(src[i:j]), j
}

func isIdentByteAt(src []byte, i int) bool {
	c := src[i]
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpaceAt(src []byte, i int) bool {
	c := src[i]
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
