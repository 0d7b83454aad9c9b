// Package dartast parses Dart compilation units with tree-sitter and exposes
// the structural views the transformer needs: class spans with their members
// segmented, the entry-point function, and identifier walks over byte
// ranges. Grammar node kinds are confined to this package; everything
// fine-grained is derived from node spans and the source bytes.
package dartast

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	dart "github.com/UserNobody14/tree-sitter-dart/bindings/go"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/signalize/signalize/internal/ir"
)

// Node kinds this package relies on.
const (
	kindClass    = "class_definition"
	kindLabel    = "label"
	kindFuncExpr = "function_expression"
)

func isIdentKind(kind string) bool {
	return kind == "identifier" || kind == "simple_identifier"
}

// Unit is one parsed compilation unit. Close releases the tree.
type Unit struct {
	File string
	Src  []byte

	tree  *sitter.Tree
	lines []int // byte offset of each line start
}

// Parse parses src as a Dart compilation unit. Syntax errors do not fail the
// parse: the tree keeps error nodes and segmentation is textual and
// tolerant, so they are surfaced via HasError as a diagnostic only.
func Parse(file string, src []byte) (*Unit, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(sitter.NewLanguage(dart.Language()))

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("parsing %s: no tree produced", file)
	}

	u := &Unit{File: file, Src: src, tree: tree, lines: []int{0}}
	for i, c := range src {
		if c == '\n' {
			u.lines = append(u.lines, i+1)
		}
	}
	return u, nil
}

// Close releases the parse tree.
func (u *Unit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

// HasError reports whether the tree contains syntax errors.
func (u *Unit) HasError() bool {
	return u.tree.RootNode().HasError()
}

// Text returns the source text of a byte range.
func (u *Unit) Text(start, end int) string {
	return string(u.Src[start:end])
}

// lineOf returns the 1-based line of a byte offset.
func (u *Unit) lineOf(off int) int {
	return sort.SearchInts(u.lines, off+1)
}

// Loc returns the location of a byte offset.
func (u *Unit) Loc(off int) ir.Location {
	return ir.Location{File: u.File, Line: u.lineOf(off)}
}

// Class is a class declaration: its replaceable byte span (annotations on
// the class itself excluded), the body region inside the braces, and its
// members in document order.
type Class struct {
	Name    string
	Extends string // base identifier of the extends clause, "" when none
	Line    int

	Start, End         int
	BodyStart, BodyEnd int // region between the body braces, exclusive
	Members            []Member
}

// Member is one segmented declaration span, running from its first
// annotation through the terminating semicolon or block close. Lead points
// at the comment block preceding the member (== Start when there is none);
// DeclStart is past the annotations. Classification happens in the
// analyzer, on the text.
type Member struct {
	Lead        int
	Start, End  int
	DeclStart   int
	Line        int
	Annotations []ir.RawAnnotation
}

var (
	classRe   = regexp.MustCompile(`^(?:abstract\s+)?(?:base\s+|final\s+|interface\s+|sealed\s+|mixin\s+)*class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	extendsRe = regexp.MustCompile(`\bextends\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	mainRe    = regexp.MustCompile(`^(?:void\s+|Future<void>\s+)?main\s*\(`)
)

// Classes returns the unit's class declarations in document order. Tree
// discovery is primary; classes the tree missed (error recovery) are picked
// up from a textual top-level scan.
func (u *Unit) Classes() []*Class {
	var classes []*Class
	root := u.tree.RootNode()
	for i := range root.ChildCount() {
		child := root.Child(i)
		if child.Kind() != kindClass {
			continue
		}
		if c := u.classAt(int(child.StartByte()), int(child.EndByte())); c != nil {
			classes = append(classes, c)
		}
	}

	for _, m := range segmentMembers(u, 0, len(u.Src)) {
		if !classRe.MatchString(u.Text(m.DeclStart, m.End)) {
			continue
		}
		covered := false
		for _, c := range classes {
			if m.DeclStart >= c.Start && m.DeclStart < c.End {
				covered = true
				break
			}
		}
		if covered {
			continue
		}
		if c := u.classAt(m.DeclStart, m.End); c != nil {
			classes = append(classes, c)
		}
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].Start < classes[j].Start })
	return classes
}

// classAt builds a Class from the declaration span [start, end). Leading
// annotations are pushed out of the span so a replacement edit keeps them.
func (u *Unit) classAt(start, end int) *Class {
	src := u.Src
	i := SkipSpace(src, start, end)
	for i < end && src[i] == '@' {
		_, j := identAt(src, i+1, end)
		j = SkipSpace(src, j, end)
		if j < end && src[j] == '(' {
			j = Balanced(src, j, end)
		}
		i = SkipSpace(src, j, end)
	}
	start = i

	header := u.Text(start, end)
	m := classRe.FindStringSubmatch(header)
	if m == nil {
		return nil
	}

	open := TopLevelIndex(src, start, end, "{")
	if open >= end {
		return nil
	}
	close := Balanced(src, open, end) - 1
	if close <= open {
		return nil
	}

	c := &Class{
		Name:      m[1],
		Line:      u.lineOf(start),
		Start:     start,
		End:       close + 1,
		BodyStart: open + 1,
		BodyEnd:   close,
	}
	if em := extendsRe.FindStringSubmatch(u.Text(start, open)); em != nil {
		c.Extends = em[1]
	}
	c.Members = segmentMembers(u, c.BodyStart, c.BodyEnd)
	return c
}

// MainFunc is the entry-point function, when the unit declares a
// block-bodied top-level main.
type MainFunc struct {
	BodyStart, BodyEnd int // region between the body braces, exclusive
	CallsRunApp        bool
}

// Main finds the top-level main function. Arrow-bodied mains return nil:
// there is no statement list to patch.
func (u *Unit) Main() *MainFunc {
	for _, m := range segmentMembers(u, 0, len(u.Src)) {
		if !mainRe.MatchString(u.Text(m.DeclStart, m.End)) {
			continue
		}
		open := TopLevelIndex(u.Src, m.DeclStart, m.End, "{")
		if open >= m.End {
			return nil
		}
		close := Balanced(u.Src, open, m.End) - 1
		if close <= open {
			return nil
		}
		body := u.Text(open+1, close)
		return &MainFunc{
			BodyStart:   open + 1,
			BodyEnd:     close,
			CallsRunApp: strings.Contains(body, "runApp("),
		}
	}
	return nil
}

// Ident is one identifier occurrence with the ancestry context the
// dependency extractor's exclusion rules need.
type Ident struct {
	Name          string
	Start, End    int
	TypePos       bool     // type annotation, generic argument, or heritage clause
	ArgLabel      bool     // named-argument label
	ClosureParams []string // parameters of the nearest enclosing anonymous function
}

// IdentifiersIn returns identifier occurrences inside [start, end) in
// document order. Tree identifiers are merged with references recovered
// textually from string interpolations; if the tree yields nothing for a
// non-empty range (error recovery ate the region), a textual scan fills in.
func (u *Unit) IdentifiersIn(start, end int) []Ident {
	var out []Ident
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if int(n.EndByte()) <= start || int(n.StartByte()) >= end {
			return
		}
		if n.ChildCount() == 0 {
			if isIdentKind(n.Kind()) {
				out = append(out, u.identFor(n))
			}
			return
		}
		for i := range n.ChildCount() {
			visit(n.Child(i))
		}
	}
	visit(u.tree.RootNode())

	if len(out) == 0 {
		out = exprRefs(u.Src, start, end)
	}

	seen := make(map[int]bool, len(out))
	for _, id := range out {
		seen[id.Start] = true
	}
	for _, id := range interpolationRefs(u.Src, start, end) {
		if !seen[id.Start] {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func (u *Unit) identFor(n *sitter.Node) Ident {
	id := Ident{
		Name:  nodeText(n, u.Src),
		Start: int(n.StartByte()),
		End:   int(n.EndByte()),
	}
	if p := n.Parent(); p != nil && p.Kind() == kindLabel {
		id.ArgLabel = true
	}
	for a := n.Parent(); a != nil; a = a.Parent() {
		k := a.Kind()
		if k == kindClass {
			break
		}
		if strings.Contains(k, "type") || k == "superclass" || k == "interfaces" || k == "mixins" {
			id.TypePos = true
		}
		if k == kindFuncExpr && id.ClosureParams == nil {
			id.ClosureParams = paramNames(a, u.Src)
		}
	}
	return id
}

// paramNames collects the parameter identifiers of an anonymous function
// node.
func paramNames(fn *sitter.Node, src []byte) []string {
	params := []string{}
	var list *sitter.Node
	for i := range fn.ChildCount() {
		child := fn.Child(i)
		if strings.Contains(child.Kind(), "formal_parameter") {
			list = child
			break
		}
	}
	if list == nil {
		return params
	}
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n.ChildCount() == 0 {
			if isIdentKind(n.Kind()) {
				params = append(params, nodeText(n, src))
			}
			return
		}
		for i := range n.ChildCount() {
			visit(n.Child(i))
		}
	}
	visit(list)
	return params
}

func nodeText(node *sitter.Node, src []byte) string {
	return string(src[node.StartByte():node.EndByte()])
}
