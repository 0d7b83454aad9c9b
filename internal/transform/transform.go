// Package transform rewrites one Dart compilation unit: annotated members
// become runtime declarations, StatelessWidget classes with reactive
// members become StatefulWidget/State pairs, accessor reads are routed
// through .value, lifecycle methods are synthesized or merged, and the
// runtime import replaces the annotations import. All passes collect span
// edits over the original text and apply them once.
package transform

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/signalize/signalize/internal/dartast"
	"github.com/signalize/signalize/internal/ir"
)

// ReactiveDecl describes one reactive member found in a file, for the
// inventory and the MCP scan tool.
type ReactiveDecl struct {
	File   string   `json:"file"`
	Class  string   `json:"class"`
	Member string   `json:"member"`
	Kind   string   `json:"kind"`
	Name   string   `json:"name"`
	Deps   []string `json:"deps,omitempty"`
	Line   int      `json:"line"`
}

// Result is the outcome of transforming one file.
type Result struct {
	File         string
	Output       []byte
	Changed      bool
	SyntaxErrors bool
	Decls        []ReactiveDecl
	Converted    []string
	Problems     []error
}

// File transforms one Dart source file. Member-level failures are
// reported in Result.Problems and leave their member untouched; only a
// parse failure aborts the whole file.
func File(file string, src []byte) (*Result, error) {
	u, err := dartast.Parse(file, src)
	if err != nil {
		return nil, err
	}
	defer u.Close()

	res := &Result{File: file, SyntaxErrors: u.HasError()}

	var edits []edit
	for _, cl := range u.Classes() {
		p := planClass(u, cl)
		if p == nil {
			continue
		}
		for _, mp := range p.Members {
			if !mp.Marked {
				continue
			}
			if mp.Err != nil {
				res.Problems = append(res.Problems, mp.Err)
				continue
			}
			res.Decls = append(res.Decls, ReactiveDecl{
				File:   file,
				Class:  cl.Name,
				Member: mp.Decl.Name,
				Kind:   kindLabel(mp),
				Name:   mp.Name,
				Deps:   mp.Deps,
				Line:   mp.Member.Line,
			})
		}
		switch p.Mode {
		case modeConvert:
			edits = append(edits, edit{cl.Start, cl.End, convertClass(u, p)})
			res.Converted = append(res.Converted, cl.Name)
		case modeDirect:
			edits = append(edits, directEdits(u, p)...)
		}
	}

	if e, ok := patchMain(u); ok {
		edits = append(edits, e)
	}

	out := src
	if len(edits) > 0 {
		out, err = applyEdits(src, edits)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}
	out = reconcileImports(out, len(edits) > 0)

	res.Output = out
	res.Changed = !bytes.Equal(out, src)
	return res, nil
}

// kindLabel distinguishes derived getters from plain state fields in the
// inventory.
func kindLabel(mp *memberPlan) string {
	if mp.Kind == ir.KindState && mp.Decl.Kind == ir.MemberGetter {
		return "derived"
	}
	return string(mp.Kind)
}

// directEdits rewrites a class that is already a State subclass, or any
// plain class carrying markers, member by member in place.
func directEdits(u *dartast.Unit, p *classPlan) []edit {
	subclass := p.Class.Extends == "State"
	force := p.force()
	if !subclass {
		force = nil
	}
	disposals := p.disposals()

	var edits []edit
	haveInit := false
	haveDispose := false
	for _, mp := range p.Members {
		m := mp.Member
		orig := u.Text(m.Start, m.End)
		switch {
		case mp.Marked && mp.Err == nil:
			edits = append(edits, edit{m.Start, m.End, strings.Join(mp.Decls, "\n"+indentAt(u, m.Start))})
		case mp.Marked:
		case methodNamed(mp, "initState"):
			haveInit = true
			text := rewriteBody(orig, p, nil)
			if len(force) > 0 {
				text = mergeInitState(text, force)
			}
			if text != orig {
				edits = append(edits, edit{m.Start, m.End, text})
			}
		case methodNamed(mp, "dispose"):
			haveDispose = true
			if text := mergeDispose(orig, disposals); text != orig {
				edits = append(edits, edit{m.Start, m.End, text})
			}
		default:
			text := orig
			if methodNamed(mp, "build") {
				text = wrapReactive(text, p.triggers(), p.Queries)
			}
			if text = rewriteBody(text, p, nil); text != orig {
				edits = append(edits, edit{m.Start, m.End, text})
			}
		}
	}

	if len(force) > 0 && !haveInit {
		edits = append(edits, insertAtBodyEnd(p.Class, synthInitState(force)))
	}
	if len(disposals) > 0 && !haveDispose {
		edits = append(edits, insertAtBodyEnd(p.Class, synthDispose(disposals, subclass)))
	}
	return edits
}

// insertAtBodyEnd appends a synthesized method just before the class
// closing brace.
func insertAtBodyEnd(cl *dartast.Class, text string) edit {
	return edit{cl.BodyEnd, cl.BodyEnd, "\n  " + text + "\n"}
}
