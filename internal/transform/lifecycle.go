package transform

import (
	"strings"

	"github.com/signalize/signalize/internal/codegen"
	"github.com/signalize/signalize/internal/dartast"
)

// synthInitState renders a fresh initState override that touches each
// effect once so its closure runs eagerly.
func synthInitState(force []string) string {
	var b strings.Builder
	b.WriteString("@override\n  void initState() {\n    super.initState();\n")
	for _, n := range force {
		b.WriteString("    " + codegen.ForceEval(n) + "\n")
	}
	b.WriteString("  }")
	return b.String()
}

// synthDispose renders a dispose method releasing each reactive
// declaration. override selects the State-subclass form with the
// super call.
func synthDispose(disposals []string, override bool) string {
	var b strings.Builder
	if override {
		b.WriteString("@override\n  void dispose() {\n")
	} else {
		b.WriteString("void dispose() {\n")
	}
	for _, n := range disposals {
		b.WriteString("    " + codegen.Disposal(n) + "\n")
	}
	if override {
		b.WriteString("    super.dispose();\n")
	}
	b.WriteString("  }")
	return b.String()
}

// mergeInitState inserts missing force-evaluation statements into an
// existing initState body, after the super.initState() call when present.
// Statements already in the body are not duplicated.
func mergeInitState(text string, force []string) string {
	src := []byte(text)
	anchor := -1
	if idx := strings.Index(text, "super.initState()"); idx >= 0 {
		if semi := strings.IndexByte(text[idx:], ';'); semi >= 0 {
			anchor = idx + semi + 1
		}
	}
	open := dartast.TopLevelIndex(src, 0, len(src), "{")
	if open >= len(src) || src[open] != '{' {
		return text
	}
	if anchor < 0 {
		anchor = open + 1
	}
	inline := strings.LastIndexByte(text[:anchor], '\n') <= strings.LastIndexByte(text[:open], '\n')
	indent := stmtIndent(text, anchor)
	var ins []string
	for _, n := range force {
		stmt := codegen.ForceEval(n)
		if !containsStmt(text, stmt) {
			ins = append(ins, stmt)
		}
	}
	if len(ins) == 0 {
		return text
	}
	var b strings.Builder
	for _, stmt := range ins {
		if inline {
			b.WriteString(" " + stmt)
		} else {
			b.WriteString("\n" + indent + stmt)
		}
	}
	return text[:anchor] + b.String() + text[anchor:]
}

// mergeDispose inserts missing dispose calls into an existing dispose
// body, before the super.dispose() call when present, otherwise before
// the closing brace. Whatever the method already does is kept untouched.
func mergeDispose(text string, disposals []string) string {
	src := []byte(text)
	open := dartast.TopLevelIndex(src, 0, len(src), "{")
	if open >= len(src) || src[open] != '{' {
		return text
	}
	closing := dartast.Balanced(src, open, len(src)) - 1
	if closing <= open {
		return text
	}

	var ins []string
	for _, n := range disposals {
		stmt := codegen.Disposal(n)
		if !containsStmt(text, stmt) {
			ins = append(ins, stmt)
		}
	}
	if len(ins) == 0 {
		return text
	}

	anchor := closing
	indent := stmtIndent(text, closing) + "  "
	if idx := strings.Index(text, "super.dispose()"); idx > open {
		anchor = idx
		indent = stmtIndent(text, idx)
	}
	if lineStart := strings.LastIndexByte(text[:anchor], '\n'); lineStart >= 0 && lineStart > strings.LastIndexByte(text[:open], '\n') {
		anchor = lineStart + 1
	} else {
		var b strings.Builder
		for _, stmt := range ins {
			b.WriteString(stmt + " ")
		}
		return text[:anchor] + b.String() + text[anchor:]
	}
	var b strings.Builder
	for _, stmt := range ins {
		b.WriteString(indent + stmt + "\n")
	}
	return text[:anchor] + b.String() + text[anchor:]
}
