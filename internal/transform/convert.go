package transform

import (
	"strings"

	"github.com/signalize/signalize/internal/codegen"
	"github.com/signalize/signalize/internal/dartast"
	"github.com/signalize/signalize/internal/ir"
)

// convertClass renders the StatefulWidget/State pair replacing a
// StatelessWidget that declared reactive members. Constructors and
// constructor-bound fields stay on the widget class, everything else
// moves into the State class, with reads of moved fields routed through
// widget.
func convertClass(u *dartast.Unit, p *classPlan) string {
	cl := p.Class

	var thisBound []string
	for _, mp := range p.Members {
		if mp.Decl != nil && mp.Decl.Kind == ir.MemberConstructor {
			thisBound = append(thisBound, mp.Decl.ThisParams...)
		}
	}

	ctor := make(map[int]bool)
	widgetField := make(map[int]bool)
	var widgetFields []string
	for i, mp := range p.Members {
		if mp.Marked && mp.Err == nil {
			continue
		}
		if isCtorMember(u, cl, mp) {
			ctor[i] = true
			continue
		}
		if mp.Decl != nil && mp.Decl.Kind == ir.MemberField && containsName(thisBound, mp.Decl.Name) {
			widgetField[i] = true
			widgetFields = append(widgetFields, mp.Decl.Name)
		}
	}

	var widgetParts, stateParts []string
	initText := ""
	disposeText := ""
	for i, mp := range p.Members {
		m := mp.Member
		lead := leadText(u, m)
		orig := u.Text(m.Start, m.End)
		switch {
		case ctor[i] || widgetField[i]:
			widgetParts = append(widgetParts, lead+orig)
		case mp.Marked && mp.Err == nil:
			stateParts = append(stateParts, lead+adaptToState(strings.Join(mp.Decls, "\n  "), widgetFields))
		case mp.Marked:
			stateParts = append(stateParts, lead+orig)
		case methodNamed(mp, "dispose"):
			disposeText = lead + mergeDispose(orig, p.disposals())
		case methodNamed(mp, "initState"):
			initText = lead + mergeInitState(rewriteBody(orig, p, widgetFields), p.force())
		default:
			text := orig
			if methodNamed(mp, "build") {
				text = wrapReactive(text, p.triggers(), p.Queries)
			}
			stateParts = append(stateParts, lead+rewriteBody(text, p, widgetFields))
		}
	}

	if initText == "" {
		if force := p.force(); len(force) > 0 {
			initText = synthInitState(force)
		}
	}
	if disposeText == "" {
		if d := p.disposals(); len(d) > 0 {
			disposeText = synthDispose(d, true)
		}
	}

	name := cl.Name
	var b strings.Builder
	b.WriteString("class " + name + " extends StatefulWidget {\n")
	for _, part := range widgetParts {
		b.WriteString("  " + part + "\n\n")
	}
	b.WriteString("  @override\n")
	b.WriteString("  State<" + name + "> createState() => _" + name + "State();\n")
	b.WriteString("}\n\n")
	b.WriteString("class _" + name + "State extends State<" + name + "> {\n")

	stateAll := stateParts
	if initText != "" {
		stateAll = append(stateAll, initText)
	}
	if disposeText != "" {
		stateAll = append(stateAll, disposeText)
	}
	for i, part := range stateAll {
		b.WriteString("  " + part + "\n")
		if i < len(stateAll)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("}")
	return b.String()
}

// adaptToState prefixes reads of moved widget fields and promotes a
// plain final declaration to late final, since widget is not available
// in field initializers.
func adaptToState(text string, widgetFields []string) string {
	adapted := codegen.RewriteWidgetRefs(text, widgetFields)
	if adapted != text && strings.HasPrefix(adapted, "final ") {
		return "late " + adapted
	}
	return adapted
}

// rewriteBody routes reads in a retained method body: one .value for
// state and derived names, two for environment lookups, widget. for
// fields that moved to the widget class.
func rewriteBody(text string, p *classPlan, widgetFields []string) string {
	text = codegen.RewriteAccessors(text, p.Singles)
	text = codegen.RewriteEnvironment(text, p.Doubles)
	if len(widgetFields) > 0 {
		text = codegen.RewriteWidgetRefs(text, widgetFields)
	}
	return text
}

// isCtorMember reports whether the member is a constructor of cl,
// falling back to a textual check when analysis failed on it.
func isCtorMember(u *dartast.Unit, cl *dartast.Class, mp *memberPlan) bool {
	if mp.Decl != nil {
		return mp.Decl.Kind == ir.MemberConstructor
	}
	head := strings.TrimSpace(u.Text(mp.Member.DeclStart, mp.Member.End))
	head = strings.TrimPrefix(head, "const ")
	head = strings.TrimPrefix(head, "factory ")
	if !strings.HasPrefix(head, cl.Name) {
		return false
	}
	rest := strings.TrimLeft(head[len(cl.Name):], " \t")
	return strings.HasPrefix(rest, "(") || strings.HasPrefix(rest, ".")
}
