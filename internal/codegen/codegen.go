// Package codegen renders reactive declarations from analyzed descriptors.
// Every function here is pure text assembly: identical inputs produce
// byte-identical output, and failures are reported through the shared error
// taxonomy without touching the surrounding file.
package codegen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/signalize/signalize/internal/ir"
)

// State renders the value-cell declaration for an annotated field. The
// custom name, when given, only changes the debug label; reads and writes
// keep using the field name.
func State(f *ir.Field, ann *ir.Annotation) (string, error) {
	label := ann.CustomName
	if label == "" {
		label = f.Name
	}
	init := f.Initializer
	if init == "" {
		init = DefaultValue(f.Type)
	}
	return fmt.Sprintf("final %s = Signal<%s>(%s, name: '%s');", f.Name, f.Type, init, label), nil
}

// Derived renders the computed declaration for an annotated getter. The
// declaration is lazy only when it has dependencies to wait for.
func Derived(g *ir.Getter, set *ir.DependencySet, envNames []string) (string, error) {
	if g.Body == "" {
		return "", &ir.GenError{
			Decl:   g.Name,
			Reason: "getter body is not a single expression",
			Loc:    g.Loc,
		}
	}
	expr := RewriteEnvironment(RewriteAccessors(g.Body, set.Names()), envNames)
	modifier := "final"
	if set.Len() > 0 {
		modifier = "late final"
	}
	return fmt.Sprintf("%s %s = Computed(() => %s);", modifier, g.Name, expr), nil
}

// Effect renders the side-effect declaration for an annotated method. The
// body is reused verbatim as a zero-argument closure, dependencies
// rewritten; the declaration is lazy and forced from initState.
func Effect(m *ir.Method, set *ir.DependencySet, envNames []string) (string, error) {
	if m.Body == "" {
		return "", &ir.GenError{Decl: m.Name, Reason: "method has no body", Loc: m.Loc}
	}
	body := RewriteEnvironment(RewriteAccessors(m.Body, set.Names()), envNames)
	return fmt.Sprintf("late final %s = Effect(() %s);", m.Name, body), nil
}

var asyncWrapperRe = regexp.MustCompile(`^(Future|Stream)\s*(?:<(.+)>)?\??$`)

// Query renders the resource declaration(s) for an annotated async method:
// the resource itself and, when it has two or more dependencies, the
// synthesized record source it watches. The resource declaration is always
// last.
func Query(m *ir.Method, ann *ir.Annotation, set *ir.DependencySet, envNames []string) ([]string, error) {
	if m.Body == "" {
		return nil, &ir.GenError{Decl: m.Name, Reason: "method has no body", Loc: m.Loc}
	}
	wm := asyncWrapperRe.FindStringSubmatch(strings.TrimSpace(m.ReturnType))
	if wm == nil {
		return nil, &ir.ValidationError{
			Decl:      m.Name,
			Violation: ir.ViolationUnsupportedType,
			Reason:    fmt.Sprintf("query must return Future or Stream, not %q", m.ReturnType),
			Loc:       m.Loc,
		}
	}
	elem := wm[2]
	if elem == "" {
		elem = "dynamic"
	}

	name := ann.CustomName
	if name == "" {
		name = m.Name
	}

	body := RewriteEnvironment(RewriteAccessors(m.Body, set.Names()), envNames)
	ctor := fmt.Sprintf("Resource<%s>", elem)
	if wm[1] == "Stream" {
		ctor += ".stream"
	}

	args := []string{"() " + body}
	var decls []string
	switch set.Len() {
	case 0:
		// no upstream, the resource only refreshes on demand
	case 1:
		args = append(args, "source: "+set.Names()[0])
	default:
		sourceName := name + "Source"
		parts := make([]string, 0, set.Len())
		for _, d := range set.Names() {
			if isEnv(d, envNames) {
				parts = append(parts, d+".value.value")
			} else {
				parts = append(parts, d+".value")
			}
		}
		decls = append(decls, fmt.Sprintf("late final %s = Computed(() => (%s));", sourceName, strings.Join(parts, ", ")))
		args = append(args, "source: "+sourceName)
	}
	if ann.Debounce != "" {
		args = append(args, "debounce: "+ann.Debounce)
	}
	if ann.UseRefreshing != nil {
		args = append(args, fmt.Sprintf("useRefreshing: %t", *ann.UseRefreshing))
	}
	args = append(args, fmt.Sprintf("name: '%s'", name))

	decls = append(decls, fmt.Sprintf("late final %s = %s(%s);", name, ctor, strings.Join(args, ", ")))
	return decls, nil
}

// Environment renders the ambient-lookup declaration for an annotated
// field. The lookup is keyed by the declared type, so an untyped field has
// nothing to key on.
func Environment(f *ir.Field, _ *ir.Annotation) (string, error) {
	if f.Type == "" || f.Type == "dynamic" {
		return "", &ir.ValidationError{
			Decl:      f.Name,
			Violation: ir.ViolationUnsupportedType,
			Reason:    "environment field needs a declared type to key the lookup",
			Loc:       f.Loc,
		}
	}
	return fmt.Sprintf("late final %s = SignalScope.read<%s>(context);", f.Name, strings.TrimSuffix(f.Type, "?")), nil
}

// DefaultValue returns the initializer used when an annotated state field
// declares none. Unknown and nullable types default to null; the Dart
// analyzer owns complaining about null into a non-nullable cell.
func DefaultValue(typeText string) string {
	t := strings.TrimSpace(typeText)
	if strings.HasSuffix(t, "?") || t == "" || t == "dynamic" {
		return "null"
	}
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	switch strings.TrimSpace(t) {
	case "int":
		return "0"
	case "double":
		return "0.0"
	case "bool":
		return "false"
	case "String":
		return "''"
	case "List", "Iterable":
		return "[]"
	case "Map", "Set":
		return "{}"
	}
	return "null"
}

// Disposal renders the teardown statement for a generated declaration.
func Disposal(name string) string {
	return name + ".dispose();"
}

// ForceEval renders the statement that forces a lazily declared effect.
func ForceEval(name string) string {
	return name + ";"
}

func isEnv(name string, envNames []string) bool {
	for _, e := range envNames {
		if e == name {
			return true
		}
	}
	return false
}
