// Package annotation recognizes the four reactive marker annotations and
// parses their arguments. Parsing is purely syntactic: presence of the
// marker is the gate, and arguments that do not have the expected literal
// shape are dropped, never reported.
package annotation

import (
	"strings"

	"github.com/signalize/signalize/internal/dartast"
	"github.com/signalize/signalize/internal/ir"
)

// Marker names as they appear in Dart source.
const (
	NameState       = "SignalState"
	NameEffect      = "SignalEffect"
	NameQuery       = "SignalQuery"
	NameEnvironment = "SignalEnvironment"
)

var markerKinds = map[string]ir.AnnotationKind{
	NameState:       ir.KindState,
	NameEffect:      ir.KindEffect,
	NameQuery:       ir.KindQuery,
	NameEnvironment: ir.KindEnvironment,
}

// Name returns the marker name for a kind.
func Name(kind ir.AnnotationKind) string {
	for name, k := range markerKinds {
		if k == kind {
			return name
		}
	}
	return string(kind)
}

// Detect returns the first reactive marker carried by a member, if any.
// Import-prefixed uses (@sig.SignalState) match on the last name segment.
func Detect(anns []ir.RawAnnotation) (ir.RawAnnotation, ir.AnnotationKind, bool) {
	for _, raw := range anns {
		if kind, ok := markerKinds[lastSegment(raw.Name)]; ok {
			return raw, kind, true
		}
	}
	return ir.RawAnnotation{}, "", false
}

// Match parses the member's marker of the given kind. A missing marker, or
// only markers of other kinds, yields a MatchError.
func Match(anns []ir.RawAnnotation, kind ir.AnnotationKind, member string) (*ir.Annotation, error) {
	for _, raw := range anns {
		if markerKinds[lastSegment(raw.Name)] == kind {
			return parse(raw, kind), nil
		}
	}
	loc := ir.Location{}
	if len(anns) > 0 {
		loc = anns[0].Loc
	}
	return nil, &ir.MatchError{
		Annotation: Name(kind),
		Member:     member,
		Reason:     "no such marker on the declaration",
		Loc:        loc,
	}
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// parse extracts the recognized arguments. The argument list is split on
// top-level commas; each entry must be a `label: value` pair with the
// expected literal shape to be kept.
func parse(raw ir.RawAnnotation, kind ir.AnnotationKind) *ir.Annotation {
	ann := &ir.Annotation{Kind: kind, Loc: raw.Loc}
	for _, arg := range splitArgs(raw.Args) {
		label, value, ok := strings.Cut(arg, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(label) {
		case "name":
			if s, ok := unquote(value); ok {
				ann.CustomName = s
			}
		case "debounce":
			if value != "" {
				ann.Debounce = value
			}
		case "useRefreshing":
			switch value {
			case "true":
				t := true
				ann.UseRefreshing = &t
			case "false":
				f := false
				ann.UseRefreshing = &f
			}
		}
	}
	return ann
}

// splitArgs splits raw argument text on top-level commas.
func splitArgs(args string) []string {
	src := []byte(args)
	var parts []string
	i := 0
	for i < len(src) {
		j := dartast.TopLevelIndex(src, i, len(src), ",")
		part := strings.TrimSpace(args[i:j])
		if part != "" {
			parts = append(parts, part)
		}
		i = j + 1
	}
	return parts
}

// unquote strips a single- or double-quote pair from a plain string literal.
// Anything else (adjacent literals, interpolation, raw strings) is rejected.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return "", false
	}
	inner := s[1 : len(s)-1]
	if strings.ContainsAny(inner, "$\\") || strings.ContainsRune(inner, rune(q)) {
		return "", false
	}
	return inner, true
}
