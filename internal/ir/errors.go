package ir

import "fmt"

// The four failure categories a member transform can produce. A non-nil
// error from any stage means the member keeps its original text; it never
// aborts the surrounding file.

// ValidationError violation reasons.
const (
	ViolationDisallowedTarget  = "disallowed_target"
	ViolationMissingAnnotation = "missing_annotation"
	ViolationUnsupportedType   = "unsupported_type"
)

// MatchError reports that a member's metadata carried no usable marker
// annotation of the requested kind.
type MatchError struct {
	Annotation string // marker name looked for, e.g. "SignalState"
	Member     string // member name when known
	Reason     string
	Loc        Location
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("annotation %s not matched on %s%s: %s", e.Annotation, e.Member, at(e.Loc), e.Reason)
}

// AnalysisError reports that structural extraction of a declaration failed.
type AnalysisError struct {
	Decl   string // declaration name when known
	Reason string
	Loc    Location
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzing %s%s: %s", e.Decl, at(e.Loc), e.Reason)
}

// GenError reports that a code generator could not produce output for an
// otherwise valid declaration.
type GenError struct {
	Decl   string
	Reason string
	Loc    Location
}

func (e *GenError) Error() string {
	return fmt.Sprintf("generating %s%s: %s", e.Decl, at(e.Loc), e.Reason)
}

// ValidationError reports a declaration that is syntactically fine but not
// transformable: a marker on a disallowed declaration kind, a missing
// expected annotation, or an unsupported type for reactive state.
type ValidationError struct {
	Decl      string
	Violation string // one of the Violation* constants
	Reason    string
	Loc       Location
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid declaration %s%s: %s (%s)", e.Decl, at(e.Loc), e.Reason, e.Violation)
}

func at(loc Location) string {
	if loc.File == "" && loc.Line == 0 {
		return ""
	}
	if loc.File == "" {
		return fmt.Sprintf(" at line %d", loc.Line)
	}
	return fmt.Sprintf(" at %s:%d", loc.File, loc.Line)
}
