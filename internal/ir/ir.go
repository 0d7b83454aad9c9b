// Package ir defines the value records exchanged between the annotation
// matcher, the declaration analyzer, the dependency extractor, and the code
// generators. Everything here is plain data: stages communicate by value and
// never mutate records they did not create.
package ir

// AnnotationKind identifies which reactive marker a declaration carries.
type AnnotationKind string

// Annotation kinds.
const (
	KindState       AnnotationKind = "state"
	KindEffect      AnnotationKind = "effect"
	KindQuery       AnnotationKind = "query"
	KindEnvironment AnnotationKind = "environment"
)

// Location points at a declaration in a source file. Line is 1-based.
type Location struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// Span is a half-open byte range in a source file.
type Span struct {
	Start int `json:"-"`
	End   int `json:"-"`
}

// Empty reports whether the span covers nothing.
func (s Span) Empty() bool { return s.End <= s.Start }

// RawAnnotation is an unparsed annotation as it appears in source: the
// dotted name after @ and the raw argument text inside the parens, if any.
type RawAnnotation struct {
	Name string   `json:"name"`
	Args string   `json:"args,omitempty"`
	Loc  Location `json:"loc"`
}

// MemberKind classifies a segmented class member.
type MemberKind string

// Member kinds.
const (
	MemberField       MemberKind = "field"
	MemberGetter      MemberKind = "getter"
	MemberMethod      MemberKind = "method"
	MemberConstructor MemberKind = "constructor"
)

// Annotation is a parsed reactive marker with its recognized arguments.
// Argument parsing is purely syntactic: non-conforming arguments are
// dropped, never reported.
type Annotation struct {
	Kind          AnnotationKind `json:"kind"`
	CustomName    string         `json:"custom_name,omitempty"`    // name: string literal, unquoted
	Debounce      string         `json:"debounce,omitempty"`       // debounce: expression, verbatim source text
	UseRefreshing *bool          `json:"use_refreshing,omitempty"` // useRefreshing: bool literal
	Loc           Location       `json:"loc"`
}

// Field describes a class field declaration.
type Field struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`                  // declared type text; "dynamic" when omitted
	Initializer string   `json:"initializer,omitempty"` // initializer expression text
	Nullable    bool     `json:"nullable,omitempty"`    // type text ends in ?
	Final       bool     `json:"final,omitempty"`
	Const       bool     `json:"const,omitempty"`
	InitSpan    Span     `json:"-"` // initializer byte range in the unit
	Loc         Location `json:"loc"`
}

// Getter describes a getter declaration. Body holds the single returned
// expression, whether the getter was expression-bodied or block-bodied with
// one trailing return; it is empty when no such expression was recognized.
type Getter struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // declared return type text
	Body     string   `json:"body"`
	Nullable bool     `json:"nullable,omitempty"`
	BodySpan Span     `json:"-"` // byte range of the returned expression
	Loc      Location `json:"loc"`
}

// Param describes one method parameter.
type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Named    bool   `json:"named,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Default  string `json:"default,omitempty"` // default value expression text
}

// Method describes a method declaration. Body is the body source text
// including any async/async*/sync* modifier and the braces (or the => form),
// so a generator can reuse it as a closure body unchanged.
type Method struct {
	Name       string   `json:"name"`
	ReturnType string   `json:"return_type"`
	Body       string   `json:"body"`
	Params     []Param  `json:"params,omitempty"`
	Async      bool     `json:"async,omitempty"` // literal keyword check
	BodySpan   Span     `json:"-"`               // body byte range, modifiers included
	Loc        Location `json:"loc"`
}

// DependencySet is an insertion-ordered, duplicate-free set of identifier
// names referenced by a declaration body. Order is document order of the
// first occurrence.
type DependencySet struct {
	names []string
	seen  map[string]bool
}

// NewDependencySet returns an empty set.
func NewDependencySet() *DependencySet {
	return &DependencySet{seen: make(map[string]bool)}
}

// Add inserts name unless already present.
func (s *DependencySet) Add(name string) {
	if s.seen[name] {
		return
	}
	s.seen[name] = true
	s.names = append(s.names, name)
}

// Has reports whether name is in the set.
func (s *DependencySet) Has(name string) bool {
	return s.seen[name]
}

// Names returns the members in insertion order. The returned slice is a
// copy.
func (s *DependencySet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the member count.
func (s *DependencySet) Len() int {
	return len(s.names)
}
