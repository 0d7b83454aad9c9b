package transform

import (
	"github.com/signalize/signalize/internal/analyze"
	"github.com/signalize/signalize/internal/annotation"
	"github.com/signalize/signalize/internal/codegen"
	"github.com/signalize/signalize/internal/dartast"
	"github.com/signalize/signalize/internal/deps"
	"github.com/signalize/signalize/internal/ir"
)

// classMode says how a class is rewritten.
type classMode int

const (
	modeSkip    classMode = iota // marked members only, none transformable
	modeConvert                  // StatelessWidget becomes a widget/state pair
	modeDirect                   // members replaced in place
)

// memberPlan is the transform decision for one segmented member.
type memberPlan struct {
	Member dartast.Member
	Decl   *analyze.Decl // nil when analysis failed

	Marked bool
	Kind   ir.AnnotationKind
	Ann    *ir.Annotation
	Err    error // marked member that cannot transform; left untouched

	Decls     []string // generated declarations replacing the member
	Name      string   // declared reactive name
	Deps      []string
	DisposeOf []string // generated names needing a dispose call
	Force     bool     // forced from initState
}

// classPlan is the transform decision for one class, computed once before
// any text is produced. The name partition drives every later rewrite.
type classPlan struct {
	Class *dartast.Class
	Mode  classMode

	Members []*memberPlan

	Singles []string // state and derived names, one .value
	Doubles []string // environment names, double accessor
	Queries []string // resource names, wrapped but never suffixed
}

// planClass analyzes one class and decides its transformation, generating
// all replacement text. A nil plan means the class carries no markers.
func planClass(u *dartast.Unit, cl *dartast.Class) *classPlan {
	p := &classPlan{Class: cl}
	stateless := cl.Extends == "StatelessWidget"
	widget := stateless || cl.Extends == "State"

	marked := 0
	for _, m := range cl.Members {
		mp := &memberPlan{Member: m}
		p.Members = append(p.Members, mp)

		decl, err := analyze.Member(u, cl.Name, m)
		if err == nil {
			mp.Decl = decl
		}

		_, kind, ok := annotation.Detect(m.Annotations)
		if !ok {
			continue
		}
		mp.Marked = true
		mp.Kind = kind
		marked++
		if err != nil {
			mp.Err = err
			continue
		}
		if verr := validateTarget(kind, decl, widget, u.Loc(m.DeclStart)); verr != nil {
			mp.Err = verr
			continue
		}
		ann, merr := annotation.Match(m.Annotations, kind, decl.Name)
		if merr != nil {
			mp.Err = merr
			continue
		}
		mp.Ann = ann
	}
	if marked == 0 {
		return nil
	}

	// The full reactive name partition has to exist before any body is
	// rewritten: a getter's expression may read a state field declared
	// further down the class.
	for _, mp := range p.Members {
		if !mp.Marked || mp.Err != nil {
			continue
		}
		switch mp.Kind {
		case ir.KindState:
			p.Singles = append(p.Singles, mp.Decl.Name)
		case ir.KindEnvironment:
			p.Doubles = append(p.Doubles, mp.Decl.Name)
		case ir.KindQuery:
			p.Queries = append(p.Queries, reactiveName(mp))
		}
	}

	transformable := 0
	for _, mp := range p.Members {
		if !mp.Marked || mp.Err != nil {
			continue
		}
		generate(u, mp, p)
		if mp.Err == nil {
			transformable++
		}
	}

	switch {
	case transformable == 0:
		p.Mode = modeSkip
	case stateless:
		p.Mode = modeConvert
	default:
		p.Mode = modeDirect
	}
	return p
}

// validateTarget enforces the marker/declaration-kind pairing.
func validateTarget(kind ir.AnnotationKind, d *analyze.Decl, widget bool, loc ir.Location) error {
	switch kind {
	case ir.KindState:
		if d.Kind == ir.MemberField || d.Kind == ir.MemberGetter {
			return nil
		}
		return disallowed(d, "state marker expects a field or getter", loc)
	case ir.KindEffect:
		if d.Kind == ir.MemberMethod {
			return nil
		}
		return disallowed(d, "effect marker expects a method", loc)
	case ir.KindQuery:
		if d.Kind == ir.MemberMethod {
			return nil
		}
		return disallowed(d, "query marker expects a method", loc)
	case ir.KindEnvironment:
		if d.Kind != ir.MemberField {
			return disallowed(d, "environment marker expects a field", loc)
		}
		if !widget {
			return disallowed(d, "environment lookup needs a BuildContext, so the class must be a widget or a state", loc)
		}
	}
	return nil
}

func disallowed(d *analyze.Decl, reason string, loc ir.Location) error {
	return &ir.ValidationError{
		Decl:      d.Name,
		Violation: ir.ViolationDisallowedTarget,
		Reason:    reason,
		Loc:       loc,
	}
}

// generate produces the replacement declarations for one marked member.
func generate(u *dartast.Unit, mp *memberPlan, p *classPlan) {
	d := mp.Decl
	switch mp.Kind {
	case ir.KindState:
		if d.Kind == ir.MemberGetter {
			set := deps.Extract(u, d.Getter.BodySpan.Start, d.Getter.BodySpan.End)
			text, err := codegen.Derived(d.Getter, set, p.Doubles)
			if err != nil {
				mp.Err = err
				return
			}
			mp.Decls = []string{text}
			mp.Name = d.Name
			mp.Deps = set.Names()
			mp.DisposeOf = []string{d.Name}
			return
		}
		text, err := codegen.State(d.Field, mp.Ann)
		if err != nil {
			mp.Err = err
			return
		}
		mp.Decls = []string{text}
		mp.Name = d.Name
		if !d.Field.InitSpan.Empty() {
			mp.Deps = deps.Extract(u, d.Field.InitSpan.Start, d.Field.InitSpan.End).Names()
		}
		mp.DisposeOf = []string{d.Name}

	case ir.KindEffect:
		set := methodDeps(u, d.Method)
		text, err := codegen.Effect(d.Method, set, p.Doubles)
		if err != nil {
			mp.Err = err
			return
		}
		mp.Decls = []string{text}
		mp.Name = d.Name
		mp.Deps = set.Names()
		mp.DisposeOf = []string{d.Name}
		mp.Force = true

	case ir.KindQuery:
		set := methodDeps(u, d.Method)
		decls, err := codegen.Query(d.Method, mp.Ann, set, p.Doubles)
		if err != nil {
			mp.Err = err
			return
		}
		name := reactiveName(mp)
		mp.Decls = decls
		mp.Name = name
		mp.Deps = set.Names()
		if len(decls) > 1 {
			mp.DisposeOf = []string{name + "Source", name}
		} else {
			mp.DisposeOf = []string{name}
		}

	case ir.KindEnvironment:
		text, err := codegen.Environment(d.Field, mp.Ann)
		if err != nil {
			mp.Err = err
			return
		}
		mp.Decls = []string{text}
		mp.Name = d.Name
	}
}

// methodDeps extracts the dependency set of a method body, minus the
// method's own parameters.
func methodDeps(u *dartast.Unit, m *ir.Method) *ir.DependencySet {
	set := deps.Extract(u, m.BodySpan.Start, m.BodySpan.End)
	if len(m.Params) == 0 {
		return set
	}
	own := make(map[string]bool, len(m.Params))
	for _, prm := range m.Params {
		own[prm.Name] = true
	}
	filtered := ir.NewDependencySet()
	for _, n := range set.Names() {
		if !own[n] {
			filtered.Add(n)
		}
	}
	return filtered
}

// reactiveName is the declared name of the generated construct: the custom
// annotation name for queries, the member's own name otherwise.
func reactiveName(mp *memberPlan) string {
	if mp.Kind == ir.KindQuery && mp.Ann != nil && mp.Ann.CustomName != "" {
		return mp.Ann.CustomName
	}
	return mp.Decl.Name
}

// triggers is the name set whose reads make a widget subtree rebuild.
func (p *classPlan) triggers() []string {
	out := make([]string, 0, len(p.Singles)+len(p.Doubles)+len(p.Queries))
	out = append(out, p.Singles...)
	out = append(out, p.Doubles...)
	out = append(out, p.Queries...)
	return out
}

// force lists the effect names initState evaluates.
func (p *classPlan) force() []string {
	var out []string
	for _, mp := range p.Members {
		if mp.Force && mp.Err == nil {
			out = append(out, mp.Name)
		}
	}
	return out
}

// disposals lists every generated name that owns a runtime resource.
func (p *classPlan) disposals() []string {
	var out []string
	for _, mp := range p.Members {
		if mp.Err == nil {
			out = append(out, mp.DisposeOf...)
		}
	}
	return out
}

// methodNamed reports whether a member is a method with the given name.
func methodNamed(mp *memberPlan, name string) bool {
	return mp.Decl != nil && mp.Decl.Kind == ir.MemberMethod && mp.Decl.Name == name
}
