// Package deps derives the dependency set of a reactive declaration body: a
// walk over identifier occurrences in document order with positional
// exclusion rules and a fixed denylist of core and widget names. Nothing is
// resolved; an identifier that survives the rules is a plausible value
// reference, which is all downstream rewriting needs.
package deps

import (
	"github.com/signalize/signalize/internal/dartast"
	"github.com/signalize/signalize/internal/ir"
)

// Extract collects the dependency names referenced in src[start:end),
// deduplicated in first-occurrence document order.
func Extract(u *dartast.Unit, start, end int) *ir.DependencySet {
	set := ir.NewDependencySet()
	for _, id := range u.IdentifiersIn(start, end) {
		if excluded(u.Src, id) {
			continue
		}
		set.Add(id.Name)
	}
	return set
}

func excluded(src []byte, id dartast.Ident) bool {
	if keywords[id.Name] || dartCore[id.Name] || flutterNames[id.Name] || runtimeNames[id.Name] {
		return true
	}
	if id.TypePos || id.ArgLabel {
		return true
	}
	for _, p := range id.ClosureParams {
		if p == id.Name {
			return true
		}
	}
	// callee position: a.b() contributes a, getMethod() contributes nothing
	if nextNonSpace(src, id.End) == '(' {
		return true
	}
	// member-access tail: obj.prop contributes obj, not prop
	if prevNonSpace(src, id.Start) == '.' {
		return true
	}
	// named-argument label; adjacency only, so ternary branches survive
	if id.End < len(src) && src[id.End] == ':' {
		return true
	}
	// generic argument guard for textually recovered identifiers
	if id.Start > 0 && src[id.Start-1] == '<' {
		return true
	}
	if id.End < len(src) && src[id.End] == '>' {
		return true
	}
	return false
}

func nextNonSpace(src []byte, i int) byte {
	for i < len(src) {
		c := src[i]
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			return c
		}
		i++
	}
	return 0
}

func prevNonSpace(src []byte, i int) byte {
	for i > 0 {
		i--
		c := src[i]
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			return c
		}
	}
	return 0
}

var keywords = map[string]bool{
	"this": true, "super": true, "null": true, "true": true, "false": true,
	"new": true, "const": true, "var": true, "final": true, "late": true,
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "default": true, "break": true, "continue": true,
	"return": true, "throw": true, "rethrow": true, "try": true, "catch": true,
	"finally": true, "is": true, "as": true, "in": true, "await": true,
	"async": true, "sync": true, "yield": true, "void": true, "required": true,
	"static": true, "get": true, "set": true,
}

// dartCore holds core library type and function names that never count as
// dependencies. Deliberately incomplete: a missed name surfaces as a
// spurious dependency, which the accessor rewrite tolerates.
var dartCore = map[string]bool{
	"int": true, "double": true, "num": true, "bool": true, "String": true,
	"List": true, "Map": true, "Set": true, "Iterable": true, "Iterator": true,
	"Object": true, "dynamic": true, "Null": true, "Never": true,
	"Future": true, "Stream": true, "FutureOr": true, "Duration": true,
	"DateTime": true, "RegExp": true, "Uri": true, "Symbol": true, "Type": true,
	"BigInt": true, "StringBuffer": true, "Comparable": true, "Function": true,
	"Pattern": true, "Match": true, "StackTrace": true, "Stopwatch": true,
	"Error": true, "Exception": true, "StateError": true, "ArgumentError": true,
	"RangeError": true, "FormatException": true, "UnimplementedError": true,
	"UnsupportedError": true, "print": true, "identical": true,
	"identityHashCode": true, "override": true, "deprecated": true,
}

// flutterNames covers the widgets and support classes that show up in
// typical build methods.
var flutterNames = map[string]bool{
	"Widget": true, "BuildContext": true, "StatelessWidget": true,
	"StatefulWidget": true, "State": true, "Key": true, "ValueKey": true,
	"GlobalKey": true, "MaterialApp": true, "Scaffold": true, "AppBar": true,
	"Text": true, "Row": true, "Column": true, "Container": true,
	"Center": true, "Padding": true, "SizedBox": true, "Expanded": true,
	"Flexible": true, "Stack": true, "Positioned": true, "Align": true,
	"Wrap": true, "ListView": true, "GridView": true, "ListTile": true,
	"SingleChildScrollView": true, "Icon": true, "IconButton": true,
	"ElevatedButton": true, "TextButton": true, "OutlinedButton": true,
	"FloatingActionButton": true, "GestureDetector": true, "InkWell": true,
	"Card": true, "Divider": true, "Spacer": true, "SafeArea": true,
	"CircularProgressIndicator": true, "LinearProgressIndicator": true,
	"EdgeInsets": true, "Alignment": true, "Axis": true,
	"MainAxisAlignment": true, "CrossAxisAlignment": true, "MainAxisSize": true,
	"TextStyle": true, "TextAlign": true, "FontWeight": true, "Colors": true,
	"Color": true, "Icons": true, "Theme": true, "ThemeData": true,
	"MediaQuery": true, "Navigator": true, "MaterialPageRoute": true,
	"BorderRadius": true, "Radius": true, "BoxDecoration": true,
	"BoxShape": true, "Border": true, "Curves": true, "SnackBar": true,
	"ScaffoldMessenger": true, "Form": true, "TextField": true,
	"TextFormField": true, "TextEditingController": true, "Checkbox": true,
	"Radio": true, "Switch": true, "Slider": true, "DropdownButton": true,
	"AlertDialog": true, "Drawer": true, "BottomNavigationBar": true,
	"TabBar": true, "TabBarView": true, "Hero": true, "Opacity": true,
	"ClipRRect": true, "Image": true, "NetworkImage": true, "AssetImage": true,
	"CircleAvatar": true, "RichText": true, "TextSpan": true,
	"WidgetsFlutterBinding": true, "runApp": true,
}

// runtimeNames keeps the reactive runtime's own vocabulary out of dependency
// sets, so re-processing already transformed code stays stable.
var runtimeNames = map[string]bool{
	"Signal": true, "Computed": true, "Effect": true, "Resource": true,
	"Watch": true, "SignalScope": true, "SignalsConfig": true,
}
