package transform

import (
	"errors"
	"reflect"
	"testing"

	"github.com/signalize/signalize/internal/ir"
)

// --- helpers ---

func run(t *testing.T, src string) *Result {
	t.Helper()
	res, err := File("lib/main.dart", []byte(src))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	return res
}

func wantOutput(t *testing.T, res *Result, want string) {
	t.Helper()
	if got := string(res.Output); got != want {
		t.Errorf("output mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

// --- state field in a State subclass ---

func TestFile_StateField(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';
import 'package:flutter/material.dart';

class Counter extends StatefulWidget {
  const Counter({super.key});

  @override
  State<Counter> createState() => _CounterState();
}

class _CounterState extends State<Counter> {
  @SignalState()
  int count = 0;

  @override
  Widget build(BuildContext context) {
    return Text('Count: $count');
  }
}
`
	want := `import 'package:flutter/material.dart';
import 'package:solid_signals/solid_signals.dart';

class Counter extends StatefulWidget {
  const Counter({super.key});

  @override
  State<Counter> createState() => _CounterState();
}

class _CounterState extends State<Counter> {
  final count = Signal<int>(0, name: 'count');

  @override
  Widget build(BuildContext context) {
    return Watch((context) => Text('Count: ${count.value}'));
  }

  @override
  void dispose() {
    count.dispose();
    super.dispose();
  }
}
`
	res := run(t, src)
	if !res.Changed {
		t.Fatal("Changed = false, want true")
	}
	if res.SyntaxErrors {
		t.Error("SyntaxErrors = true")
	}
	if len(res.Problems) != 0 {
		t.Errorf("Problems = %v", res.Problems)
	}
	wantOutput(t, res, want)

	if len(res.Decls) != 1 {
		t.Fatalf("got %d decls, want 1: %+v", len(res.Decls), res.Decls)
	}
	d := res.Decls[0]
	if d.Class != "_CounterState" || d.Member != "count" || d.Kind != "state" || d.Name != "count" {
		t.Errorf("decl = %+v", d)
	}
}

// --- derived getter ---

func TestFile_DerivedGetter(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';

class _NameState extends State<NameCard> {
  @SignalState()
  String first = 'Ada';

  @SignalState()
  String last = 'Lovelace';

  @SignalState()
  String get full => first + ' ' + last;
}
`
	want := `import 'package:solid_signals/solid_signals.dart';

class _NameState extends State<NameCard> {
  final first = Signal<String>('Ada', name: 'first');

  final last = Signal<String>('Lovelace', name: 'last');

  late final full = Computed(() => first.value + ' ' + last.value);

  @override
  void dispose() {
    first.dispose();
    last.dispose();
    full.dispose();
    super.dispose();
  }
}
`
	res := run(t, src)
	wantOutput(t, res, want)

	if len(res.Decls) != 3 {
		t.Fatalf("got %d decls, want 3", len(res.Decls))
	}
	full := res.Decls[2]
	if full.Kind != "derived" {
		t.Errorf("Kind = %q, want %q", full.Kind, "derived")
	}
	if want := []string{"first", "last"}; !reflect.DeepEqual(full.Deps, want) {
		t.Errorf("Deps = %v, want %v", full.Deps, want)
	}
}

// --- StatelessWidget conversion ---

func TestFile_ConvertsStatelessWidget(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';
import 'package:flutter/material.dart';

class CounterView extends StatelessWidget {
  CounterView({required this.step});

  final int step;

  @SignalState()
  int counter = 0;

  @override
  Widget build(BuildContext context) {
    return Center(
      child: Text('Counter: $counter'),
    );
  }
}

void main() {
  runApp(MaterialApp(home: CounterView(step: 1)));
}
`
	want := `import 'package:flutter/material.dart';
import 'package:solid_signals/solid_signals.dart';

class CounterView extends StatefulWidget {
  CounterView({required this.step});

  final int step;

  @override
  State<CounterView> createState() => _CounterViewState();
}

class _CounterViewState extends State<CounterView> {
  final counter = Signal<int>(0, name: 'counter');

  @override
  Widget build(BuildContext context) {
    return Center(
      child: Watch((context) => Text('Counter: ${counter.value}')),
    );
  }

  @override
  void dispose() {
    counter.dispose();
    super.dispose();
  }
}

void main() {
  SignalsConfig.autoDispose = false;
  runApp(MaterialApp(home: CounterView(step: 1)));
}
`
	res := run(t, src)
	wantOutput(t, res, want)

	if want := []string{"CounterView"}; !reflect.DeepEqual(res.Converted, want) {
		t.Errorf("Converted = %v, want %v", res.Converted, want)
	}

	// a second run over the produced source must be a no-op
	again := run(t, string(res.Output))
	if again.Changed {
		t.Errorf("second run changed the output:\n%s", again.Output)
	}
}

// --- widget-bound fields move reads through widget. ---

func TestFile_ConvertRewritesWidgetFieldReads(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';

class StepCounter extends StatelessWidget {
  StepCounter({required this.step});

  final int step;

  @SignalState()
  int count = 0;

  void bump() {
    count += step;
  }
}
`
	res := run(t, src)
	out := string(res.Output)
	wantMethod := "void bump() {\n    count.value += widget.step;\n  }"
	if !containsStmt(out, wantMethod) {
		t.Errorf("output missing rewritten method %q:\n%s", wantMethod, out)
	}
	if !containsStmt(out, "final int step;") {
		t.Errorf("widget field left the widget class:\n%s", out)
	}
}

// --- effect with existing lifecycle methods ---

func TestFile_EffectMergesLifecycle(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';

class _LogState extends State<Log> {
  @SignalState()
  int count = 0;

  @SignalEffect()
  void logCount() {
    print('count is $count');
  }

  @override
  void initState() {
    super.initState();
    warmCache();
  }

  @override
  void dispose() {
    controller.dispose();
    super.dispose();
  }
}
`
	want := `import 'package:solid_signals/solid_signals.dart';

class _LogState extends State<Log> {
  final count = Signal<int>(0, name: 'count');

  late final logCount = Effect(() {
    print('count is ${count.value}');
  });

  @override
  void initState() {
    super.initState();
    logCount;
    warmCache();
  }

  @override
  void dispose() {
    controller.dispose();
    count.dispose();
    logCount.dispose();
    super.dispose();
  }
}
`
	wantOutput(t, run(t, src), want)
}

// --- effect references in build stay outside rebuild boundaries ---

func TestFile_EffectReferenceDoesNotWrap(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';

class _PanelState extends State<Panel> {
  @SignalState()
  int count = 0;

  @SignalEffect()
  void track() {
    record(count);
  }

  @override
  void initState() {
    super.initState();
  }

  @override
  void dispose() {
    super.dispose();
  }

  @override
  Widget build(BuildContext context) {
    return Column(children: [Text('$count'), Text(describe(track))]);
  }
}
`
	want := `import 'package:solid_signals/solid_signals.dart';

class _PanelState extends State<Panel> {
  final count = Signal<int>(0, name: 'count');

  late final track = Effect(() {
    record(count.value);
  });

  @override
  void initState() {
    super.initState();
    track;
  }

  @override
  void dispose() {
    count.dispose();
    track.dispose();
    super.dispose();
  }

  @override
  Widget build(BuildContext context) {
    return Column(children: [Watch((context) => Text('${count.value}')), Text(describe(track))]);
  }
}
`
	wantOutput(t, run(t, src), want)
}

// --- query with custom name, debounce, and a synthesized source ---

func TestFile_QueryRecordSource(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';

class _SearchState extends State<Search> {
  @SignalState()
  String query = '';

  @SignalState()
  int page = 1;

  @SignalQuery(name: 'results', debounce: Duration(milliseconds: 300))
  Future<List<String>> search() async {
    return fetch(query, page);
  }
}
`
	want := `import 'package:solid_signals/solid_signals.dart';

class _SearchState extends State<Search> {
  final query = Signal<String>('', name: 'query');

  final page = Signal<int>(1, name: 'page');

  late final resultsSource = Computed(() => (query.value, page.value));
  late final results = Resource<List<String>>(() async {
    return fetch(query.value, page.value);
  }, source: resultsSource, debounce: Duration(milliseconds: 300), name: 'results');

  @override
  void dispose() {
    query.dispose();
    page.dispose();
    resultsSource.dispose();
    results.dispose();
    super.dispose();
  }
}
`
	res := run(t, src)
	wantOutput(t, res, want)

	q := res.Decls[2]
	if q.Kind != "query" || q.Member != "search" || q.Name != "results" {
		t.Errorf("query decl = %+v", q)
	}
	if want := []string{"query", "page"}; !reflect.DeepEqual(q.Deps, want) {
		t.Errorf("Deps = %v, want %v", q.Deps, want)
	}
}

// --- environment lookup ---

func TestFile_Environment(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';

class _HomeState extends State<Home> {
  @SignalEnvironment()
  late final AppConfig config;

  @override
  Widget build(BuildContext context) {
    return Text(config.apiUrl);
  }
}
`
	want := `import 'package:solid_signals/solid_signals.dart';

class _HomeState extends State<Home> {
  late final config = SignalScope.read<AppConfig>(context);

  @override
  Widget build(BuildContext context) {
    return Watch((context) => Text(config.value.value.apiUrl));
  }
}
`
	wantOutput(t, run(t, src), want)
}

// --- plain class keeps a super-less dispose ---

func TestFile_PlainClass(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';

class CartModel {
  @SignalState()
  int total = 0;
}
`
	want := `import 'package:solid_signals/solid_signals.dart';

class CartModel {
  final total = Signal<int>(0, name: 'total');

  void dispose() {
    total.dispose();
  }
}
`
	wantOutput(t, run(t, src), want)
}

// --- member-level failure leaves only that member untouched ---

func TestFile_PartialFailure(t *testing.T) {
	src := `import 'package:solid_signals/annotations.dart';

class _MixedState extends State<Mixed> {
  @SignalState()
  int count = 0;

  @SignalQuery()
  int bad() {
    return count;
  }
}
`
	res := run(t, src)
	if len(res.Problems) != 1 {
		t.Fatalf("got %d problems, want 1: %v", len(res.Problems), res.Problems)
	}
	var valErr *ir.ValidationError
	if !errors.As(res.Problems[0], &valErr) {
		t.Fatalf("problem = %v, want *ir.ValidationError", res.Problems[0])
	}
	if valErr.Decl != "bad" || valErr.Violation != ir.ViolationUnsupportedType {
		t.Errorf("validation error = %+v", valErr)
	}

	out := string(res.Output)
	if !containsStmt(out, "final count = Signal<int>(0, name: 'count');") {
		t.Errorf("healthy member not transformed:\n%s", out)
	}
	if !containsStmt(out, "@SignalQuery()") {
		t.Errorf("failed member lost its marker:\n%s", out)
	}
	if containsStmt(out, "bad.dispose();") {
		t.Errorf("failed member leaked into disposal:\n%s", out)
	}
	if len(res.Decls) != 1 || res.Decls[0].Member != "count" {
		t.Errorf("Decls = %+v, want only count", res.Decls)
	}
}

// --- entry point ---

func TestFile_PatchesMain(t *testing.T) {
	src := `import 'package:flutter/material.dart';

void main() {
  runApp(MyApp());
}
`
	want := `import 'package:flutter/material.dart';
import 'package:solid_signals/solid_signals.dart';

void main() {
  SignalsConfig.autoDispose = false;
  runApp(MyApp());
}
`
	res := run(t, src)
	wantOutput(t, res, want)
	if !res.Changed {
		t.Error("Changed = false, want true")
	}
}

func TestFile_MainAlreadyConfigured(t *testing.T) {
	src := `import 'package:flutter/material.dart';
import 'package:solid_signals/solid_signals.dart';

void main() {
  SignalsConfig.autoDispose = true;
  runApp(MyApp());
}
`
	res := run(t, src)
	if res.Changed {
		t.Errorf("Changed = true, output:\n%s", res.Output)
	}
}

// --- files without markers pass through untouched ---

func TestFile_NoMarkers(t *testing.T) {
	src := `import 'package:flutter/material.dart';

class Plain extends StatelessWidget {
  @override
  Widget build(BuildContext context) => Text('static');
}
`
	res := run(t, src)
	if res.Changed {
		t.Errorf("Changed = true, output:\n%s", res.Output)
	}
	if len(res.Decls) != 0 {
		t.Errorf("Decls = %+v, want none", res.Decls)
	}
}

// --- syntax errors are reported, transform stays best-effort ---

func TestFile_SyntaxErrorsFlagged(t *testing.T) {
	src := `class Broken {
  @SignalState()
  int count = 0;
`
	res := run(t, src)
	if !res.SyntaxErrors {
		t.Error("SyntaxErrors = false, want true")
	}
}
