package codegen

import (
	"errors"
	"testing"

	"github.com/signalize/signalize/internal/ir"
)

// --- helpers ---

func depSet(names ...string) *ir.DependencySet {
	s := ir.NewDependencySet()
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func boolPtr(v bool) *bool { return &v }

// --- state ---

func TestState(t *testing.T) {
	tests := []struct {
		name  string
		field ir.Field
		ann   ir.Annotation
		want  string
	}{
		{
			"initializer and field name",
			ir.Field{Name: "count", Type: "int", Initializer: "0"},
			ir.Annotation{},
			"final count = Signal<int>(0, name: 'count');",
		},
		{
			"custom debug label",
			ir.Field{Name: "count", Type: "int", Initializer: "0"},
			ir.Annotation{CustomName: "counter"},
			"final count = Signal<int>(0, name: 'counter');",
		},
		{
			"missing initializer uses the type default",
			ir.Field{Name: "title", Type: "String"},
			ir.Annotation{},
			"final title = Signal<String>('', name: 'title');",
		},
		{
			"nullable defaults to null",
			ir.Field{Name: "user", Type: "User?", Nullable: true},
			ir.Annotation{},
			"final user = Signal<User?>(null, name: 'user');",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := State(&tt.field, &tt.ann)
			if err != nil {
				t.Fatalf("State: %v", err)
			}
			if got != tt.want {
				t.Errorf("State = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultValue(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{"int", "0"},
		{"double", "0.0"},
		{"bool", "false"},
		{"String", "''"},
		{"List", "[]"},
		{"List<int>", "[]"},
		{"Iterable<Post>", "[]"},
		{"Map<String, int>", "{}"},
		{"Set<int>", "{}"},
		{"int?", "null"},
		{"List<int>?", "null"},
		{"dynamic", "null"},
		{"", "null"},
		{"Duration", "null"},
		{"AppConfig", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			if got := DefaultValue(tt.typ); got != tt.want {
				t.Errorf("DefaultValue(%q) = %q, want %q", tt.typ, got, tt.want)
			}
		})
	}
}

// --- derived ---

func TestDerived(t *testing.T) {
	tests := []struct {
		name   string
		getter ir.Getter
		deps   *ir.DependencySet
		env    []string
		want   string
	}{
		{
			"no dependencies stays eager",
			ir.Getter{Name: "greeting", Type: "String", Body: "'hello'"},
			depSet(),
			nil,
			"final greeting = Computed(() => 'hello');",
		},
		{
			"dependencies force lazy and get accessors",
			ir.Getter{Name: "full", Type: "String", Body: "first + ' ' + last"},
			depSet("first", "last"),
			nil,
			"late final full = Computed(() => first.value + ' ' + last.value);",
		},
		{
			"environment names take the double accessor",
			ir.Getter{Name: "endpoint", Type: "String", Body: "config.apiUrl"},
			depSet("config"),
			[]string{"config"},
			"late final endpoint = Computed(() => config.value.value.apiUrl);",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Derived(&tt.getter, tt.deps, tt.env)
			if err != nil {
				t.Fatalf("Derived: %v", err)
			}
			if got != tt.want {
				t.Errorf("Derived = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDerived_NoExpressionBody(t *testing.T) {
	g := ir.Getter{Name: "expensive", Type: "int"}
	_, err := Derived(&g, depSet(), nil)
	var genErr *ir.GenError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want *ir.GenError", err)
	}
	if genErr.Decl != "expensive" {
		t.Errorf("Decl = %q, want %q", genErr.Decl, "expensive")
	}
}

// --- effect ---

func TestEffect(t *testing.T) {
	m := ir.Method{
		Name: "logCount",
		Body: "{\n    print('count is $count');\n  }",
	}
	got, err := Effect(&m, depSet("count"), nil)
	if err != nil {
		t.Fatalf("Effect: %v", err)
	}
	want := "late final logCount = Effect(() {\n    print('count is ${count.value}');\n  });"
	if got != want {
		t.Errorf("Effect = %q, want %q", got, want)
	}
}

func TestEffect_NoBody(t *testing.T) {
	m := ir.Method{Name: "ghost"}
	_, err := Effect(&m, depSet(), nil)
	var genErr *ir.GenError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want *ir.GenError", err)
	}
}

// --- query ---

func TestQuery(t *testing.T) {
	tests := []struct {
		name   string
		method ir.Method
		ann    ir.Annotation
		deps   *ir.DependencySet
		want   []string
	}{
		{
			"no dependencies refreshes on demand",
			ir.Method{Name: "fetchAll", ReturnType: "Future<List<Post>>", Body: "async {\n    return api.all();\n  }"},
			ir.Annotation{},
			depSet(),
			[]string{"late final fetchAll = Resource<List<Post>>(() async {\n    return api.all();\n  }, name: 'fetchAll');"},
		},
		{
			"single dependency becomes the source",
			ir.Method{Name: "search", ReturnType: "Future<List<Post>>", Body: "async => api.search(query)"},
			ir.Annotation{},
			depSet("query"),
			[]string{"late final search = Resource<List<Post>>(() async => api.search(query.value), source: query, name: 'search');"},
		},
		{
			"multiple dependencies synthesize a record source",
			ir.Method{Name: "fetch", ReturnType: "Future<List<Post>>", Body: "async => api.fetch(query, page)"},
			ir.Annotation{CustomName: "results"},
			depSet("query", "page"),
			[]string{
				"late final resultsSource = Computed(() => (query.value, page.value));",
				"late final results = Resource<List<Post>>(() async => api.fetch(query.value, page.value), source: resultsSource, name: 'results');",
			},
		},
		{
			"stream return uses the stream constructor",
			ir.Method{Name: "ticks", ReturnType: "Stream<int>", Body: "async* {\n    yield 1;\n  }"},
			ir.Annotation{},
			depSet(),
			[]string{"late final ticks = Resource<int>.stream(() async* {\n    yield 1;\n  }, name: 'ticks');"},
		},
		{
			"bare future elements are dynamic",
			ir.Method{Name: "ping", ReturnType: "Future", Body: "async => api.ping()"},
			ir.Annotation{},
			depSet(),
			[]string{"late final ping = Resource<dynamic>(() async => api.ping(), name: 'ping');"},
		},
		{
			"debounce and refresh flags pass through",
			ir.Method{Name: "lookup", ReturnType: "Future<User>", Body: "async => api.lookup(id)"},
			ir.Annotation{Debounce: "Duration(milliseconds: 300)", UseRefreshing: boolPtr(true)},
			depSet("id"),
			[]string{"late final lookup = Resource<User>(() async => api.lookup(id.value), source: id, debounce: Duration(milliseconds: 300), useRefreshing: true, name: 'lookup');"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Query(&tt.method, &tt.ann, tt.deps, nil)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d declarations, want %d: %q", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("decl[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestQuery_RejectsSynchronousReturn(t *testing.T) {
	m := ir.Method{Name: "bad", ReturnType: "int", Body: "=> 1"}
	_, err := Query(&m, &ir.Annotation{}, depSet(), nil)
	var valErr *ir.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want *ir.ValidationError", err)
	}
	if valErr.Violation != ir.ViolationUnsupportedType {
		t.Errorf("Violation = %q, want %q", valErr.Violation, ir.ViolationUnsupportedType)
	}
}

// --- environment ---

func TestEnvironment(t *testing.T) {
	tests := []struct {
		name  string
		field ir.Field
		want  string
	}{
		{
			"typed lookup",
			ir.Field{Name: "config", Type: "AppConfig"},
			"late final config = SignalScope.read<AppConfig>(context);",
		},
		{
			"nullable key drops the question mark",
			ir.Field{Name: "theme", Type: "ThemeData?", Nullable: true},
			"late final theme = SignalScope.read<ThemeData>(context);",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Environment(&tt.field, &ir.Annotation{})
			if err != nil {
				t.Fatalf("Environment: %v", err)
			}
			if got != tt.want {
				t.Errorf("Environment = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvironment_NeedsDeclaredType(t *testing.T) {
	for _, typ := range []string{"", "dynamic"} {
		f := ir.Field{Name: "anything", Type: typ}
		_, err := Environment(&f, &ir.Annotation{})
		var valErr *ir.ValidationError
		if !errors.As(err, &valErr) {
			t.Fatalf("type %q: err = %v, want *ir.ValidationError", typ, err)
		}
	}
}

// --- teardown ---

func TestDisposalAndForceEval(t *testing.T) {
	if got := Disposal("count"); got != "count.dispose();" {
		t.Errorf("Disposal = %q", got)
	}
	if got := ForceEval("logCount"); got != "logCount;" {
		t.Errorf("ForceEval = %q", got)
	}
}
