package transform

import "testing"

func TestWrapReactive(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		triggers []string
		queries  []string
		want     string
	}{
		{
			"smallest widget around the read",
			"return Column(children: [Text('Count: $count'), Text('static')]);",
			[]string{"count"},
			nil,
			"return Column(children: [Watch((context) => Text('Count: $count')), Text('static')]);",
		},
		{
			"independent reads wrap independently",
			"return Row(children: [Text('$a'), Text('$b')]);",
			[]string{"a", "b"},
			nil,
			"return Row(children: [Watch((context) => Text('$a')), Watch((context) => Text('$b'))]);",
		},
		{
			"plain call argument climbs to the enclosing widget",
			"return Text(fmt(count));",
			[]string{"count"},
			nil,
			"return Watch((context) => Text(fmt(count)));",
		},
		{
			"nested wrap collapses into the outer one",
			"return Container(child: Text('$a'), width: b);",
			[]string{"a", "b"},
			nil,
			"return Watch((context) => Container(child: Text('$a'), width: b));",
		},
		{
			"label and value around a read",
			"return SizedBox(height: gap);",
			[]string{"gap"},
			nil,
			"return Watch((context) => SizedBox(height: gap));",
		},
		{
			"existing boundary suppresses wrapping",
			"return Watch((context) => Text('$count'));",
			[]string{"count"},
			nil,
			"return Watch((context) => Text('$count'));",
		},
		{
			"member-access tail is not a read",
			"return Text(api.count);",
			[]string{"count"},
			nil,
			"return Text(api.count);",
		},
		{
			"read outside any widget call stays put",
			"return count;",
			[]string{"count"},
			nil,
			"return count;",
		},
		{
			"no triggers",
			"return Text('$count');",
			nil,
			nil,
			"return Text('$count');",
		},
		{
			"tri-state dispatch wraps the whole expression",
			"return posts.state.on(\n      data: (items) => ListView(children: items),\n      loading: () => CircularProgressIndicator(),\n    );",
			[]string{"posts"},
			[]string{"posts"},
			"return Watch((context) => posts.state.on(\n      data: (items) => ListView(children: items),\n      loading: () => CircularProgressIndicator(),\n    ));",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapReactive(tt.text, tt.triggers, tt.queries)
			if got != tt.want {
				t.Errorf("wrapReactive = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCallGroups(t *testing.T) {
	src := []byte("Padding(padding: insets, child: _Badge(label))")
	groups := callGroups(src)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2: %+v", len(groups), groups)
	}
	// nested group closes first
	if got := string(src[groups[0].start:groups[0].end]); got != "_Badge(label)" {
		t.Errorf("groups[0] = %q", got)
	}
	if got := string(src[groups[1].start:groups[1].end]); got != "Padding(padding: insets, child: _Badge(label))" {
		t.Errorf("groups[1] = %q", got)
	}
}

func TestCallGroups_GenericConstructor(t *testing.T) {
	src := []byte("StreamBuilder<int>(stream: ticks)")
	groups := callGroups(src)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1: %+v", len(groups), groups)
	}
	if got := string(src[groups[0].start:groups[0].end]); got != string(src) {
		t.Errorf("group = %q, want the whole call", got)
	}
}

func TestCallGroups_LowercaseCalleesIgnored(t *testing.T) {
	if groups := callGroups([]byte("compute(a, helper(b))")); len(groups) != 0 {
		t.Errorf("got %d groups, want 0: %+v", len(groups), groups)
	}
}
