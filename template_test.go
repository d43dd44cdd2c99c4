package jinja

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type toggle struct {
	IsTrue bool
}

type account struct {
	Name  string
	roles map[string]bool
}

func (a *account) Profile() map[string]any {
	return map[string]any{"handle": "@" + strings.ToLower(a.Name)}
}

func (a *account) Greeting(prefix string) string { return prefix + " " + a.Name }

type record map[string]any

func (r record) GetField(name string) (any, bool) {
	if name == "kind" {
		return "record", true
	}
	return nil, false
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		base     []map[string]any
		context  map[string]any
		want     string
	}{
		{
			name:     "literal passthrough",
			template: "  <h1>Hello</h1>\n",
			want:     "  <h1>Hello</h1>\n",
		},
		{
			name:     "simple variable",
			template: "Hello {{ name }}!",
			context:  map[string]any{"name": "World"},
			want:     "Hello World!",
		},
		{
			name:     "filter from base context",
			template: "<h1>Hello {{ name|upper }}!</h1>",
			base:     []map[string]any{{"upper": strings.ToUpper}},
			context:  map[string]any{"name": "ss"},
			want:     "<h1>Hello SS!</h1>",
		},
		{
			name:     "filter chain applies left to right",
			template: "{{ name|trim|upper }}",
			base:     []map[string]any{DefaultFilters()},
			context:  map[string]any{"name": "  ss "},
			want:     "SS",
		},
		{
			name:     "filter chain with spaces",
			template: "{{ name | capitalize }}",
			base:     []map[string]any{DefaultFilters()},
			context:  map[string]any{"name": "wORLD"},
			want:     "World",
		},
		{
			name:     "if on dotted false",
			template: "[{% if obj.isTrue %}A{% endif %}]",
			context:  map[string]any{"obj": map[string]any{"isTrue": false}},
			want:     "[]",
		},
		{
			name:     "if on dotted true",
			template: "[{% if obj.isTrue %}A{% endif %}]",
			context:  map[string]any{"obj": map[string]any{"isTrue": true}},
			want:     "[A]",
		},
		{
			name:     "if on struct field",
			template: "{% if obj.isTrue %}A{% endif %}",
			context:  map[string]any{"obj": toggle{IsTrue: true}},
			want:     "A",
		},
		{
			name:     "for loop",
			template: "{% for x in items %}{{x}},{% endfor %}",
			context:  map[string]any{"items": []string{"a", "b"}},
			want:     "a,b,",
		},
		{
			name:     "for loop over empty list",
			template: "Items: {% for x in items %}{{ x }},{% endfor %}",
			context:  map[string]any{"items": []any{}},
			want:     "Items: ",
		},
		{
			name:     "nested loops",
			template: "{% for i in outer %}[{% for j in inner %}{{ i }}{{ j }}{% endfor %}]{% endfor %}",
			context:  map[string]any{"outer": []any{"a", "b"}, "inner": []int{1, 2}},
			want:     "[a1a2][b1b2]",
		},
		{
			name:     "loop over string",
			template: "{% for c in text %}{{ c }}-{% endfor %}",
			context:  map[string]any{"text": "héllo"},
			want:     "h-é-l-l-o-",
		},
		{
			name:     "loop over map keys sorted",
			template: "{% for k in m %}{{ k }}={% endfor %}",
			context:  map[string]any{"m": map[string]int{"b": 2, "a": 1, "c": 3}},
			want:     "a=b=c=",
		},
		{
			name:     "loop variable attribute access",
			template: "{% for u in users %}{{ u.name }};{% endfor %}",
			context: map[string]any{"users": []map[string]any{
				{"name": "Alice"}, {"name": "Bob"},
			}},
			want: "Alice;Bob;",
		},
		{
			name: "greeting page",
			template: `<h1>Hello {{name|upper}}!</h1>
{% for topic in topics %}<p>You are interested in {{topic}}.</p>
{% endfor %}`,
			base: []map[string]any{{"upper": strings.ToUpper}},
			context: map[string]any{
				"name":   "ss",
				"topics": []string{"Python", "Geometry"},
			},
			want: "<h1>Hello SS!</h1>\n<p>You are interested in Python.</p>\n<p>You are interested in Geometry.</p>\n",
		},
		{
			name:     "comment discarded",
			template: "a{# hidden {{ nope }} #}b",
			want:     "ab",
		},
		{
			name:     "nil renders empty",
			template: "[{{ v }}]",
			context:  map[string]any{"v": nil},
			want:     "[]",
		},
		{
			name:     "numbers and bools",
			template: "{{ n }} {{ f }} {{ b }}",
			context:  map[string]any{"n": 42, "f": 1.5, "b": true},
			want:     "42 1.5 true",
		},
		{
			name:     "method is invoked",
			template: "{{ acct.profile.handle }}",
			context:  map[string]any{"acct": &account{Name: "Ada"}},
			want:     "@ada",
		},
		{
			name:     "zero argument func in map is invoked",
			template: "{{ site.now.year }}",
			context: map[string]any{"site": map[string]any{
				"now": func() map[string]int { return map[string]int{"year": 2024} },
			}},
			want: "2024",
		},
		{
			name:     "attribute before key",
			template: "{{ r.kind }}/{{ r.other }}",
			context:  map[string]any{"r": record{"kind": "key", "other": "x"}},
			want:     "record/x",
		},
		{
			name:     "index into slice",
			template: "{{ items.0 }}{{ items.-1 }}",
			context:  map[string]any{"items": []string{"first", "last"}},
			want:     "firstlast",
		},
		{
			name:     "override wins over base",
			template: "{{ who }}",
			base:     []map[string]any{{"who": "base"}, {"who": "second"}},
			context:  map[string]any{"who": "override"},
			want:     "override",
		},
		{
			name:     "later base context wins",
			template: "{{ who }}",
			base:     []map[string]any{{"who": "base"}, {"who": "second"}},
			want:     "second",
		},
		{
			name:     "method value used as filter",
			template: "{{ word|greet }}",
			context: map[string]any{
				"word":  "Hi",
				"greet": (&account{Name: "Bo"}).Greeting,
			},
			want: "Hi Bo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Compile(tt.template, tt.base...)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			got, err := tmpl.Render(tt.context)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompile_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		line     int
		msg      string
	}{
		{"mismatched end", "{% if x %}...{% endfor %}", 1, "mismatched end tag"},
		{"end with empty stack", "{% endif %}", 1, "too many ends"},
		{"unclosed block", "a\n{% for x in xs %}\n{{ x }}", 2, "unclosed for block"},
		{"if without expression", "{% if %}{% endif %}", 1, "exactly one expression"},
		{"if with two words", "{% if a b %}{% endif %}", 1, "exactly one expression"},
		{"for without in", "{% for x items %}{% endfor %}", 1, "for <name> in <expr>"},
		{"for with wrong keyword", "{% for x of items %}{% endfor %}", 1, "for <name> in <expr>"},
		{"for with bad loop name", "{% for 1x in items %}{% endfor %}", 1, "not a valid name"},
		{"end with argument", "{% if x %}{% endif x %}", 1, "takes no arguments"},
		{"bare end", "{% if x %}{% end %}", 1, "mismatched end tag"},
		{"unknown tag", "{% while x %}", 1, "unrecognized tag"},
		{"empty tag", "{%  %}", 1, "empty tag"},
		{"invalid identifier", "{{ 1abc }}", 1, "not a valid name"},
		{"empty expression", "{{ }}", 1, "not a valid name"},
		{"dot and pipe mixed", "{{ a.b|upper }}", 1, "not a valid name"},
		{"empty attribute", "{{ a..b }}", 1, "empty attribute"},
		{"empty filter", "{{ a| }}", 1, "not a valid name"},
		{"error on later line", "ok\nok\n{% endfor %}", 3, "too many ends"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Compile(tt.template)
			if tmpl != nil {
				t.Errorf("Compile() returned a template, want nil")
			}
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("Compile() error = %v, want *SyntaxError", err)
			}
			if !errors.Is(err, ErrSyntax) {
				t.Errorf("errors.Is(err, ErrSyntax) = false")
			}
			if se.Line != tt.line {
				t.Errorf("Line = %d, want %d", se.Line, tt.line)
			}
			if !strings.Contains(se.Error(), tt.msg) {
				t.Errorf("Error() = %q, want it to contain %q", se.Error(), tt.msg)
			}
		})
	}
}

func TestRender_LookupErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		context  map[string]any
		varName  string
		segment  string
	}{
		{
			name:     "missing variable",
			template: "Hello {{ name }}",
			varName:  "name",
		},
		{
			name:     "missing variable in untaken branch",
			template: "{% if flag %}{{ name }}{% endif %}",
			context:  map[string]any{"flag": false},
			varName:  "name",
		},
		{
			name:     "missing filter",
			template: "{{ name|shout }}",
			context:  map[string]any{"name": "x"},
			varName:  "shout",
		},
		{
			name:     "missing attribute",
			template: "{{ obj.missing }}",
			context:  map[string]any{"obj": map[string]any{"there": 1}},
			varName:  "obj",
			segment:  "missing",
		},
		{
			name:     "unexported field",
			template: "{{ acct.roles }}",
			context:  map[string]any{"acct": &account{Name: "x"}},
			varName:  "acct",
			segment:  "roles",
		},
		{
			name:     "loop variable used after its loop",
			template: "{% for x in xs %}{% endfor %}{{ x }}",
			context:  map[string]any{"xs": []int{1}},
			varName:  "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := MustCompile(tt.template)
			got, err := tmpl.Render(tt.context)
			if got != "" {
				t.Errorf("Render() = %q, want empty output on error", got)
			}
			var le *LookupError
			if !errors.As(err, &le) {
				t.Fatalf("Render() error = %v, want *LookupError", err)
			}
			if !errors.Is(err, ErrLookup) {
				t.Errorf("errors.Is(err, ErrLookup) = false")
			}
			if le.Name != tt.varName || le.Segment != tt.segment {
				t.Errorf("LookupError = {Name: %q, Segment: %q}, want {%q, %q}", le.Name, le.Segment, tt.varName, tt.segment)
			}
		})
	}
}

func TestRender_RenderErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		context  map[string]any
	}{
		{"iterate over number", "{% for x in n %}{% endfor %}", map[string]any{"n": 3}},
		{"filter not callable", "{{ a|b }}", map[string]any{"a": 1, "b": "nope"}},
		{"filter with two parameters", "{{ a|b }}", map[string]any{"a": 1, "b": strings.Repeat}},
		{"filter returns error", "{{ a|length }}", map[string]any{"a": 3, "length": FilterFunc(lengthFilter)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MustCompile(tt.template).Render(tt.context)
			var re *RenderError
			if !errors.As(err, &re) || !errors.Is(err, ErrRender) {
				t.Fatalf("Render() error = %v, want *RenderError", err)
			}
		})
	}
}

func TestRender_ReusableAfterLookupError(t *testing.T) {
	tmpl := MustCompile("Hi {{ name }}")
	if _, err := tmpl.Render(); err == nil {
		t.Fatal("Render() without name succeeded, want error")
	}
	got, err := tmpl.Render(map[string]any{"name": "again"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "Hi again" {
		t.Errorf("Render() = %q, want %q", got, "Hi again")
	}
}

func TestRender_LoopVariableExemptFromContext(t *testing.T) {
	tmpl := MustCompile("{% for item in items %}<{{ item }}>{% endfor %}")
	if diff := cmp.Diff([]string{"items"}, tmpl.Required()); diff != "" {
		t.Errorf("Required() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"item", "items"}, tmpl.Referenced()); diff != "" {
		t.Errorf("Referenced() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"item"}, tmpl.LoopBound()); diff != "" {
		t.Errorf("LoopBound() mismatch (-want +got):\n%s", diff)
	}
	got, err := tmpl.Render(map[string]any{"items": []int{1, 2}})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "<1><2>" {
		t.Errorf("Render() = %q, want %q", got, "<1><2>")
	}
}

func TestRender_LoopVariableShadowsContext(t *testing.T) {
	tmpl := MustCompile("{{ x }}{% for x in xs %}{{ x }}{% endfor %}{{ x }}", map[string]any{"x": "-"})
	got, err := tmpl.Render(map[string]any{"xs": []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "-ab-" {
		t.Errorf("Render() = %q, want %q", got, "-ab-")
	}
}

func TestRender_Deterministic(t *testing.T) {
	const text = "{% for k in m %}{{ k }}{% if flag %}!{% endif %}{% endfor %}"
	ctx := map[string]any{
		"m":    map[string]any{"z": 1, "y": 2, "x": 3, "w": 4},
		"flag": true,
	}
	first, err := MustCompile(text).Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		got, err := MustCompile(text).Render(ctx)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if got != first {
			t.Fatalf("render %d = %q, want %q", i, got, first)
		}
	}
}

func TestRender_Concurrent(t *testing.T) {
	tmpl := MustCompile("{% for x in xs %}{{ x|upper }}{% endfor %}", DefaultFilters())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := tmpl.Render(map[string]any{"xs": []string{"a", "b"}})
				if err != nil || got != "AB" {
					t.Errorf("Render() = %q, %v", got, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestTemplate_SourceListing(t *testing.T) {
	tmpl := MustCompile("Hi {{ name|upper }}!{% if obj.ok %}{% for t in topics %}<{{ t }}>{% endfor %}{% endif %}",
		map[string]any{"upper": strings.ToUpper})
	want := `declare name, obj, topics from context
declare upper from base context
extend ["Hi ", str(name|upper), "!"]
if obj.ok:
    for t in topics:
        extend ["<", str(t), ">"]
`
	if diff := cmp.Diff(want, tmpl.Source()); diff != "" {
		t.Errorf("Source() mismatch (-want +got):\n%s", diff)
	}
}

func TestTemplate_Missing(t *testing.T) {
	tmpl := MustCompile("{{ a }}{{ b.c }}{{ d|e }}", map[string]any{"e": strings.ToUpper})
	if diff := cmp.Diff([]string{"b", "d"}, tmpl.Missing(map[string]any{"a": 1})); diff != "" {
		t.Errorf("Missing() mismatch (-want +got):\n%s", diff)
	}
}

func TestRoutine_ExecuteWithCustomResolver(t *testing.T) {
	tmpl := MustCompile("{{ a.b.c }}")
	resolver := ResolverFunc(func(value any, path []string) (any, error) {
		return strings.Join(path, "/"), nil
	})
	got, err := tmpl.Routine().Execute(map[string]any{"a": nil}, resolver)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != "b/c" {
		t.Errorf("Execute() = %q, want %q", got, "b/c")
	}
}

func TestRenderTo(t *testing.T) {
	var sb strings.Builder
	if err := MustCompile("{{ a }}").RenderTo(&sb, map[string]any{"a": "x"}); err != nil {
		t.Fatalf("RenderTo() error = %v", err)
	}
	if sb.String() != "x" {
		t.Errorf("RenderTo() wrote %q, want %q", sb.String(), "x")
	}
	sb.Reset()
	if err := MustCompile("{{ a }}").RenderTo(&sb); err == nil {
		t.Fatal("RenderTo() without a succeeded, want error")
	}
	if sb.Len() != 0 {
		t.Errorf("RenderTo() wrote %q on error", sb.String())
	}
}

func TestRender_LoopOverNil(t *testing.T) {
	got, err := MustCompile("Items: {% for item in items %}{{ item }},{% endfor %}").Render(map[string]any{"items": nil})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "Items: " {
		t.Errorf("Render() = %q, want %q", got, "Items: ")
	}
}

func TestRender_LoopNameUsedBeforeItsLoop(t *testing.T) {
	tmpl := MustCompile("{{ x }}{% for x in xs %}[{{ x }}]{% endfor %}")
	if diff := cmp.Diff([]string{"xs"}, tmpl.Required()); diff != "" {
		t.Errorf("Required() mismatch (-want +got):\n%s", diff)
	}

	// Outside the loop the name comes straight from the render context.
	got, err := tmpl.Render(map[string]any{"x": "outer", "xs": []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "outer[a][b]" {
		t.Errorf("Render() = %q, want %q", got, "outer[a][b]")
	}

	_, err = tmpl.Render(map[string]any{"xs": []string{"a"}})
	var le *LookupError
	if !errors.As(err, &le) || le.Name != "x" {
		t.Errorf("Render() without x error = %v, want LookupError for x", err)
	}
}
