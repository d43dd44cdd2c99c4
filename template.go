package jinja

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// Template is a compiled template: its source text, the merged base context
// and the routine rendering it. A Template is safe for concurrent use as
// long as the maps passed as base contexts are not modified afterwards.
type Template struct {
	text       string
	context    map[string]any
	routine    *Routine
	resolver   Resolver
	referenced []string
	loopBound  []string
	required   []string
}

// Compile turns template text into a Template. The base contexts are merged
// left to right, later maps overriding earlier ones. A malformed tag yields
// a *SyntaxError and no Template.
func Compile(text string, contexts ...map[string]any) (*Template, error) {
	return compileWith(text, DefaultResolver, contexts...)
}

// MustCompile is like Compile but panics on error.
func MustCompile(text string, contexts ...map[string]any) *Template {
	t, err := Compile(text, contexts...)
	if err != nil {
		panic(fmt.Sprintf("jinja: MustCompile: %v", err))
	}
	return t
}

func compileWith(text string, resolver Resolver, contexts ...map[string]any) (*Template, error) {
	base := make(map[string]any)
	for _, ctx := range contexts {
		maps.Copy(base, ctx)
	}
	res, err := compileTemplate(text, base)
	if err != nil {
		return nil, err
	}
	return &Template{
		text:       text,
		context:    base,
		routine:    res.routine,
		resolver:   resolver,
		referenced: res.referenced,
		loopBound:  res.loopBound,
		required:   res.required,
	}, nil
}

// Render executes the template. The overrides are merged over the base
// context for this call only. Missing names fail with a *LookupError; the
// template stays usable for later calls.
func (t *Template) Render(overrides ...map[string]any) (string, error) {
	return t.routine.Execute(t.renderContext(overrides), t.resolver)
}

// RenderTo renders the template and writes the output to w. Nothing is
// written when rendering fails.
func (t *Template) RenderTo(w io.Writer, overrides ...map[string]any) error {
	out, err := t.Render(overrides...)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func (t *Template) renderContext(overrides []map[string]any) map[string]any {
	if len(overrides) == 0 {
		return t.context
	}
	size := len(t.context)
	for _, o := range overrides {
		size += len(o)
	}
	ctx := make(map[string]any, size)
	maps.Copy(ctx, t.context)
	for _, o := range overrides {
		maps.Copy(ctx, o)
	}
	return ctx
}

// Routine returns the compiled routine, for callers supplying their own
// context and resolver.
func (t *Template) Routine() *Routine { return t.routine }

// Text returns the template source text.
func (t *Template) Text() string { return t.text }

// Source returns the indented instruction listing of the compiled routine.
func (t *Template) Source() string { return t.routine.Source() }

// Referenced returns every variable and filter name the template uses.
func (t *Template) Referenced() []string { return slices.Clone(t.referenced) }

// LoopBound returns the names introduced by for tags.
func (t *Template) LoopBound() []string { return slices.Clone(t.loopBound) }

// Required returns the names a render context must provide: the referenced
// names that are not loop variables.
func (t *Template) Required() []string { return slices.Clone(t.required) }

// Missing returns the required names absent from the base context merged
// with overrides. An empty result means Render cannot fail on a missing
// top-level name.
func (t *Template) Missing(overrides ...map[string]any) []string {
	ctx := t.renderContext(overrides)
	var missing []string
	for _, name := range t.required {
		if _, ok := ctx[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
