package jinja

import "strings"

// Routine is a compiled template body. It holds no mutable state and may be
// executed repeatedly and concurrently with different contexts.
type Routine struct {
	nodes  []node
	source string
}

// Execute renders the routine against ctx, resolving dotted paths with
// resolver. A nil resolver selects DefaultResolver. Output is only returned
// when every instruction succeeds.
func (r *Routine) Execute(ctx map[string]any, resolver Resolver) (string, error) {
	if resolver == nil {
		resolver = DefaultResolver
	}
	f := &frame{
		ctx:      ctx,
		resolver: resolver,
		bound:    make(map[string]any),
	}
	if err := renderAll(f, r.nodes); err != nil {
		return "", err
	}
	return strings.Join(f.out, ""), nil
}

// Source returns the indented instruction listing the routine was built
// from, useful when debugging a template.
func (r *Routine) Source() string {
	return r.source
}

type binding struct {
	name  string
	value any
}

// frame is the per-call state of one Execute.
type frame struct {
	ctx      map[string]any
	resolver Resolver
	bound    map[string]any
	locals   []binding
	out      []string
}

// lookup resolves a bare name: innermost loop variable first, then names
// bound by declarations, then the render context itself.
func (f *frame) lookup(name string) (any, error) {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i].name == name {
			return f.locals[i].value, nil
		}
	}
	if v, ok := f.bound[name]; ok {
		return v, nil
	}
	if v, ok := f.ctx[name]; ok {
		return v, nil
	}
	return nil, &LookupError{Name: name}
}
