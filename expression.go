package jinja

import (
	"regexp"
	"strings"
)

// expr is a compiled expression evaluated against a render frame.
type expr interface {
	eval(f *frame) (any, error)
	String() string
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether name is a valid variable or filter name.
func IsIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// nameExpr looks a bare name up in the current frame.
type nameExpr struct {
	name string
}

func (e *nameExpr) eval(f *frame) (any, error) { return f.lookup(e.name) }
func (e *nameExpr) String() string             { return e.name }

// dotExpr applies the resolver to the root value and the literal path.
type dotExpr struct {
	root *nameExpr
	path []string
}

func (e *dotExpr) eval(f *frame) (any, error) {
	v, err := e.root.eval(f)
	if err != nil {
		return nil, err
	}
	v, err = f.resolver.Resolve(v, e.path)
	if err != nil {
		return nil, unwrapLookup(err, e.root.name)
	}
	return v, nil
}

func (e *dotExpr) String() string {
	return e.root.name + "." + strings.Join(e.path, ".")
}

// filterExpr pipes a variable through one-argument callables left to right,
// so a|f|g evaluates as g(f(a)).
type filterExpr struct {
	arg     *nameExpr
	filters []string
}

func (e *filterExpr) eval(f *frame) (any, error) {
	v, err := e.arg.eval(f)
	if err != nil {
		return nil, err
	}
	for _, name := range e.filters {
		fn, err := f.lookup(name)
		if err != nil {
			return nil, err
		}
		v, err = callFilter(fn, v)
		if err != nil {
			return nil, &RenderError{Op: "filter " + name, Err: err}
		}
	}
	return v, nil
}

func (e *filterExpr) String() string {
	return e.arg.name + "|" + strings.Join(e.filters, "|")
}

// expression compiles the content of an output tag or the operand of an if
// or for tag. The pipe is checked before the dot, so an expression mixing
// both fails as an invalid identifier.
func (c *compiler) expression(text string, tok Token) (expr, error) {
	switch {
	case strings.Contains(text, "|"):
		parts := strings.Split(text, "|")
		arg, err := c.variable(strings.TrimSpace(parts[0]), tok)
		if err != nil {
			return nil, err
		}
		fe := &filterExpr{arg: arg}
		for _, p := range parts[1:] {
			fn, err := c.variable(strings.TrimSpace(p), tok)
			if err != nil {
				return nil, err
			}
			fe.filters = append(fe.filters, fn.name)
		}
		return fe, nil

	case strings.Contains(text, "."):
		segs := strings.Split(text, ".")
		root, err := c.variable(segs[0], tok)
		if err != nil {
			return nil, err
		}
		for _, s := range segs[1:] {
			if s == "" {
				return nil, syntaxErrorf(tok, "empty attribute in %q", text)
			}
		}
		return &dotExpr{root: root, path: segs[1:]}, nil
	}

	return c.variable(text, tok)
}

// variable validates name and records it as referenced.
func (c *compiler) variable(name string, tok Token) (*nameExpr, error) {
	if !IsIdentifier(name) {
		return nil, syntaxErrorf(tok, "not a valid name: %q", name)
	}
	c.referenced.add(name)
	return &nameExpr{name: name}, nil
}
