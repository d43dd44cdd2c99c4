package jinja

import (
	"fmt"
	"strings"
)

// node is one instruction of a render routine.
type node interface {
	render(f *frame) error
	describe() string
}

// blockNode is an instruction owning a nested body, the target of
// Builder.Indent.
type blockNode interface {
	node
	bodyRef() *[]node
	withBody([]node) node
}

type literalNode struct {
	text string
}

func (n *literalNode) render(f *frame) error {
	f.out = append(f.out, n.text)
	return nil
}

func (n *literalNode) describe() string { return fmt.Sprintf("append %q", n.text) }

func (n *literalNode) value(*frame) (string, error) { return n.text, nil }

type outputNode struct {
	expr expr
}

func (n *outputNode) render(f *frame) error {
	s, err := n.value(f)
	if err != nil {
		return err
	}
	f.out = append(f.out, s)
	return nil
}

func (n *outputNode) describe() string { return "append str(" + n.expr.String() + ")" }

func (n *outputNode) value(f *frame) (string, error) {
	v, err := n.expr.eval(f)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

// fragment is a literal or output instruction that can be batched.
type fragment interface {
	node
	value(f *frame) (string, error)
}

// batchNode extends the output with a run of consecutive fragments in one
// step. Nothing is appended if any fragment fails.
type batchNode struct {
	parts []fragment
}

func (n *batchNode) render(f *frame) error {
	vals := make([]string, len(n.parts))
	for i, p := range n.parts {
		s, err := p.value(f)
		if err != nil {
			return err
		}
		vals[i] = s
	}
	f.out = append(f.out, vals...)
	return nil
}

func (n *batchNode) describe() string {
	descs := make([]string, len(n.parts))
	for i, p := range n.parts {
		switch p := p.(type) {
		case *literalNode:
			descs[i] = fmt.Sprintf("%q", p.text)
		case *outputNode:
			descs[i] = "str(" + p.expr.String() + ")"
		}
	}
	return "extend [" + strings.Join(descs, ", ") + "]"
}

type ifNode struct {
	cond expr
	body []node
}

func (n *ifNode) render(f *frame) error {
	v, err := n.cond.eval(f)
	if err != nil {
		return err
	}
	if !IsTruthy(v) {
		return nil
	}
	return renderAll(f, n.body)
}

func (n *ifNode) describe() string          { return "if " + n.cond.String() + ":" }
func (n *ifNode) bodyRef() *[]node          { return &n.body }
func (n *ifNode) withBody(body []node) node { return &ifNode{cond: n.cond, body: body} }

type forNode struct {
	name string
	iter expr
	body []node
}

func (n *forNode) render(f *frame) error {
	v, err := n.iter.eval(f)
	if err != nil {
		return err
	}
	items, err := iterate(v)
	if err != nil {
		return &RenderError{Op: "for " + n.name + " in " + n.iter.String(), Err: err}
	}

	f.locals = append(f.locals, binding{name: n.name})
	top := len(f.locals) - 1
	defer func() { f.locals = f.locals[:top] }()

	for item := range items {
		f.locals[top].value = item
		if err := renderAll(f, n.body); err != nil {
			return err
		}
	}
	return nil
}

func (n *forNode) describe() string { return "for " + n.name + " in " + n.iter.String() + ":" }
func (n *forNode) bodyRef() *[]node { return &n.body }
func (n *forNode) withBody(body []node) node {
	return &forNode{name: n.name, iter: n.iter, body: body}
}

// declareNode binds names from the render context before the body runs.
// A missing name fails the render with a LookupError.
type declareNode struct {
	names []string
	from  string // listing label only
}

func (n *declareNode) render(f *frame) error {
	for _, name := range n.names {
		v, ok := f.ctx[name]
		if !ok {
			return &LookupError{Name: name}
		}
		f.bound[name] = v
	}
	return nil
}

func (n *declareNode) describe() string {
	return "declare " + strings.Join(n.names, ", ") + " from " + n.from
}

// sectionNode is a builder placeholder; Materialize replaces it with the
// section's content.
type sectionNode struct {
	b *Builder
}

func (n *sectionNode) render(*frame) error {
	return &BuildError{Msg: "section rendered before materialization"}
}

func (n *sectionNode) describe() string { return "section" }

func renderAll(f *frame, nodes []node) error {
	for _, n := range nodes {
		if err := n.render(f); err != nil {
			return err
		}
	}
	return nil
}
