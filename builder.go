package jinja

import (
	"fmt"
	"strings"
)

// indentStep is the number of columns one nesting level adds to the source
// listing produced by a Builder.
const indentStep = 4

// Builder accumulates the instructions of a render routine in emission
// order. Indent nests following instructions inside the last block
// instruction; sections are placeholders that can be filled after code
// following them has already been appended.
type Builder struct {
	root  []node
	open  []*[]node // bodies receiving instructions; open[0] is &root
	base  int       // indent level the builder was opened at
	err   error
	owner *sectionNode
}

// NewBuilder returns an empty top-level Builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.open = []*[]node{&b.root}
	return b
}

// Level reports the current indent level.
func (b *Builder) Level() int {
	return b.base + len(b.open) - 1
}

// AppendLine appends one instruction at the current indent level.
func (b *Builder) AppendLine(n node) {
	body := b.open[len(b.open)-1]
	*body = append(*body, n)
}

// Indent moves one level deeper: subsequent instructions go into the body of
// the block instruction appended last.
func (b *Builder) Indent() {
	body := *b.open[len(b.open)-1]
	if len(body) == 0 {
		b.fail("indent with no preceding block instruction")
		return
	}
	blk, ok := body[len(body)-1].(blockNode)
	if !ok {
		b.fail(fmt.Sprintf("indent after non-block instruction %q", body[len(body)-1].describe()))
		return
	}
	b.open = append(b.open, blk.bodyRef())
}

// Dedent moves one level up. Dedenting past the builder's own level is an
// internal defect reported by Materialize.
func (b *Builder) Dedent() {
	if len(b.open) == 1 {
		b.fail("dedent below indent level zero")
		return
	}
	b.open = b.open[:len(b.open)-1]
}

// OpenSection appends a nested Builder at the current indent level and
// returns it. Instructions added to the section later are placed at the
// section's position, ahead of anything appended after it.
func (b *Builder) OpenSection() *Builder {
	sec := &sectionNode{}
	sec.b = &Builder{base: b.Level(), owner: sec}
	sec.b.open = []*[]node{&sec.b.root}
	b.AppendLine(sec)
	return sec.b
}

func (b *Builder) fail(msg string) {
	if b.err == nil {
		b.err = &BuildError{Msg: msg}
	}
}

// check verifies that this builder and every section inside it closed all
// the levels it opened.
func (b *Builder) check() error {
	if b.err != nil {
		return b.err
	}
	if len(b.open) != 1 {
		return &BuildError{Msg: fmt.Sprintf("unbalanced indentation: level %d at end of build", b.Level())}
	}
	var err error
	walk(b.root, func(n node) {
		if sec, ok := n.(*sectionNode); ok && err == nil {
			err = sec.b.check()
		}
	})
	return err
}

// flatten inlines every section depth-first, returning a tree with no
// section placeholders left.
func (b *Builder) flatten() []node {
	return flattenNodes(b.root)
}

func flattenNodes(nodes []node) []node {
	out := make([]node, 0, len(nodes))
	for _, n := range nodes {
		switch n := n.(type) {
		case *sectionNode:
			out = append(out, n.b.flatten()...)
		case blockNode:
			out = append(out, n.withBody(flattenNodes(*n.bodyRef())))
		default:
			out = append(out, n)
		}
	}
	return out
}

// Materialize checks that the indent level is back at zero and turns the
// builder tree into an immutable Routine.
func (b *Builder) Materialize() (*Routine, error) {
	if b.owner != nil {
		return nil, &BuildError{Msg: "materialize called on a section"}
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	nodes := b.flatten()
	return &Routine{nodes: nodes, source: listing(nodes)}, nil
}

// String renders the builder's current content as an indented listing.
func (b *Builder) String() string {
	return listing(b.flatten())
}

func listing(nodes []node) string {
	var sb strings.Builder
	writeListing(&sb, nodes, 0)
	return sb.String()
}

func writeListing(sb *strings.Builder, nodes []node, depth int) {
	for _, n := range nodes {
		sb.WriteString(strings.Repeat(" ", depth*indentStep))
		sb.WriteString(n.describe())
		sb.WriteByte('\n')
		if blk, ok := n.(blockNode); ok {
			writeListing(sb, *blk.bodyRef(), depth+1)
		}
	}
}

func walk(nodes []node, fn func(node)) {
	for _, n := range nodes {
		fn(n)
		if blk, ok := n.(blockNode); ok {
			walk(*blk.bodyRef(), fn)
		}
	}
}
