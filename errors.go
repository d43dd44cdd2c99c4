package jinja

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the three failure classes of a template plus runtime
// type failures. The concrete error types below match them with errors.Is.
var (
	ErrSyntax = errors.New("template syntax error")
	ErrLookup = errors.New("template lookup error")
	ErrBuild  = errors.New("template build error")
	ErrRender = errors.New("template render error")
)

// SyntaxError reports a malformed tag or expression found while compiling.
// A template that fails with a SyntaxError produces no routine.
type SyntaxError struct {
	Line int    // 1-based line of the offending tag, 0 when unknown
	Tag  string // trimmed tag content, e.g. "for x items"
	Msg  string
}

func (e *SyntaxError) Error() string {
	var sb strings.Builder
	sb.WriteString("syntax error")
	if e.Line > 0 {
		fmt.Fprintf(&sb, " on line %d", e.Line)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Tag != "" {
		fmt.Fprintf(&sb, ": %q", e.Tag)
	}
	return sb.String()
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// LookupError reports a name missing from the render context or a dotted
// path segment that resolved by neither attribute nor key access.
type LookupError struct {
	Name    string // variable name at the root of the failed lookup
	Segment string // failing path segment, empty for a missing variable
	Err     error  // optional cause, e.g. an invocation failure
}

func (e *LookupError) Error() string {
	var msg string
	if e.Segment == "" {
		msg = fmt.Sprintf("variable %q is not defined in the render context", e.Name)
	} else {
		msg = fmt.Sprintf("cannot resolve %q on %q: no attribute or key", e.Segment, e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LookupError) Is(target error) bool { return target == ErrLookup }

func (e *LookupError) Unwrap() error { return e.Err }

// BuildError signals a broken compiler invariant, such as an indentation
// imbalance when the builder is materialized. Conforming templates never
// produce one.
type BuildError struct {
	Msg string
}

func (e *BuildError) Error() string { return "build error: " + e.Msg }

func (e *BuildError) Is(target error) bool { return target == ErrBuild }

// RenderError reports a type problem found while rendering, for instance
// iterating over a number or applying a filter that is not callable.
type RenderError struct {
	Op  string // "for", "filter upper", "invoke", ...
	Err error
}

func (e *RenderError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *RenderError) Is(target error) bool { return target == ErrRender }

func (e *RenderError) Unwrap() error { return e.Err }

func syntaxErrorf(tok Token, format string, args ...any) *SyntaxError {
	return &SyntaxError{Line: tok.Line, Tag: tok.Text, Msg: fmt.Sprintf(format, args...)}
}
