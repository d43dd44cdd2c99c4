package jinja

import (
	"slices"
	"strings"
)

// Statement keywords understood by the compiler.
const (
	keywordIf  = "if"
	keywordFor = "for"
	keywordIn  = "in"
	keywordEnd = "end"
)

// nameSet is a set of variable names.
type nameSet map[string]struct{}

func (s nameSet) add(name string) { s[name] = struct{}{} }

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// sorted returns the names in s, minus those in exclude, in sorted order.
func (s nameSet) sorted(exclude nameSet) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		if !exclude.has(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// controlFrame records an open if/for block.
type controlFrame struct {
	keyword string
	tok     Token
}

type compiler struct {
	referenced nameSet
	loopBound  nameSet
}

// compileResult is everything a single compile produces.
type compileResult struct {
	routine    *Routine
	referenced []string
	loopBound  []string
	required   []string
}

// compileTemplate runs the single pass over the template tokens. Any syntax
// error aborts the compile and no routine is returned.
func compileTemplate(text string, base map[string]any) (*compileResult, error) {
	c := &compiler{referenced: nameSet{}, loopBound: nameSet{}}

	code := NewBuilder()
	varsCode := code.OpenSection()
	baseCode := code.OpenSection()

	var buffered []fragment
	flushOutput := func() {
		switch len(buffered) {
		case 0:
			return
		case 1:
			code.AppendLine(buffered[0])
		default:
			code.AppendLine(&batchNode{parts: buffered})
		}
		buffered = nil
	}

	var opsStack []controlFrame
	for _, tok := range Tokenize(text) {
		switch tok.Type {
		case TokenLiteral:
			buffered = append(buffered, &literalNode{text: tok.Text})

		case TokenOutput:
			e, err := c.expression(tok.Text, tok)
			if err != nil {
				return nil, err
			}
			buffered = append(buffered, &outputNode{expr: e})

		case TokenStatement:
			flushOutput()
			words := strings.Fields(tok.Text)
			if len(words) == 0 {
				return nil, syntaxErrorf(tok, "empty tag")
			}

			switch {
			case words[0] == keywordIf:
				if len(words) != 2 {
					return nil, syntaxErrorf(tok, "if tag takes exactly one expression")
				}
				cond, err := c.expression(words[1], tok)
				if err != nil {
					return nil, err
				}
				opsStack = append(opsStack, controlFrame{keyword: keywordIf, tok: tok})
				code.AppendLine(&ifNode{cond: cond})
				code.Indent()

			case words[0] == keywordFor:
				if len(words) != 4 || words[2] != keywordIn {
					return nil, syntaxErrorf(tok, "for tag must look like 'for <name> in <expr>'")
				}
				if !IsIdentifier(words[1]) {
					return nil, syntaxErrorf(tok, "not a valid name: %q", words[1])
				}
				c.loopBound.add(words[1])
				seq, err := c.expression(words[3], tok)
				if err != nil {
					return nil, err
				}
				opsStack = append(opsStack, controlFrame{keyword: keywordFor, tok: tok})
				code.AppendLine(&forNode{name: words[1], iter: seq})
				code.Indent()

			case strings.HasPrefix(words[0], keywordEnd):
				if len(words) != 1 {
					return nil, syntaxErrorf(tok, "end tag takes no arguments")
				}
				if len(opsStack) == 0 {
					return nil, syntaxErrorf(tok, "too many ends")
				}
				endWhat := strings.TrimPrefix(words[0], keywordEnd)
				start := opsStack[len(opsStack)-1]
				opsStack = opsStack[:len(opsStack)-1]
				if start.keyword != endWhat {
					return nil, syntaxErrorf(tok, "mismatched end tag, expected end%s for the %s on line %d",
						start.keyword, start.keyword, start.tok.Line)
				}
				code.Dedent()

			default:
				return nil, syntaxErrorf(tok, "unrecognized tag")
			}
		}
	}
	flushOutput()

	if len(opsStack) > 0 {
		open := opsStack[len(opsStack)-1]
		return nil, syntaxErrorf(open.tok, "unclosed %s block", open.keyword)
	}

	// Names supplied by a base context are declared apart from the ones the
	// caller must provide at render time.
	required := c.referenced.sorted(c.loopBound)
	var fromCtx, fromBase []string
	for _, name := range required {
		if _, ok := base[name]; ok {
			fromBase = append(fromBase, name)
		} else {
			fromCtx = append(fromCtx, name)
		}
	}
	if len(fromCtx) > 0 {
		varsCode.AppendLine(&declareNode{names: fromCtx, from: "context"})
	}
	if len(fromBase) > 0 {
		baseCode.AppendLine(&declareNode{names: fromBase, from: "base context"})
	}

	routine, err := code.Materialize()
	if err != nil {
		return nil, err
	}
	return &compileResult{
		routine:    routine,
		referenced: c.referenced.sorted(nil),
		loopBound:  c.loopBound.sorted(nil),
		required:   required,
	}, nil
}
