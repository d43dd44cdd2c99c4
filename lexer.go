package jinja

import (
	"regexp"
	"strings"
)

// TokenType defines the category of a lexed template fragment.
type TokenType int

const (
	TokenLiteral   TokenType = iota // Literal text, kept byte-for-byte.
	TokenOutput                     // {{ expression }}
	TokenStatement                  // {% statement %}
	TokenComment                    // {# comment #}
)

func (t TokenType) String() string {
	switch t {
	case TokenLiteral:
		return "literal"
	case TokenOutput:
		return "output"
	case TokenStatement:
		return "statement"
	case TokenComment:
		return "comment"
	}
	return "unknown"
}

// Token is one fragment of template source. For tags, Text holds the
// delimiter content trimmed of surrounding whitespace.
type Token struct {
	Type TokenType
	Text string
	Line int // 1-based line the fragment starts on
}

// tagPattern matches the three delimiter pairs non-greedily, across lines.
// The leftmost opening delimiter wins and the first matching closer ends it.
var tagPattern = regexp.MustCompile(`(?s)\{\{.*?\}\}|\{%.*?%\}|\{#.*?#\}`)

// Lexer splits template text into tokens.
type Lexer struct {
	input string
	pos   int
	line  int
	match []int // pending tag location relative to pos, nil when not yet searched
}

// NewLexer creates a Lexer for the given template text.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1}
}

// Next returns the next token, including comments. The second result is
// false once the input is exhausted.
func (l *Lexer) Next() (Token, bool) {
	if l.pos >= len(l.input) {
		return Token{}, false
	}

	if l.match == nil {
		l.match = tagPattern.FindStringIndex(l.input[l.pos:])
		if l.match == nil {
			// No further tags; an unclosed opener is literal text.
			return l.emitLiteral(len(l.input) - l.pos), true
		}
	}

	if l.match[0] > 0 {
		tok := l.emitLiteral(l.match[0])
		l.match[1] -= l.match[0]
		l.match[0] = 0
		return tok, true
	}

	raw := l.input[l.pos : l.pos+l.match[1]]
	tok := Token{Line: l.line, Text: strings.TrimSpace(raw[2 : len(raw)-2])}
	switch raw[1] {
	case '{':
		tok.Type = TokenOutput
	case '%':
		tok.Type = TokenStatement
	default:
		tok.Type = TokenComment
	}
	l.advance(len(raw))
	l.match = nil
	return tok, true
}

// Tokenize lexes the whole input, discarding comments.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok, ok := l.Next()
		if !ok {
			return tokens
		}
		if tok.Type == TokenComment {
			continue
		}
		tokens = append(tokens, tok)
	}
}

// Tokenize is a shorthand for NewLexer(text).Tokenize().
func Tokenize(text string) []Token {
	return NewLexer(text).Tokenize()
}

func (l *Lexer) emitLiteral(n int) Token {
	tok := Token{Type: TokenLiteral, Text: l.input[l.pos : l.pos+n], Line: l.line}
	l.advance(n)
	return tok
}

func (l *Lexer) advance(n int) {
	l.line += strings.Count(l.input[l.pos:l.pos+n], "\n")
	l.pos += n
}
