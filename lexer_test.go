package jinja

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLexer_Tokenize(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []Token
	}{
		{
			name:     "empty string",
			template: "",
			want:     nil,
		},
		{
			name:     "only literal text",
			template: "Hello, world!",
			want:     []Token{{Type: TokenLiteral, Text: "Hello, world!", Line: 1}},
		},
		{
			name:     "expression is trimmed",
			template: "Hello {{ name }}!",
			want: []Token{
				{Type: TokenLiteral, Text: "Hello ", Line: 1},
				{Type: TokenOutput, Text: "name", Line: 1},
				{Type: TokenLiteral, Text: "!", Line: 1},
			},
		},
		{
			name:     "statement tags",
			template: "{% if x %}yes{% endif %}",
			want: []Token{
				{Type: TokenStatement, Text: "if x", Line: 1},
				{Type: TokenLiteral, Text: "yes", Line: 1},
				{Type: TokenStatement, Text: "endif", Line: 1},
			},
		},
		{
			name:     "comments are dropped",
			template: "a{# note #}b",
			want: []Token{
				{Type: TokenLiteral, Text: "a", Line: 1},
				{Type: TokenLiteral, Text: "b", Line: 1},
			},
		},
		{
			name:     "tag spanning lines",
			template: "x\n{{\n  name\n}}\ny",
			want: []Token{
				{Type: TokenLiteral, Text: "x\n", Line: 1},
				{Type: TokenOutput, Text: "name", Line: 2},
				{Type: TokenLiteral, Text: "\ny", Line: 4},
			},
		},
		{
			name:     "literal whitespace preserved",
			template: "  {{a}}  \n",
			want: []Token{
				{Type: TokenLiteral, Text: "  ", Line: 1},
				{Type: TokenOutput, Text: "a", Line: 1},
				{Type: TokenLiteral, Text: "  \n", Line: 1},
			},
		},
		{
			name:     "non greedy match",
			template: "{{a}}{{b}}",
			want: []Token{
				{Type: TokenOutput, Text: "a", Line: 1},
				{Type: TokenOutput, Text: "b", Line: 1},
			},
		},
		{
			name:     "unclosed tag is literal",
			template: "Hello {{ name",
			want:     []Token{{Type: TokenLiteral, Text: "Hello {{ name", Line: 1}},
		},
		{
			name:     "unclosed comment before valid tag",
			template: "{# x {{ y }}",
			want: []Token{
				{Type: TokenLiteral, Text: "{# x ", Line: 1},
				{Type: TokenOutput, Text: "y", Line: 1},
			},
		},
		{
			name:     "comment hides tags inside it",
			template: "{# {{ a }} #}{{ b }}",
			want:     []Token{{Type: TokenOutput, Text: "b", Line: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.template)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.template, diff)
			}
		})
	}
}

func TestLexer_NextKeepsComments(t *testing.T) {
	l := NewLexer("{# c #}x")
	tok, ok := l.Next()
	if !ok || tok.Type != TokenComment || tok.Text != "c" {
		t.Fatalf("first token = %+v, %v; want comment \"c\"", tok, ok)
	}
	tok, ok = l.Next()
	if !ok || tok.Type != TokenLiteral || tok.Text != "x" {
		t.Fatalf("second token = %+v, %v; want literal \"x\"", tok, ok)
	}
	if _, ok := l.Next(); ok {
		t.Fatal("expected end of input")
	}
}
