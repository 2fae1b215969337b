package syntax

import (
	"strings"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
)

// TokenKind classifies a token.
type TokenKind int

const (
	// Word is a bare run of characters.
	Word TokenKind = iota
	// Quoted is a double-quoted string with the quotes removed.
	Quoted
	// Operator is one of = != < <= > >=.
	Operator
	// Pipe is "|".
	Pipe
)

// Token is a lexical unit with its byte offset in the input.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// span is a quoted region [open, close] (offsets of the two quote characters).
type span struct {
	open, close int
}

// Tokenize splits a query into tokens. Quoted spans are located first so that
// whitespace, pipes and operator characters inside them are kept verbatim.
func Tokenize(input string) ([]Token, error) {
	spans, err := quoteSpans(input)
	if err != nil {
		return nil, err
	}

	var tokens []Token
	i, next := 0, 0
	for i < len(input) {
		if next < len(spans) && i == spans[next].open {
			s := spans[next]
			tokens = append(tokens, Token{Kind: Quoted, Text: input[s.open+1 : s.close], Pos: s.open})
			i = s.close + 1
			next++
			continue
		}

		c := input[i]
		switch {
		case isSpace(c):
			i++
		case c == '|':
			tokens = append(tokens, Token{Kind: Pipe, Text: "|", Pos: i})
			i++
		case isOperatorStart(input, i):
			n := 1
			if i+1 < len(input) && input[i+1] == '=' {
				n = 2
			}
			tokens = append(tokens, Token{Kind: Operator, Text: input[i : i+n], Pos: i})
			i += n
		default:
			start := i
			for i < len(input) && !isSpace(input[i]) && input[i] != '|' && input[i] != '"' &&
				!isOperatorStart(input, i) {
				i++
			}
			tokens = append(tokens, Token{Kind: Word, Text: input[start:i], Pos: start})
		}
	}
	return tokens, nil
}

// quoteSpans pairs up double quotes left to right. An odd count is a parse error.
func quoteSpans(input string) ([]span, error) {
	var (
		spans []span
		open  = -1
	)
	for i := 0; i < len(input); i++ {
		if input[i] != '"' {
			continue
		}
		if open < 0 {
			open = i
			continue
		}
		spans = append(spans, span{open: open, close: i})
		open = -1
	}
	if open >= 0 {
		return nil, domain.NewParseError(input, open, "unmatched quote")
	}
	return spans, nil
}

func isSpace(c byte) bool {
	return strings.IndexByte(" \t\r\n", c) >= 0
}

func isOperatorStart(input string, i int) bool {
	switch input[i] {
	case '=', '<', '>':
		return true
	case '!':
		return i+1 < len(input) && input[i+1] == '='
	default:
		return false
	}
}
