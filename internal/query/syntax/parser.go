package syntax

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
)

// Keywords reserved by the grammar.
const (
	kwSearch      = "search"
	kwFields      = "fields"
	kwJoin        = "join"
	kwPrettyprint = "prettyprint"
	kwOr          = "OR"
	kwNot         = "NOT"
	kwBy          = "BY"
	kwFormat      = "format"
)

// Output formats accepted by prettyprint.
const (
	FormatJSON  = "json"
	FormatTable = "table"
)

// Parse parses a query string into a parse tree. Every failure is a *domain.ParseError.
func Parse(input string) (*Query, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, tokens: tokens}
	return p.parseQuery()
}

type parser struct {
	input  string
	tokens []Token
	pos    int
}

func (p *parser) parseQuery() (*Query, error) {
	if len(p.tokens) == 0 {
		return nil, p.errorAt(0, "empty query")
	}
	q := &Query{Input: p.input}
	for {
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		q.Commands = append(q.Commands, cmd)

		tok, ok := p.peek()
		if !ok {
			return q, nil
		}
		if tok.Kind != Pipe {
			return nil, p.errorAt(tok.Pos, "unexpected %q", tok.Text)
		}
		p.pos++
	}
}

func (p *parser) parseCommand() (Command, error) {
	tok, ok := p.next()
	if !ok {
		return nil, p.errorAt(len(p.input), "expected command after \"|\"")
	}
	if tok.Kind != Word {
		return nil, p.errorAt(tok.Pos, "expected command, got %q", tok.Text)
	}

	switch tok.Text {
	case kwSearch:
		return p.parseSearch(tok.Pos)
	case kwFields:
		return p.parseFields(tok.Pos)
	case kwJoin:
		return p.parseJoin(tok.Pos)
	case kwPrettyprint:
		return p.parsePrettyprint(tok.Pos)
	default:
		return nil, p.errorAt(tok.Pos, "unknown command %q", tok.Text)
	}
}

func (p *parser) parseSearch(at int) (*SearchCmd, error) {
	cmd := &SearchCmd{At: at}
	for !p.atCommandEnd() {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		cmd.Exprs = append(cmd.Exprs, e)
	}
	if len(cmd.Exprs) == 0 {
		return nil, p.errorAt(at, "search requires at least one expression")
	}
	return cmd, nil
}

func (p *parser) parseOr() (Expr, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	parts := []Expr{first}
	for {
		tok, ok := p.peek()
		if !ok || tok.Kind != Word || tok.Text != kwOr {
			break
		}
		p.pos++
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	if len(parts) == 1 {
		return first, nil
	}
	return &DisjunctionExpr{Parts: parts}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	tok, ok := p.peek()
	if ok && tok.Kind == Word && tok.Text == kwNot {
		p.pos++
		item, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Item: item}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (*ComparisonExpr, error) {
	field, err := p.expectField("field name")
	if err != nil {
		return nil, err
	}

	tok, ok := p.next()
	if !ok {
		return nil, p.errorAt(len(p.input), "expected operator after %q", field.Text)
	}
	if tok.Kind != Operator {
		return nil, p.errorAt(tok.Pos, "expected operator after %q, got %q", field.Text, tok.Text)
	}
	op, known := opSymbols[tok.Text]
	if !known {
		return nil, p.errorAt(tok.Pos, "unknown operator %q", tok.Text)
	}

	val, ok := p.next()
	if !ok {
		return nil, p.errorAt(len(p.input), "expected value after %q", field.Text+tok.Text)
	}
	if val.Kind != Word && val.Kind != Quoted {
		return nil, p.errorAt(val.Pos, "expected value, got %q", val.Text)
	}
	if op.IsOrdering() {
		if _, err := strconv.ParseFloat(strings.TrimSpace(val.Text), 64); err != nil {
			return nil, p.errorAt(val.Pos, "operator %q needs a numeric value, got %q", tok.Text, val.Text)
		}
	}
	return &ComparisonExpr{Field: field.Text, Op: op, Value: val.Text}, nil
}

func (p *parser) parseFields(at int) (*FieldsCmd, error) {
	cmd := &FieldsCmd{At: at}
	for !p.atCommandEnd() {
		f, err := p.expectField("field name")
		if err != nil {
			return nil, err
		}
		cmd.Fields = append(cmd.Fields, f.Text)
	}
	if len(cmd.Fields) == 0 {
		return nil, p.errorAt(at, "fields requires at least one field name")
	}
	return cmd, nil
}

func (p *parser) parseJoin(at int) (*JoinCmd, error) {
	tok, ok := p.next()
	if !ok || tok.Kind != Word || tok.Text != kwBy {
		return nil, p.errorAt(at, "expected \"join BY <field>\"")
	}
	f, err := p.expectField("join field")
	if err != nil {
		return nil, err
	}
	if !p.atCommandEnd() {
		tok, _ := p.peek()
		return nil, p.errorAt(tok.Pos, "join takes a single field, got extra %q", tok.Text)
	}
	return &JoinCmd{At: at, By: f.Text}, nil
}

func (p *parser) parsePrettyprint(at int) (*PrettyprintCmd, error) {
	tok, ok := p.next()
	if !ok || tok.Kind != Word || tok.Text != kwFormat {
		return nil, p.errorAt(at, "expected \"prettyprint format=json|table\"")
	}
	tok, ok = p.next()
	if !ok || tok.Kind != Operator || tok.Text != "=" {
		return nil, p.errorAt(at, "expected \"=\" after format")
	}
	tok, ok = p.next()
	if !ok || (tok.Kind != Word && tok.Kind != Quoted) {
		return nil, p.errorAt(at, "expected format name")
	}
	switch tok.Text {
	case FormatJSON, FormatTable:
	default:
		return nil, p.errorAt(tok.Pos, "unknown format %q", tok.Text)
	}
	if !p.atCommandEnd() {
		extra, _ := p.peek()
		return nil, p.errorAt(extra.Pos, "unexpected %q after format", extra.Text)
	}
	return &PrettyprintCmd{At: at, Format: tok.Text}, nil
}

// expectField consumes a bare word that is not a reserved boolean keyword.
func (p *parser) expectField(what string) (Token, error) {
	tok, ok := p.next()
	if !ok {
		return Token{}, p.errorAt(len(p.input), "expected %s", what)
	}
	if tok.Kind != Word || tok.Text == kwOr || tok.Text == kwNot {
		return Token{}, p.errorAt(tok.Pos, "expected %s, got %q", what, tok.Text)
	}
	return tok, nil
}

func (p *parser) atCommandEnd() bool {
	tok, ok := p.peek()
	return !ok || tok.Kind == Pipe
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *parser) errorAt(pos int, format string, args ...any) error {
	return domain.NewParseError(p.input, pos, format, args...)
}
