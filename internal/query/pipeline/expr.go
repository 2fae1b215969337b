package pipeline

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
	"github.com/kailas-cloud/ipwarehouse/internal/query/syntax"
)

// Expression is a boolean node of a search stage: *Comparison, *Disjunction or *Negation.
type Expression interface {
	isExpression()
}

// Comparison is "field op literal".
type Comparison struct {
	Field   string
	Op      syntax.Op
	Literal string
	number  float64        // parsed Literal for ordering operators
	pattern *regexp.Regexp // compiled Literal for = and !=
}

// Disjunction is true iff any part is true.
type Disjunction struct {
	Parts []Expression
}

// Negation is true iff Item is false.
type Negation struct {
	Item Expression
}

func (*Comparison) isExpression()  {}
func (*Disjunction) isExpression() {}
func (*Negation) isExpression()    {}

// Evaluate reports whether doc satisfies e.
func Evaluate(e Expression, doc document.Document) bool {
	switch x := e.(type) {
	case *Comparison:
		ok, err := x.compare(doc)
		// a non-numeric field under an ordering operator only excludes this document
		return err == nil && ok
	case *Disjunction:
		for _, part := range x.Parts {
			if Evaluate(part, doc) {
				return true
			}
		}
		return false
	case *Negation:
		return !Evaluate(x.Item, doc)
	default:
		panic(fmt.Sprintf("pipeline: unhandled expression %T", e))
	}
}

// compare returns false for a missing field and ErrTypeMismatch for a non-numeric ordering operand.
func (c *Comparison) compare(doc document.Document) (bool, error) {
	v, ok := doc.Get(c.Field)
	if !ok {
		return false, nil
	}

	switch c.Op {
	case syntax.Eq:
		return c.matches(v), nil
	case syntax.Ne:
		return !c.matches(v), nil
	case syntax.Lt, syntax.Le, syntax.Gt, syntax.Ge:
		f, err := v.Float()
		if err != nil {
			return false, fmt.Errorf("field %s: %w", c.Field, err)
		}
		switch c.Op {
		case syntax.Lt:
			return f < c.number, nil
		case syntax.Le:
			return f <= c.number, nil
		case syntax.Gt:
			return f > c.number, nil
		default:
			return f >= c.number, nil
		}
	default:
		panic(fmt.Sprintf("pipeline: unhandled operator %s", c.Op))
	}
}

// matches reports whether any spelling of v fits the pattern.
func (c *Comparison) matches(v document.Value) bool {
	p := c.pattern
	if p == nil {
		p = compileGlob(c.Literal)
	}
	for _, text := range v.Texts() {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func describeExpression(e Expression) document.Document {
	var d document.Document
	switch x := e.(type) {
	case *Comparison:
		d.Set("type", document.StringValue("comparison"))
		d.Set("field", document.StringValue(x.Field))
		d.Set("val", document.StringValue(x.Literal))
		d.Set("op", document.StringValue(x.Op.String()))
	case *Disjunction:
		parts := make([]document.Value, len(x.Parts))
		for i, p := range x.Parts {
			parts[i] = document.ObjectValue(describeExpression(p))
		}
		d.Set("type", document.StringValue("disjunction"))
		d.Set("parts", document.ListValue(parts...))
	case *Negation:
		d.Set("type", document.StringValue("not"))
		d.Set("item", document.ObjectValue(describeExpression(x.Item)))
	default:
		panic(fmt.Sprintf("pipeline: unhandled expression %T", e))
	}
	return d
}
