package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
	"github.com/kailas-cloud/ipwarehouse/internal/query/syntax"
)

// Compile validates stage ordering and converts the parse tree into a Pipeline.
// Only ordering can fail here; everything else was rejected by the parser.
func Compile(q *syntax.Query) (*Pipeline, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}
	stages := make([]Stage, len(q.Commands))
	for i, cmd := range q.Commands {
		stages[i] = compileCommand(cmd)
	}
	return &Pipeline{query: q.Input, stages: stages}, nil
}

// Validate enforces: search first, search nowhere else, prettyprint only last.
func Validate(q *syntax.Query) error {
	if len(q.Commands) == 0 {
		return fmt.Errorf("no stages: %w", domain.ErrInvalidPipeline)
	}
	if first, ok := q.Commands[0].(*syntax.SearchCmd); !ok {
		return fmt.Errorf("pipeline must start with search, not %s: %w",
			q.Commands[0].Name(), domain.ErrInvalidPipeline)
	} else if len(first.Exprs) == 0 {
		return fmt.Errorf("search has no expressions: %w", domain.ErrInvalidPipeline)
	}

	last := len(q.Commands) - 1
	for i, cmd := range q.Commands[1:] {
		switch cmd.(type) {
		case *syntax.SearchCmd:
			return fmt.Errorf("search may only be the first stage (found at stage %d): %w",
				i+2, domain.ErrInvalidPipeline)
		case *syntax.PrettyprintCmd:
			if i+1 != last {
				return fmt.Errorf("prettyprint must be the last stage (found at stage %d of %d): %w",
					i+2, last+1, domain.ErrInvalidPipeline)
			}
		}
	}
	return nil
}

func compileCommand(cmd syntax.Command) Stage {
	switch c := cmd.(type) {
	case *syntax.SearchCmd:
		exprs := make([]Expression, len(c.Exprs))
		for i, e := range c.Exprs {
			exprs[i] = compileExpr(e)
		}
		return &Search{Expressions: exprs}
	case *syntax.FieldsCmd:
		return &Fields{Names: append([]string(nil), c.Fields...)}
	case *syntax.JoinCmd:
		return &Join{By: c.By}
	case *syntax.PrettyprintCmd:
		return &Prettyprint{Format: Format(c.Format)}
	default:
		panic(fmt.Sprintf("pipeline: unhandled command %T", cmd))
	}
}

func compileExpr(e syntax.Expr) Expression {
	switch x := e.(type) {
	case *syntax.ComparisonExpr:
		c := &Comparison{Field: x.Field, Op: x.Op, Literal: x.Value}
		if x.Op.IsOrdering() {
			// the parser already rejected non-numeric literals
			c.number, _ = strconv.ParseFloat(strings.TrimSpace(x.Value), 64)
		} else {
			c.pattern = compileGlob(x.Value)
		}
		return c
	case *syntax.DisjunctionExpr:
		parts := make([]Expression, len(x.Parts))
		for i, p := range x.Parts {
			parts[i] = compileExpr(p)
		}
		return &Disjunction{Parts: parts}
	case *syntax.NotExpr:
		return &Negation{Item: compileExpr(x.Item)}
	default:
		panic(fmt.Sprintf("pipeline: unhandled expression %T", e))
	}
}

// Build parses and compiles a query string.
func Build(query string) (*Pipeline, error) {
	q, err := syntax.Parse(query)
	if err != nil {
		return nil, err
	}
	return Compile(q)
}
