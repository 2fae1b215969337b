// Package pipeline compiles query parse trees into stages and evaluates them over document streams.
//
// Search and Fields are row-at-a-time. Join and table Prettyprint buffer the whole upstream
// before yielding anything; json Prettyprint formats each document as it arrives.
package pipeline

import (
	"fmt"
	"iter"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

// Stream is a lazy, single-use sequence of documents. A non-nil error ends the stream.
type Stream = iter.Seq2[document.Document, error]

// Row is one pipeline output: a document, or a formatted line after Prettyprint.
type Row struct {
	Doc       document.Document
	Text      string
	Formatted bool
}

// String renders the row as a single line (documents as compact JSON).
func (r Row) String() string {
	if r.Formatted {
		return r.Text
	}
	return r.Doc.String()
}

// Format is a Prettyprint output format.
type Format string

const (
	// FormatJSON renders each document as indented JSON.
	FormatJSON Format = "json"
	// FormatTable renders all documents as a padded text table.
	FormatTable Format = "table"
)

// Stage is one compiled step: *Search, *Fields, *Join or *Prettyprint.
type Stage interface {
	isStage()
}

// Search keeps documents satisfying every expression.
type Search struct {
	Expressions []Expression
}

// Fields projects documents onto Names; documents left empty are dropped.
type Fields struct {
	Names []string
}

// Join merges documents sharing the value of By.
type Join struct {
	By string
}

// Prettyprint formats documents as text.
type Prettyprint struct {
	Format Format
}

func (*Search) isStage()      {}
func (*Fields) isStage()      {}
func (*Join) isStage()        {}
func (*Prettyprint) isStage() {}

// Pipeline is an ordered list of stages compiled from one query.
// It holds no execution state and may be executed any number of times.
type Pipeline struct {
	query  string
	stages []Stage
}

// Query returns the source text.
func (p *Pipeline) Query() string { return p.query }

// Stages returns the compiled stages.
func (p *Pipeline) Stages() []Stage { return append([]Stage(nil), p.stages...) }

// Execute folds docs through every stage. Nothing is read until the result is iterated.
func (p *Pipeline) Execute(docs Stream) iter.Seq2[Row, error] {
	for _, st := range p.stages {
		switch s := st.(type) {
		case *Search:
			docs = s.apply(docs)
		case *Fields:
			docs = s.apply(docs)
		case *Join:
			docs = s.apply(docs)
		case *Prettyprint:
			// validated to be the last stage
			return s.apply(docs)
		default:
			panic(fmt.Sprintf("pipeline: unhandled stage %T", st))
		}
	}
	return asRows(docs)
}

func (s *Search) apply(in Stream) Stream {
	return func(yield func(document.Document, error) bool) {
		for doc, err := range in {
			if err != nil {
				yield(document.Document{}, err)
				return
			}
			if s.matches(doc) && !yield(doc, nil) {
				return
			}
		}
	}
}

func (s *Search) matches(doc document.Document) bool {
	for _, e := range s.Expressions {
		if !Evaluate(e, doc) {
			return false
		}
	}
	return true
}

func (f *Fields) apply(in Stream) Stream {
	return func(yield func(document.Document, error) bool) {
		for doc, err := range in {
			if err != nil {
				yield(document.Document{}, err)
				return
			}
			projected := doc.Project(f.Names)
			if projected.Len() == 0 {
				continue
			}
			if !yield(projected, nil) {
				return
			}
		}
	}
}

func asRows(docs Stream) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for doc, err := range docs {
			if err != nil {
				yield(Row{}, err)
				return
			}
			if !yield(Row{Doc: doc}, nil) {
				return
			}
		}
	}
}

// Describe returns one document per stage, suitable for logging or display.
func (p *Pipeline) Describe() []document.Document {
	out := make([]document.Document, len(p.stages))
	for i, st := range p.stages {
		var d document.Document
		switch s := st.(type) {
		case *Search:
			exprs := make([]document.Value, len(s.Expressions))
			for j, e := range s.Expressions {
				exprs[j] = document.ObjectValue(describeExpression(e))
			}
			d.Set("type", document.StringValue("search"))
			d.Set("expressions", document.ListValue(exprs...))
		case *Fields:
			names := make([]document.Value, len(s.Names))
			for j, n := range s.Names {
				names[j] = document.StringValue(n)
			}
			d.Set("type", document.StringValue("fields"))
			d.Set("fields", document.ListValue(names...))
		case *Join:
			d.Set("type", document.StringValue("join"))
			d.Set("by_field", document.StringValue(s.By))
		case *Prettyprint:
			d.Set("type", document.StringValue("prettyprint"))
			d.Set("format", document.StringValue(string(s.Format)))
		default:
			panic(fmt.Sprintf("pipeline: unhandled stage %T", st))
		}
		out[i] = d
	}
	return out
}

// FromSlice adapts a slice to a Stream.
func FromSlice(docs []document.Document) Stream {
	return func(yield func(document.Document, error) bool) {
		for _, d := range docs {
			if !yield(d, nil) {
				return
			}
		}
	}
}
