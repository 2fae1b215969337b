package pipeline

import (
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

const (
	jsonIndent  = "    "
	cellPadding = 2
)

func (p *Prettyprint) apply(in Stream) iter.Seq2[Row, error] {
	switch p.Format {
	case FormatJSON:
		return formatJSON(in)
	case FormatTable:
		return formatTable(in)
	default:
		panic(fmt.Sprintf("pipeline: unhandled format %q", p.Format))
	}
}

func formatJSON(in Stream) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for doc, err := range in {
			if err != nil {
				yield(Row{}, err)
				return
			}
			row := Row{Doc: doc, Text: string(doc.MarshalIndent(jsonIndent)), Formatted: true}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// formatTable buffers the stream, sizes columns, then yields the header followed by one line per document.
func formatTable(in Stream) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		var (
			docs    []document.Document
			columns []string
			widths  = make(map[string]int)
		)
		for doc, err := range in {
			if err != nil {
				yield(Row{}, err)
				return
			}
			for name, v := range doc.Fields() {
				w, seen := widths[name]
				if !seen {
					columns = append(columns, name)
					w = utf8.RuneCountInString(name)
				}
				widths[name] = max(w, utf8.RuneCountInString(v.String()))
			}
			docs = append(docs, doc)
		}
		if len(docs) == 0 {
			return
		}

		var sb strings.Builder
		for _, col := range columns {
			writeCell(&sb, col, widths[col])
		}
		if !yield(Row{Text: sb.String(), Formatted: true}, nil) {
			return
		}
		for _, doc := range docs {
			sb.Reset()
			for _, col := range columns {
				var text string
				if v, ok := doc.Get(col); ok {
					text = v.String()
				}
				writeCell(&sb, text, widths[col])
			}
			if !yield(Row{Doc: doc, Text: sb.String(), Formatted: true}, nil) {
				return
			}
		}
	}
}

func writeCell(sb *strings.Builder, text string, width int) {
	sb.WriteString(text)
	sb.WriteString(strings.Repeat(" ", width-utf8.RuneCountInString(text)+cellPadding))
}
