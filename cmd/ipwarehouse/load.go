package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

func (a *app) newLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <category> [file]",
		Short: "Write documents to a category, skipping ones already stored",
		Long: `Reads a JSON object, a JSON array of objects, or one object per line from file
(or stdin when file is omitted or "-") and appends the new ones to the category log.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 2 {
				path = args[1]
			}
			data, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			docs, err := parseDocuments(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			stats, err := a.ingestService().Load(cmd.Context(), args[0], docs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added: %d, skipped: %d\n", stats.Added, stats.Skipped)
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// parseDocuments accepts a single JSON value (object or array) or JSON lines.
func parseDocuments(data []byte) ([]document.Document, error) {
	docs, err := document.ParseMany(data)
	if err == nil {
		return docs, nil
	}

	docs = docs[:0]
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		doc, lerr := document.Parse(line)
		if lerr != nil {
			return nil, fmt.Errorf("line %d: %w", n, lerr)
		}
		docs = append(docs, doc)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
