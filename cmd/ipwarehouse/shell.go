package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
	queryuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/query"
)

const prompt = "> "

func (a *app) newShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Query the warehouse interactively",
		Long: `Reads one command per line:

  search <expressions> [| stage ...]   run a query
  exit, quit                           leave the shell`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.queryService()
			if err != nil {
				return err
			}
			return runShell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), svc)
		},
	}
}

// runShell reads commands from in until exit, quit or EOF. Query errors are printed, not returned.
// Lines have no length limit.
func runShell(ctx context.Context, in io.Reader, out io.Writer, svc *queryuc.Service) error {
	r := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "\n"+prompt)
		line, err := r.ReadString('\n')
		if line == "" && err != nil {
			fmt.Fprintln(out)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		command, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch command {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out)
			return nil
		case "search":
			rest = strings.TrimSpace(rest)
			if rest == "" {
				fmt.Fprintln(out, "No query!")
				continue
			}
			shellQuery(ctx, out, svc, "search "+rest)
		default:
			fmt.Fprintf(out, "Unknown command: %s\n", command)
		}
	}
}

func shellQuery(ctx context.Context, out io.Writer, svc *queryuc.Service, query string) {
	rows, err := svc.Run(ctx, query)
	switch {
	case errors.Is(err, domain.ErrParse):
		fmt.Fprintf(out, "Parse error: %v\n", err)
		return
	case err != nil:
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(out, "results:")
	for row, err := range rows {
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		fmt.Fprintln(out, row.String())
	}
}
