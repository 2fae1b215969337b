package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	queryuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/query"
)

func (a *app) newQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query <query>",
		Short: "Run a query and print the results",
		Example: `  ipwarehouse query 'search index=geoip ip>=10'
  ipwarehouse query 'search index=rdap OR index=ip_rdap | join BY handle | prettyprint format=table'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.queryService()
			if err != nil {
				return err
			}
			return printQuery(cmd, svc, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
}

func printQuery(cmd *cobra.Command, svc *queryuc.Service, query string, out io.Writer) error {
	rows, err := svc.Run(cmd.Context(), query)
	if err != nil {
		return err
	}
	for row, err := range rows {
		if err != nil {
			return fmt.Errorf("execute query: %w", err)
		}
		if _, err := fmt.Fprintln(out, row.String()); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) newExplainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <query>",
		Short: "Print the compiled pipeline of a query without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.queryService()
			if err != nil {
				return err
			}
			stages, err := svc.Explain(strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, st := range stages {
				fmt.Fprintln(out, string(st.MarshalIndent("    ")))
			}
			return nil
		},
	}
}
