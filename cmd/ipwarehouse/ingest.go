package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ipwarehouse/internal/transport/geoip"
	"github.com/kailas-cloud/ipwarehouse/internal/transport/httpclient"
	"github.com/kailas-cloud/ipwarehouse/internal/transport/rdap"
	ingestuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/ingest"
)

func (a *app) newIngestCommand() *cobra.Command {
	var shell bool
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Extract IPs from text, look up GeoIP and RDAP data, and store it",
		Long: `Reads text from file (or stdin), pulls out every dotted-quad IPv4 address, fetches its
GeoIP record and RDAP registration concurrently, and writes the results to the geoip, rdap
and ip_rdap categories. Interrupting the lookups (Ctrl-C) writes nothing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd, path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ips, err := ingestuc.ExtractIPs(bytes.NewReader(data))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d IPs found.\n", len(ips))

			addrs := make([]string, len(ips))
			for i, ip := range ips {
				addrs[i] = ip.IP
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := a.newEnricher().Run(ctx, addrs)
			if err != nil {
				if ctx.Err() != nil {
					fmt.Fprintln(out, "Terminating")
				}
				return err
			}
			printReport(cmd, report)

			if shell {
				svc, err := a.queryService()
				if err != nil {
					return err
				}
				return runShell(context.WithoutCancel(ctx), cmd.InOrStdin(), out, svc)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.Int("workers", 0, "concurrent lookups (default from config)")
	a.mustBindPFlag("enrichment.workers", flags.Lookup("workers"))
	flags.BoolVar(&shell, "shell", false, "open the query shell after ingesting")
	return cmd
}

func (a *app) newEnricher() *ingestuc.Enricher {
	cfg := a.cfg.Enrichment
	hc := httpclient.New(httpclient.Options{
		Timeout:  cfg.Timeout(),
		RetryMax: cfg.RetryMax,
	}, a.logger)
	if cfg.GeoIPAccessKey == "" {
		a.logger.Warn("no geoip access key configured, geoip lookups will likely fail",
			zap.String("geoip_url", cfg.GeoIPURL))
	}

	return ingestuc.NewEnricher(
		geoip.New(cfg.GeoIPURL, cfg.GeoIPAccessKey, hc),
		rdap.New(cfg.RDAPURL, hc),
		a.ingestService(),
		ingestuc.EnricherConfig{Workers: cfg.Workers, BatchTimeout: cfg.BatchTimeout()},
		a.logger,
	)
}

func printReport(cmd *cobra.Command, report ingestuc.Report) {
	out := cmd.OutOrStdout()
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		st := report[name]
		fmt.Fprintf(out, "\n%s\nadded: %d, skipped: %d\n", name, st.Added, st.Skipped)
	}
}
