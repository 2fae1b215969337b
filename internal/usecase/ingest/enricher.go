package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/category"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
	logpkg "github.com/kailas-cloud/ipwarehouse/internal/logger"
)

// EnricherConfig bounds an enrichment batch.
type EnricherConfig struct {
	Workers      int
	BatchTimeout time.Duration
}

// Enricher looks up GeoIP and RDAP data for addresses and stores the results.
type Enricher struct {
	geoip  GeoIPLookup
	rdap   RDAPLookup
	writer *Service
	cfg    EnricherConfig
	logger *zap.Logger
}

// NewEnricher creates an enricher. Workers below 1 means one worker; a zero BatchTimeout means no limit.
func NewEnricher(geoip GeoIPLookup, rdap RDAPLookup, writer *Service, cfg EnricherConfig, logger *zap.Logger) *Enricher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{geoip: geoip, rdap: rdap, writer: writer, cfg: cfg, logger: logger}
}

type lookupResult struct {
	ip    string
	geoip document.Document
	rdap  []document.Document
}

// Run fetches every address concurrently, then writes all results in input order in one session.
// Cancellation or the batch timeout aborts the fetch and nothing is written.
// A failed lookup of a single address is logged and that address contributes what it has.
func (e *Enricher) Run(ctx context.Context, ips []string) (Report, error) {
	fetchCtx := ctx
	if e.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.cfg.BatchTimeout)
		defer cancel()
	}

	results := make([]lookupResult, len(ips))
	progress := newProgress(len(ips), e.logger)

	g, gctx := errgroup.WithContext(fetchCtx)
	g.SetLimit(e.cfg.Workers)
	for i, ip := range ips {
		g.Go(func() error {
			r, err := e.lookup(gctx, ip)
			if err != nil {
				return err
			}
			results[i] = r
			progress.step()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("enrichment aborted: %w", err)
	}
	e.logger.Info("lookups finished", zap.Int("ips", len(ips)))

	return e.writer.Write(ctx, toRecords(results))
}

// lookup fails only when ctx is done; other lookup errors are logged and dropped.
func (e *Enricher) lookup(ctx context.Context, ip string) (lookupResult, error) {
	r := lookupResult{ip: ip}

	geo, err := e.geoip.Lookup(ctx, ip)
	if abort := e.checkLookup(ctx, "geoip", ip, err); abort != nil {
		return r, abort
	}
	if err == nil {
		r.geoip = geo
	}

	docs, err := e.rdap.Lookup(ctx, ip)
	if abort := e.checkLookup(ctx, "rdap", ip, err); abort != nil {
		return r, abort
	}
	if err == nil {
		r.rdap = docs
	}
	return r, nil
}

func (e *Enricher) checkLookup(ctx context.Context, source, ip string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	e.logger.Warn("lookup failed", zap.String("source", source), logpkg.IP(ip), zap.Error(err))
	return nil
}

// toRecords orders writes per address: geoip, then each rdap record with a handle, then the ip_rdap links.
func toRecords(results []lookupResult) []Record {
	var records []Record
	for _, r := range results {
		if r.geoip.Len() > 0 {
			records = append(records, Record{Category: category.GeoIP, Doc: r.geoip})
		}
		var links []Record
		for _, d := range r.rdap {
			handle, ok := d.Get("handle")
			if !ok {
				continue
			}
			records = append(records, Record{Category: category.RDAP, Doc: d})

			var link document.Document
			link.Set("ip", document.StringValue(r.ip))
			link.Set("handle", handle)
			links = append(links, Record{Category: category.IPRDAP, Doc: link})
		}
		records = append(records, links...)
	}
	return records
}

// progress logs completion each time the whole percentage changes.
type progress struct {
	mu     sync.Mutex
	done   int
	total  int
	last   int
	logger *zap.Logger
}

func newProgress(total int, logger *zap.Logger) *progress {
	logger.Info("retrieving geoip and rdap data", zap.Int("ips", total), zap.Int("percent", 0))
	return &progress{total: total, logger: logger}
}

func (p *progress) step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	pct := p.done * 100 / p.total
	if pct != p.last {
		p.last = pct
		p.logger.Info("enrichment progress", zap.Int("done", p.done), zap.Int("percent", pct))
	}
}
