package ipwarehouse

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	domcat "github.com/kailas-cloud/ipwarehouse/internal/domain/category"
	domdoc "github.com/kailas-cloud/ipwarehouse/internal/domain/document"
	"github.com/kailas-cloud/ipwarehouse/internal/query/pipeline"
	"github.com/kailas-cloud/ipwarehouse/internal/repository/warehouse"
	healthuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/query"
)

const defaultCacheSize = 128

// Internal interfaces, swapped for fakes in tests.
type queryUseCase interface {
	Run(ctx context.Context, query string) (iter.Seq2[pipeline.Row, error], error)
	Explain(query string) ([]domdoc.Document, error)
}

type ingestUseCase interface {
	Load(ctx context.Context, category string, docs []domdoc.Document) (ingestuc.Stats, error)
}

// Row is one query result. Document is nil for a table header line.
type Row struct {
	Text      string // compact JSON, or the formatted line when Formatted
	Document  []byte // compact JSON of the underlying document
	Formatted bool
}

// LoadStats counts the documents a Load appended and the duplicates it skipped.
type LoadStats struct {
	Added   int
	Skipped int
}

// Client is the ipwarehouse SDK entry point.
type Client struct {
	wh        *warehouse.Warehouse
	querySvc  queryUseCase
	ingestSvc ingestUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client storing its logs under root. The directory is created on the first write.
func New(root string, opts ...Option) (*Client, error) {
	if root == "" {
		return nil, errors.New("ipwarehouse: root directory required")
	}
	cfg := &clientConfig{cacheSize: defaultCacheSize}
	for _, o := range opts {
		o.apply(cfg)
	}

	registry := domcat.Default()
	for _, c := range cfg.categories {
		if c.name == "" || len(c.keyFields) == 0 {
			return nil, fmt.Errorf("ipwarehouse: category %q needs a name and key fields", c.name)
		}
		registry.Register(c.name, domcat.FieldKey(c.keyFields...))
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	wh := warehouse.New(root, registry, warehouse.WithFsync(cfg.fsync))
	querySvc, err := queryuc.New(wh, cfg.cacheSize, nil)
	if err != nil {
		return nil, fmt.Errorf("ipwarehouse: %w", err)
	}

	return &Client{
		wh:        wh,
		querySvc:  querySvc,
		ingestSvc: ingestuc.New(ingestuc.Opener(wh.Open), nil),
		healthSvc: healthuc.New(wh),
		obs:       obs,
	}, nil
}

// Root returns the directory holding the category logs.
func (c *Client) Root() string { return c.wh.Root() }

// Ping checks that the warehouse directory is readable.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.wh.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Load appends the documents in data (a JSON object or an array of objects) to category.
// Documents whose key is already stored are skipped.
func (c *Client) Load(ctx context.Context, category string, data []byte) (stats LoadStats, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("load", start, err,
			slog.String("category", category), slog.Int("added", stats.Added), slog.Int("skipped", stats.Skipped))
	}()

	docs, err := domdoc.ParseMany(data)
	if err != nil {
		return LoadStats{}, fmt.Errorf("load: %w", err)
	}
	st, err := c.ingestSvc.Load(ctx, category, docs)
	if err != nil {
		return LoadStats{}, fmt.Errorf("load: %w", err)
	}
	stats = LoadStats{Added: st.Added, Skipped: st.Skipped}
	c.obs.loaded(category, stats)
	return stats, nil
}

// Rows runs query and streams its results. Stopping the iteration stops the scan.
func (c *Client) Rows(ctx context.Context, query string) (iter.Seq2[Row, error], error) {
	rows, err := c.querySvc.Run(ctx, query)
	if err != nil {
		c.obs.observe("query", time.Now(), err, slog.String("query", query))
		return nil, fmt.Errorf("query: %w", err)
	}
	return func(yield func(Row, error) bool) {
		var (
			err error
			n   int
		)
		start := time.Now()
		defer func() { c.obs.observe("query", start, err, slog.String("query", query), slog.Int("rows", n)) }()

		for r, rerr := range rows {
			if rerr != nil {
				err = fmt.Errorf("query: %w", rerr)
				yield(Row{}, err)
				return
			}
			n++
			if !yield(toRow(r), nil) {
				return
			}
		}
		c.obs.queried(n)
	}, nil
}

// Query runs query and collects every result.
func (c *Client) Query(ctx context.Context, query string) ([]Row, error) {
	rows, err := c.Rows(ctx, query)
	if err != nil {
		return nil, err
	}
	var out []Row
	for r, err := range rows {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Explain compiles query and returns one JSON description per pipeline stage.
func (c *Client) Explain(query string) ([][]byte, error) {
	stages, err := c.querySvc.Explain(query)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	out := make([][]byte, len(stages))
	for i, st := range stages {
		out[i], _ = st.MarshalJSON()
	}
	return out, nil
}

func toRow(r pipeline.Row) Row {
	row := Row{Text: r.String(), Formatted: r.Formatted}
	if r.Doc.Len() > 0 {
		row.Document, _ = r.Doc.MarshalJSON()
	}
	return row
}
