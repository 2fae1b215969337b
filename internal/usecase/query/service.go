package query

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
	logpkg "github.com/kailas-cloud/ipwarehouse/internal/logger"
	"github.com/kailas-cloud/ipwarehouse/internal/metrics"
	"github.com/kailas-cloud/ipwarehouse/internal/query/pipeline"
)

// Service compiles query strings and runs them against the store.
type Service struct {
	store  Store
	cache  *lru.ARCCache
	logger *zap.Logger
}

// New creates a query service. Compiled pipelines are cached by query text, cacheSize entries at most.
func New(store Store, cacheSize int, logger *zap.Logger) (*Service, error) {
	cache, err := lru.NewARC(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create pipeline cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, cache: cache, logger: logger}, nil
}

// Compile parses and validates a query. Errors wrap domain.ErrParse or domain.ErrInvalidPipeline.
func (s *Service) Compile(query string) (*pipeline.Pipeline, error) {
	if cached, ok := s.cache.Get(query); ok {
		metrics.QueryCacheTotal.WithLabelValues("hit").Inc()
		return cached.(*pipeline.Pipeline), nil
	}
	metrics.QueryCacheTotal.WithLabelValues("miss").Inc()

	p, err := pipeline.Build(query)
	if err != nil {
		return nil, err
	}
	s.cache.Add(query, p)
	return p, nil
}

// Run compiles query and returns its lazily evaluated result over a fresh store scan.
// Compile errors are returned immediately; store errors arrive through the sequence.
func (s *Service) Run(ctx context.Context, query string) (iter.Seq2[pipeline.Row, error], error) {
	p, err := s.Compile(query)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(status(err)).Inc()
		s.logger.Warn("query rejected", logpkg.Query(query), zap.Error(err))
		return nil, err
	}

	rows := p.Execute(s.store.Scan(ctx))
	return func(yield func(pipeline.Row, error) bool) {
		start := time.Now()
		var (
			n      int
			runErr error
		)
		defer func() {
			metrics.QueryDuration.Observe(time.Since(start).Seconds())
			metrics.QueriesTotal.WithLabelValues(status(runErr)).Inc()
			if runErr != nil {
				s.logger.Warn("query failed", logpkg.Query(query), zap.Error(runErr))
				return
			}
			s.logger.Debug("query executed",
				logpkg.Query(query),
				zap.Int("stages", len(p.Stages())),
				zap.Int("rows", n),
				zap.Duration("took", time.Since(start)),
			)
		}()

		for row, err := range rows {
			if err != nil {
				runErr = err
				yield(pipeline.Row{}, err)
				return
			}
			n++
			if !yield(row, nil) {
				return
			}
		}
	}, nil
}

// Collect runs query and gathers every row.
func (s *Service) Collect(ctx context.Context, query string) ([]pipeline.Row, error) {
	rows, err := s.Run(ctx, query)
	if err != nil {
		return nil, err
	}
	var out []pipeline.Row
	for row, err := range rows {
		if err != nil {
			return nil, fmt.Errorf("execute query: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// Explain compiles query and describes its stages.
func (s *Service) Explain(query string) ([]document.Document, error) {
	p, err := s.Compile(query)
	if err != nil {
		return nil, err
	}
	return p.Describe(), nil
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrParse):
		return "parse_error"
	case errors.Is(err, domain.ErrInvalidPipeline):
		return "invalid_pipeline"
	default:
		return "error"
	}
}
