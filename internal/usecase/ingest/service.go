package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
	logpkg "github.com/kailas-cloud/ipwarehouse/internal/logger"
)

// Record is one document bound for a category.
type Record struct {
	Category string
	Doc      document.Document
}

// Stats counts the outcome of writes to one category.
type Stats struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Report holds Stats per category.
type Report map[string]Stats

func (r Report) record(category string, added bool) {
	st := r[category]
	if added {
		st.Added++
	} else {
		st.Skipped++
	}
	r[category] = st
}

// Service writes batches of documents to the store.
type Service struct {
	store  Store
	logger *zap.Logger
}

// New creates an ingest service.
func New(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Load writes docs to one category in a single session.
func (s *Service) Load(ctx context.Context, category string, docs []document.Document) (Stats, error) {
	records := make([]Record, len(docs))
	for i, d := range docs {
		records[i] = Record{Category: category, Doc: d}
	}
	report, err := s.Write(ctx, records)
	if err != nil {
		return Stats{}, err
	}
	return report[category], nil
}

// Write stores records in order within one session. Duplicates are skipped, not errors.
// The first failing record aborts the batch; records before it stay written.
func (s *Service) Write(ctx context.Context, records []Record) (_ Report, err error) {
	sess, err := s.store.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close session: %w", cerr))
		}
	}()

	report := make(Report)
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		added, err := sess.Write(r.Category, r.Doc)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		report.record(r.Category, added)
	}

	for cat, st := range report {
		s.logger.Info("batch written",
			logpkg.Category(cat),
			zap.Int("added", st.Added),
			zap.Int("skipped", st.Skipped),
		)
	}
	return report, nil
}
