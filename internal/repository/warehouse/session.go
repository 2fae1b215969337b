package warehouse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/category"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
	logpkg "github.com/kailas-cloud/ipwarehouse/internal/logger"
	"github.com/kailas-cloud/ipwarehouse/internal/metrics"
)

// Session is an open period of the warehouse: keys loaded, logs open for append.
// Close must be called on every path; writes after Close fail with domain.ErrSessionNotOpen.
type Session struct {
	id     string
	wh     *Warehouse
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	keys   map[string]map[category.Key]struct{}
	files  map[string]*os.File
}

// Open loads the dedup keys of every existing log and opens those logs for append.
// It blocks while another session of the same Warehouse is open.
func (w *Warehouse) Open(ctx context.Context) (*Session, error) {
	select {
	case w.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for session: %w", ctx.Err())
	}

	s := &Session{
		id:    uuid.NewString(),
		wh:    w,
		keys:  make(map[string]map[category.Key]struct{}),
		files: make(map[string]*os.File),
	}
	s.logger = w.logger.With(logpkg.SessionID(s.id))

	if err := s.load(ctx); err != nil {
		_ = s.closeFiles()
		<-w.writer
		metrics.WarehouseSessionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	total := 0
	for cat, set := range s.keys {
		metrics.WarehouseKeysLoaded.WithLabelValues(cat).Set(float64(len(set)))
		total += len(set)
	}
	metrics.WarehouseSessionsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("warehouse session opened",
		zap.String("root", w.root),
		zap.Int("categories", len(s.keys)),
		zap.Int("keys", total),
	)
	return s, nil
}

func (s *Session) load(ctx context.Context) error {
	logs, err := s.wh.logs()
	if err != nil {
		return err
	}
	for _, l := range logs {
		if !s.wh.registry.Known(l.category) {
			return fmt.Errorf("log %s: %q: %w", l.path, l.category, domain.ErrUnknownCategory)
		}
		set := make(map[category.Key]struct{})
		for doc, err := range readLog(l.path) {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				return err
			}
			key, err := s.wh.registry.KeyFor(l.category, doc)
			if err != nil {
				return fmt.Errorf("log %s: %w", l.path, err)
			}
			set[key] = struct{}{}
		}
		s.keys[l.category] = set

		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, filePerm)
		if err != nil {
			return fmt.Errorf("open log %s for append: %w", l.path, err)
		}
		s.files[l.category] = f
	}
	return nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Write appends doc to the category log unless its key is already present.
// The stored line carries an "index" field naming the category. Returns true if the line was written.
func (s *Session) Write(cat string, doc document.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, domain.ErrSessionNotOpen
	}

	key, err := s.wh.registry.KeyFor(cat, doc)
	if err != nil {
		return false, err
	}
	set, ok := s.keys[cat]
	if !ok {
		set = make(map[category.Key]struct{})
		s.keys[cat] = set
	}
	if _, dup := set[key]; dup {
		metrics.WarehouseWritesTotal.WithLabelValues(cat, "skipped").Inc()
		return false, nil
	}

	f, err := s.appendHandle(cat)
	if err != nil {
		return false, err
	}
	line, err := doc.With(document.IndexField, document.StringValue(cat)).MarshalJSON()
	if err != nil {
		return false, fmt.Errorf("encode document: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return false, fmt.Errorf("append to %s: %w", f.Name(), err)
	}
	if s.wh.fsync {
		if err := f.Sync(); err != nil {
			return false, fmt.Errorf("fsync %s: %w", f.Name(), err)
		}
	}

	set[key] = struct{}{}
	metrics.WarehouseWritesTotal.WithLabelValues(cat, "added").Inc()
	s.logger.Debug("document written", logpkg.Category(cat))
	return true, nil
}

// appendHandle returns the open log of cat, creating the root and the log on first use.
func (s *Session) appendHandle(cat string) (*os.File, error) {
	if f, ok := s.files[cat]; ok {
		return f, nil
	}
	if err := os.MkdirAll(s.wh.root, dirPerm); err != nil {
		return nil, fmt.Errorf("create warehouse root %s: %w", s.wh.root, err)
	}
	path := s.wh.logPath(cat)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open log %s for append: %w", path, err)
	}
	s.files[cat] = f
	return f, nil
}

// has reports whether key is already stored in cat.
func (s *Session) has(cat string, key category.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[cat][key]
	return ok
}

// keyCount returns the number of keys known for cat.
func (s *Session) keyCount(cat string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys[cat])
}

// Close releases every handle and the writer token. Calling it again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	err := s.closeFiles()
	s.keys = nil
	<-s.wh.writer

	s.logger.Info("warehouse session closed")
	return err
}

func (s *Session) closeFiles() error {
	var errs []error
	for cat, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log %s: %w", cat, err))
		}
	}
	s.files = nil
	return errors.Join(errs...)
}

// WithSession opens a session, runs fn and closes the session on every exit path, panics included.
func (w *Warehouse) WithSession(ctx context.Context, fn func(*Session) error) (err error) {
	s, err := w.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(s)
}
