// Package warehouse stores documents in append-only, per-category JSON-lines logs with key-based dedup.
//
// Each category lives in <root>/<category>.json. A Session loads every existing key on open and
// holds the append handles until Close; only one session is open per Warehouse at a time.
package warehouse

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/category"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

const (
	logExt   = ".json"
	dirPerm  = 0o755
	filePerm = 0o644
)

// Warehouse is the on-disk document store rooted at a directory.
type Warehouse struct {
	root     string
	registry *category.Registry
	logger   *zap.Logger
	fsync    bool

	// single-writer token: a session holds it from Open until Close
	writer chan struct{}
}

// Option configures a Warehouse.
type Option func(*Warehouse)

// WithFsync syncs each log after every appended line.
func WithFsync(enabled bool) Option {
	return func(w *Warehouse) { w.fsync = enabled }
}

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(w *Warehouse) { w.logger = l }
}

// New creates a warehouse. The root directory is created on the first write, not here.
func New(root string, registry *category.Registry, opts ...Option) *Warehouse {
	w := &Warehouse{
		root:     root,
		registry: registry,
		logger:   zap.NewNop(),
		writer:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the directory holding the category logs.
func (w *Warehouse) Root() string { return w.root }

// Ping checks that the root is readable. A root that does not exist yet is healthy.
func (w *Warehouse) Ping(_ context.Context) error {
	_, err := w.logs()
	return err
}

// Scan streams every stored document, category logs in lexical order, lines in file order.
// A line that is not a JSON object ends the stream with a *domain.CorruptLogError.
func (w *Warehouse) Scan(ctx context.Context) iter.Seq2[document.Document, error] {
	return func(yield func(document.Document, error) bool) {
		logs, err := w.logs()
		if err != nil {
			yield(document.Document{}, err)
			return
		}
		for _, l := range logs {
			for doc, err := range readLog(l.path) {
				if err == nil {
					err = ctx.Err()
				}
				if err != nil {
					yield(document.Document{}, err)
					return
				}
				if !yield(doc, nil) {
					return
				}
			}
		}
	}
}

type logFile struct {
	category string
	path     string
}

// logs lists <category>.json files under root in lexical order. Other entries are ignored.
func (w *Warehouse) logs() ([]logFile, error) {
	entries, err := os.ReadDir(w.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read warehouse root %s: %w", w.root, err)
	}
	var out []logFile
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, logExt) {
			continue
		}
		out = append(out, logFile{
			category: strings.TrimSuffix(name, logExt),
			path:     filepath.Join(w.root, name),
		})
	}
	return out, nil
}

func (w *Warehouse) logPath(cat string) string {
	return filepath.Join(w.root, cat+logExt)
}

// readLog yields the documents of one log. Blank lines are skipped; line numbers are 1-based.
func readLog(path string) iter.Seq2[document.Document, error] {
	return func(yield func(document.Document, error) bool) {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			yield(document.Document{}, fmt.Errorf("open log %s: %w", path, err))
			return
		}
		defer f.Close()

		r := bufio.NewReader(f)
		for lineNo := 1; ; lineNo++ {
			line, readErr := r.ReadBytes('\n')
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				yield(document.Document{}, fmt.Errorf("read log %s: %w", path, readErr))
				return
			}
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				doc, err := document.Parse(trimmed)
				if err != nil {
					yield(document.Document{}, &domain.CorruptLogError{Path: path, Line: lineNo, Err: err})
					return
				}
				if !yield(doc, nil) {
					return
				}
			}
			if readErr != nil {
				return
			}
		}
	}
}
