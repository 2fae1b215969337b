package ipwarehouse

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type category struct {
	name      string
	keyFields []string
}

type clientConfig struct {
	fsync      bool
	cacheSize  int
	categories []category

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithFsync syncs each log to disk after every appended document.
func WithFsync() Option {
	return optionFunc(func(c *clientConfig) {
		c.fsync = true
	})
}

// WithQueryCache sets how many compiled queries are kept. Default: 128.
func WithQueryCache(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheSize = size
	})
}

// WithCategory registers a category whose documents are deduplicated by the
// given fields. Registering a default category replaces its key.
func WithCategory(name string, keyFields ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.categories = append(c.categories, category{name: name, keyFields: keyFields})
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operations, durations, loaded documents, query rows)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
