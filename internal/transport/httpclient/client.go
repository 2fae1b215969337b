// Package httpclient builds the retrying HTTP client shared by the lookup clients.
package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// maxBodyBytes caps lookup response bodies.
const maxBodyBytes = 8 << 20

// Options tune retries and timeouts. Zero values fall back to the retryablehttp defaults.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// New creates a retrying client that logs retries through logger.
func New(opts Options, logger *zap.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = leveled{l: logger.Sugar()}
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	if opts.RetryMax > 0 {
		c.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		c.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		c.RetryWaitMax = opts.RetryWaitMax
	}
	return c
}

// ReadBody reads and closes a response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// leveled adapts zap to retryablehttp.LeveledLogger.
type leveled struct {
	l *zap.SugaredLogger
}

func (z leveled) Error(msg string, kv ...interface{}) { z.l.Errorw(msg, kv...) }
func (z leveled) Info(msg string, kv ...interface{})  { z.l.Infow(msg, kv...) }
func (z leveled) Debug(msg string, kv ...interface{}) { z.l.Debugw(msg, kv...) }
func (z leveled) Warn(msg string, kv ...interface{})  { z.l.Warnw(msg, kv...) }

var _ retryablehttp.LeveledLogger = leveled{}
