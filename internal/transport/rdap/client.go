// Package rdap fetches IP network registration data (RFC 7483) and flattens it into documents.
package rdap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/ipv4"
	"github.com/kailas-cloud/ipwarehouse/internal/metrics"
	"github.com/kailas-cloud/ipwarehouse/internal/transport/httpclient"
)

const source = "rdap"

// Client performs RDAP IP lookups.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

// New creates a client for GET <baseURL>/<ip>.
func New(baseURL string, hc *retryablehttp.Client) *Client {
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// Lookup returns the flattened RDAP records of ip: the network first, then its entities depth-first.
// An address the registry does not know (404) yields no records and no error.
func (c *Client) Lookup(ctx context.Context, ip string) ([]document.Document, error) {
	if err := ipv4.Validate(ip); err != nil {
		return nil, err
	}

	start := time.Now()
	docs, status, err := c.fetch(ctx, ip)
	metrics.LookupDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	metrics.LookupRequestsTotal.WithLabelValues(source, status).Inc()
	return docs, err
}

func (c *Client) fetch(ctx context.Context, ip string) ([]document.Document, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(ip), nil)
	if err != nil {
		return nil, "error", fmt.Errorf("build rdap request: %w", err)
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "error", fmt.Errorf("rdap lookup %s: %w", ip, err)
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, "error", fmt.Errorf("rdap lookup %s: %w", ip, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "not_found", nil
	case resp.StatusCode != http.StatusOK:
		return nil, "error", fmt.Errorf("rdap lookup %s: unexpected status %d", ip, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, "error", fmt.Errorf("rdap lookup %s: invalid json", ip)
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil, "error", fmt.Errorf("rdap lookup %s: response is not an object", ip)
	}
	return Flatten(res), "ok", nil
}
