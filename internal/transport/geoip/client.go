// Package geoip fetches GeoIP records for IPv4 addresses from an ipstack-compatible API.
package geoip

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/ipv4"
	"github.com/kailas-cloud/ipwarehouse/internal/metrics"
	"github.com/kailas-cloud/ipwarehouse/internal/transport/httpclient"
)

const source = "geoip"

// droppedFields are removed from every record before it is stored.
var droppedFields = []string{"location"}

// Client performs GeoIP lookups.
type Client struct {
	http      *retryablehttp.Client
	baseURL   string
	accessKey string
}

// New creates a client for GET <baseURL>/<ip>?access_key=<accessKey>.
func New(baseURL, accessKey string, hc *retryablehttp.Client) *Client {
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), accessKey: accessKey}
}

// Lookup returns the GeoIP record of ip. The record always carries an "ip" field.
func (c *Client) Lookup(ctx context.Context, ip string) (document.Document, error) {
	if err := ipv4.Validate(ip); err != nil {
		return document.Document{}, err
	}

	start := time.Now()
	doc, err := c.fetch(ctx, ip)
	metrics.LookupDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LookupRequestsTotal.WithLabelValues(source, "error").Inc()
		return document.Document{}, err
	}
	metrics.LookupRequestsTotal.WithLabelValues(source, "ok").Inc()
	return doc, nil
}

func (c *Client) fetch(ctx context.Context, ip string) (document.Document, error) {
	u := c.baseURL + "/" + url.PathEscape(ip)
	if c.accessKey != "" {
		u += "?" + url.Values{"access_key": {c.accessKey}}.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return document.Document{}, fmt.Errorf("build geoip request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return document.Document{}, fmt.Errorf("geoip lookup %s: %w", ip, err)
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return document.Document{}, fmt.Errorf("geoip lookup %s: %w", ip, err)
	}
	if resp.StatusCode != http.StatusOK {
		return document.Document{}, fmt.Errorf("geoip lookup %s: unexpected status %d", ip, resp.StatusCode)
	}

	// ipstack reports failures with 200 and {"success": false, "error": {...}}
	if res := gjson.GetBytes(body, "success"); res.Exists() && !res.Bool() {
		return document.Document{}, fmt.Errorf("geoip lookup %s: %s", ip, gjson.GetBytes(body, "error.info").String())
	}

	raw, err := document.Parse(body)
	if err != nil {
		return document.Document{}, fmt.Errorf("decode geoip response for %s: %w", ip, err)
	}
	var doc document.Document
	for name, v := range raw.Fields() {
		if !slices.Contains(droppedFields, name) {
			doc.Set(name, v)
		}
	}
	if !doc.Has("ip") {
		doc.Set("ip", document.StringValue(ip))
	}
	return doc, nil
}
