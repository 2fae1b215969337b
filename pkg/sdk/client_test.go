package ipwarehouse

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_NoRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error when no root provided")
	}
}

func TestNew_InvalidCategory(t *testing.T) {
	if _, err := New(t.TempDir(), WithCategory("whois")); err == nil {
		t.Fatal("expected error for category without key fields")
	}
}

func TestNew_InvalidCacheSize(t *testing.T) {
	if _, err := New(t.TempDir(), WithQueryCache(-1)); err == nil {
		t.Fatal("expected error for negative cache size")
	}
}

func TestLoadAndQuery(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	st, err := c.Load(ctx, "geoip", []byte(`[{"ip":7},{"ip":10},{"ip":15},{"ip":7}]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(LoadStats{Added: 3, Skipped: 1}, st); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	rows, err := c.Query(ctx, "search index=geoip ip>=10")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []Row{
		{Text: `{"ip":10,"index":"geoip"}`, Document: []byte(`{"ip":10,"index":"geoip"}`)},
		{Text: `{"ip":15,"index":"geoip"}`, Document: []byte(`{"ip":15,"index":"geoip"}`)},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestQuery_TableHeaderHasNoDocument(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	if _, err := c.Load(ctx, "rdap", []byte(`{"handle":"NET-1"}`)); err != nil {
		t.Fatal(err)
	}

	rows, err := c.Query(ctx, "search handle=NET-1 | fields handle | prettyprint format=table")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and one row, got %d", len(rows))
	}
	if rows[0].Document != nil || !rows[0].Formatted || rows[0].Text != "handle  " {
		t.Errorf("header = %+v", rows[0])
	}
	if string(rows[1].Document) != `{"handle":"NET-1"}` {
		t.Errorf("row document = %s", rows[1].Document)
	}
}

func TestCustomCategory(t *testing.T) {
	c := newClient(t, WithCategory("asn", "number"))
	ctx := context.Background()

	st, err := c.Load(ctx, "asn", []byte(`[{"number":15169},{"number":15169}]`))
	if err != nil {
		t.Fatal(err)
	}
	if st.Added != 1 || st.Skipped != 1 {
		t.Errorf("stats = %+v", st)
	}
	if _, err := os.Stat(filepath.Join(c.Root(), "asn.json")); err != nil {
		t.Errorf("asn log not created: %v", err)
	}
}

func TestErrors(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	if _, err := c.Load(ctx, "whois", []byte(`{"ip":1}`)); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("unknown category: %v", err)
	}
	if _, err := c.Load(ctx, "geoip", []byte(`{"city":"x"}`)); !errors.Is(err, ErrMissingKeyField) {
		t.Errorf("missing key: %v", err)
	}
	if _, err := c.Query(ctx, `search ip="x`); !errors.Is(err, ErrParse) {
		t.Errorf("parse: %v", err)
	}
	if _, err := c.Explain("search ip=1 | prettyprint format=json | fields ip"); !errors.Is(err, ErrInvalidPipeline) {
		t.Errorf("invalid pipeline: %v", err)
	}

	if err := os.WriteFile(filepath.Join(c.Root(), "geoip.json"), []byte("[]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Query(ctx, "search ip=*"); !errors.Is(err, ErrCorruptLog) {
		t.Errorf("corrupt log: %v", err)
	}
}

func TestExplain(t *testing.T) {
	c := newClient(t)
	stages, err := c.Explain("search ip=1 | join ip")
	if err != nil {
		t.Fatal(err)
	}
	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	if got := string(stages[1]); got != `{"type":"join","by_field":"ip"}` {
		t.Errorf("join stage = %s", got)
	}
}

func TestHealth(t *testing.T) {
	c := newClient(t)
	h := c.Health(context.Background())
	want := HealthStatus{Status: "ok", Checks: map[string]string{"warehouse": "ok"}}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if !h.Healthy() || len(h.Failing()) != 0 {
		t.Errorf("expected healthy status, failing = %v", h.Failing())
	}
}

func TestHealthStatus_Failing(t *testing.T) {
	h := HealthStatus{Status: "degraded", Checks: map[string]string{"warehouse": "error", "cache": "ok", "disk": "error"}}
	if h.Healthy() {
		t.Error("degraded status must not be healthy")
	}
	if diff := cmp.Diff([]string{"disk", "warehouse"}, h.Failing()); diff != "" {
		t.Errorf("Failing mismatch (-want +got):\n%s", diff)
	}
}

func TestObserver_MetricsAndLogs(t *testing.T) {
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newClient(t, WithPrometheus(reg), WithLogger(logger))
	ctx := context.Background()

	if _, err := c.Load(ctx, "geoip", []byte(`{"ip":1}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Query(ctx, "search ip=1"); err != nil {
		t.Fatal(err)
	}
	_, _ = c.Query(ctx, "fields ip")

	m := c.obs.metrics
	if got := testutil.ToFloat64(m.operations.WithLabelValues("load", "ok")); got != 1 {
		t.Errorf("load ok = %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("query", "ok")); got != 1 {
		t.Errorf("query ok = %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("query", "error")); got != 1 {
		t.Errorf("query error = %v", got)
	}
	if got := testutil.ToFloat64(m.documents.WithLabelValues("geoip", "added")); got != 1 {
		t.Errorf("documents added = %v", got)
	}
	if got := testutil.CollectAndCount(m.rows); got != 1 {
		t.Errorf("query_rows series = %d", got)
	}
	if !strings.Contains(logs.String(), "category=geoip") {
		t.Errorf("expected load log with category, got:\n%s", logs.String())
	}
	if !strings.Contains(logs.String(), "operation failed") {
		t.Errorf("expected failure log, got:\n%s", logs.String())
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := newClient(t, WithPrometheus(reg))
	b := newClient(t, WithPrometheus(reg))
	if a.obs.metrics.operations != b.obs.metrics.operations {
		t.Error("second client must reuse the registered collectors")
	}
}
