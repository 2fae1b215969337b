package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/category"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

// --- Mock ---

// mockStore keeps written lines in memory and dedups with the default registry.
type mockStore struct {
	mu       sync.Mutex
	registry *category.Registry
	keys     map[string]bool
	written  []string
	openErr  error
	opened   int
	closed   int
}

func newMockStore() *mockStore {
	return &mockStore{registry: category.Default(), keys: make(map[string]bool)}
}

func (m *mockStore) Open(_ context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	return &mockSession{store: m}, nil
}

type mockSession struct {
	store  *mockStore
	closed bool
}

func (s *mockSession) Write(cat string, doc document.Document) (bool, error) {
	m := s.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.closed {
		return false, domain.ErrSessionNotOpen
	}
	key, err := m.registry.KeyFor(cat, doc)
	if err != nil {
		return false, err
	}
	if m.keys[cat+"/"+string(key)] {
		return false, nil
	}
	m.keys[cat+"/"+string(key)] = true
	m.written = append(m.written, cat+" "+doc.String())
	return true, nil
}

func (s *mockSession) Close() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.closed = true
	s.store.closed++
	return nil
}

func docs(lines ...string) []document.Document {
	out := make([]document.Document, len(lines))
	for i, l := range lines {
		out[i] = document.MustParse(l)
	}
	return out
}

// --- Tests ---

func TestLoad_CountsAddedAndSkipped(t *testing.T) {
	store := newMockStore()
	svc := New(store, nil)

	st, err := svc.Load(context.Background(), category.GeoIP, docs(`{"ip":1}`, `{"ip":2}`, `{"ip":1,"x":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Stats{Added: 2, Skipped: 1}, st); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	st, err = svc.Load(context.Background(), category.GeoIP, docs(`{"ip":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Stats{Skipped: 1}, st); diff != "" {
		t.Errorf("second load mismatch (-want +got):\n%s", diff)
	}
	if store.opened != 2 || store.closed != 2 {
		t.Errorf("opened %d closed %d sessions, want 2 and 2", store.opened, store.closed)
	}
}

func TestWrite_ReportPerCategory(t *testing.T) {
	svc := New(newMockStore(), nil)
	report, err := svc.Write(context.Background(), []Record{
		{Category: category.RDAP, Doc: document.MustParse(`{"handle":"A"}`)},
		{Category: category.IPRDAP, Doc: document.MustParse(`{"ip":"1.1.1.1","handle":"A"}`)},
		{Category: category.RDAP, Doc: document.MustParse(`{"handle":"A"}`)},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Report{
		category.RDAP:   {Added: 1, Skipped: 1},
		category.IPRDAP: {Added: 1},
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_AbortsOnFirstError(t *testing.T) {
	store := newMockStore()
	svc := New(store, nil)

	_, err := svc.Write(context.Background(), []Record{
		{Category: category.GeoIP, Doc: document.MustParse(`{"ip":1}`)},
		{Category: "whois", Doc: document.MustParse(`{"ip":2}`)},
		{Category: category.GeoIP, Doc: document.MustParse(`{"ip":3}`)},
	})
	if !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("err = %v, want ErrUnknownCategory", err)
	}
	if len(store.written) != 1 {
		t.Errorf("written = %v, want only the first record", store.written)
	}
	if store.closed != 1 {
		t.Error("session must be closed after a failed batch")
	}
}

func TestWrite_OpenError(t *testing.T) {
	store := newMockStore()
	store.openErr = &domain.CorruptLogError{Path: "geoip.json", Line: 1}

	_, err := New(store, nil).Load(context.Background(), category.GeoIP, docs(`{"ip":1}`))
	if !errors.Is(err, domain.ErrCorruptLog) {
		t.Fatalf("err = %v, want ErrCorruptLog", err)
	}
}

func TestWrite_Cancelled(t *testing.T) {
	store := newMockStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(store, nil).Load(ctx, category.GeoIP, docs(`{"ip":1}`))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want Canceled", err)
	}
	if len(store.written) != 0 {
		t.Errorf("written = %v", store.written)
	}
}

func TestExtractIPs(t *testing.T) {
	input := strings.Join([]string{
		"Jan 1 sshd: failed login from 10.0.0.1 port 22",
		"Jan 1 sshd: failed login from 192.168.1.20, 10.0.0.1",
		"no addresses here, just 1.2.3 and v1.2",
		"tail without newline 8.8.8.8",
	}, "\n")

	got, err := ExtractIPs(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []IPCount{
		{IP: "10.0.0.1", Count: 2},
		{IP: "192.168.1.20", Count: 1},
		{IP: "8.8.8.8", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ips mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractIPs_Empty(t *testing.T) {
	got, err := ExtractIPs(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestOpener(t *testing.T) {
	store := newMockStore()
	opened := Opener(func(ctx context.Context) (*mockSession, error) {
		s, err := store.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s.(*mockSession), nil
	})

	sess, err := opened.Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sess.(*mockSession); !ok {
		t.Fatalf("expected *mockSession, got %T", sess)
	}

	store.openErr = errors.New("locked")
	sess, err = opened.Open(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if sess != nil {
		t.Errorf("failed open must yield a nil Session, got %#v", sess)
	}
}
