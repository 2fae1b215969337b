package warehouse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/category"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

func newWarehouse(t *testing.T) *Warehouse {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "data"), category.Default())
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func scanAll(t *testing.T, w *Warehouse) []string {
	t.Helper()
	var out []string
	for doc, err := range w.Scan(context.Background()) {
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, doc.String())
	}
	return out
}

func TestWrite_NoPriorData(t *testing.T) {
	w := newWarehouse(t)
	if _, err := os.Stat(w.Root()); !os.IsNotExist(err) {
		t.Fatalf("root must not exist before the first write, stat err = %v", err)
	}

	var added bool
	err := w.WithSession(context.Background(), func(s *Session) error {
		var err error
		added, err = s.Write(category.GeoIP, document.MustParse(`{"k1":"v1","k2":"v2","ip":5}`))
		return err
	})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if !added {
		t.Error("first write must report added")
	}

	entries, err := os.ReadDir(w.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "geoip.json" {
		t.Fatalf("unexpected root contents: %v", entries)
	}
	got := readLines(t, filepath.Join(w.Root(), "geoip.json"))
	want := []string{`{"k1":"v1","k2":"v2","ip":5,"index":"geoip"}`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_IdempotentAcrossSessions(t *testing.T) {
	w := newWarehouse(t)
	ctx := context.Background()
	doc := document.MustParse(`{"k":"v","handle":"derp"}`)

	for i, wantAdded := range []bool{true, false} {
		s, err := w.Open(ctx)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		added, err := s.Write(category.RDAP, doc)
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if added != wantAdded {
			t.Errorf("session %d: added = %v, want %v", i, added, wantAdded)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}

	if lines := readLines(t, filepath.Join(w.Root(), "rdap.json")); len(lines) != 1 {
		t.Errorf("log has %d lines, want 1: %v", len(lines), lines)
	}
}

func TestWrite_DedupWithinSession(t *testing.T) {
	w := newWarehouse(t)
	s, err := w.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	first, _ := s.Write(category.IPRDAP, document.MustParse(`{"ip":"1.2.3.4","handle":"NET-1"}`))
	again, _ := s.Write(category.IPRDAP, document.MustParse(`{"handle":"NET-1","ip":"1.2.3.4","extra":1}`))
	other, _ := s.Write(category.IPRDAP, document.MustParse(`{"ip":"1.2.3.4","handle":"NET-2"}`))

	if !first || again || !other {
		t.Errorf("added = %v, %v, %v; want true, false, true", first, again, other)
	}
	if n := s.keyCount(category.IPRDAP); n != 2 {
		t.Errorf("keyCount = %d, want 2", n)
	}
}

func TestOpen_PriorDataSameCategory(t *testing.T) {
	w := newWarehouse(t)
	writeFile(t, filepath.Join(w.Root(), "geoip.json"), `{"k1":"v1","k2":"v2","ip":5}`)
	writeFile(t, filepath.Join(w.Root(), "rdap.json"), `{"k1":"v1","k2":"v2","handle":"derp"}`+"\n")

	var collision, fresh bool
	err := w.WithSession(context.Background(), func(s *Session) error {
		if !s.has(category.GeoIP, "5") {
			t.Error("geoip key 5 not loaded")
		}
		var err error
		if collision, err = s.Write(category.RDAP, document.MustParse(`{"k3":"v3","handle":"derp"}`)); err != nil {
			return err
		}
		fresh, err = s.Write(category.RDAP, document.MustParse(`{"k1":"v1","k2":"v2","handle":"herp"}`))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if collision {
		t.Error("write with a stored key must be skipped")
	}
	if !fresh {
		t.Error("write with a new key must be added")
	}

	want := []string{
		`{"k1":"v1","k2":"v2","handle":"derp"}`,
		`{"k1":"v1","k2":"v2","handle":"herp","index":"rdap"}`,
	}
	if diff := cmp.Diff(want, readLines(t, filepath.Join(w.Root(), "rdap.json"))); diff != "" {
		t.Errorf("rdap log mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_AfterCloseFails(t *testing.T) {
	w := newWarehouse(t)
	s, err := w.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	_, err = s.Write(category.GeoIP, document.MustParse(`{"ip":1}`))
	if !errors.Is(err, domain.ErrSessionNotOpen) {
		t.Fatalf("err = %v, want ErrSessionNotOpen", err)
	}
	if _, statErr := os.Stat(w.Root()); !os.IsNotExist(statErr) {
		t.Error("a rejected write must not create the root")
	}
}

func TestWrite_UnknownCategory(t *testing.T) {
	w := newWarehouse(t)
	err := w.WithSession(context.Background(), func(s *Session) error {
		_, err := s.Write("whois", document.MustParse(`{"ip":1}`))
		return err
	})
	if !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("err = %v, want ErrUnknownCategory", err)
	}
}

func TestWrite_MissingKeyField(t *testing.T) {
	w := newWarehouse(t)
	err := w.WithSession(context.Background(), func(s *Session) error {
		_, err := s.Write(category.IPRDAP, document.MustParse(`{"ip":1}`))
		return err
	})
	if !errors.Is(err, domain.ErrMissingKeyField) {
		t.Fatalf("err = %v, want ErrMissingKeyField", err)
	}
}

func TestOpen_CorruptLog(t *testing.T) {
	w := newWarehouse(t)
	writeFile(t, filepath.Join(w.Root(), "geoip.json"), "{\"ip\":1}\n{\"ip\":\n")

	_, err := w.Open(context.Background())
	var ce *domain.CorruptLogError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CorruptLogError", err)
	}
	if ce.Line != 2 || filepath.Base(ce.Path) != "geoip.json" {
		t.Errorf("corrupt location = %s:%d", ce.Path, ce.Line)
	}

	// the failed open released the writer token
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	writeFile(t, filepath.Join(w.Root(), "geoip.json"), "{\"ip\":1}\n")
	s, err := w.Open(ctx)
	if err != nil {
		t.Fatalf("open after repair: %v", err)
	}
	_ = s.Close()
}

func TestOpen_UnregisteredLog(t *testing.T) {
	w := newWarehouse(t)
	writeFile(t, filepath.Join(w.Root(), "whois.json"), `{"ip":1}`+"\n")

	if _, err := w.Open(context.Background()); !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("err = %v, want ErrUnknownCategory", err)
	}
}

func TestOpen_IgnoresForeignFiles(t *testing.T) {
	w := newWarehouse(t)
	writeFile(t, filepath.Join(w.Root(), "README.txt"), "not a log")
	if err := os.MkdirAll(filepath.Join(w.Root(), "backup.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	s, err := w.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.Close()
}

func TestOpen_WaitsForPreviousSession(t *testing.T) {
	w := newWarehouse(t)
	first, err := w.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := w.Open(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}

	_ = first.Close()
	second, err := w.Open(context.Background())
	if err != nil {
		t.Fatalf("open after close: %v", err)
	}
	_ = second.Close()
}

func TestWithSession_ClosesOnError(t *testing.T) {
	w := newWarehouse(t)
	boom := errors.New("boom")
	var held *Session

	err := w.WithSession(context.Background(), func(s *Session) error {
		held = s
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := held.Write(category.GeoIP, document.MustParse(`{"ip":1}`)); !errors.Is(err, domain.ErrSessionNotOpen) {
		t.Errorf("session still open after error exit: %v", err)
	}
}

func TestScan_RoundTrip(t *testing.T) {
	w := newWarehouse(t)
	docs := []struct {
		cat string
		doc string
	}{
		{category.RDAP, `{"event":4,"handle":"handle1"}`},
		{category.GeoIP, `{"event":1,"ip":7}`},
		{category.IPRDAP, `{"ip":7,"handle":"handle1"}`},
		{category.GeoIP, `{"event":2,"ip":10}`},
	}
	err := w.WithSession(context.Background(), func(s *Session) error {
		for _, d := range docs {
			if _, err := s.Write(d.cat, document.MustParse(d.doc)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		`{"event":1,"ip":7,"index":"geoip"}`,
		`{"event":2,"ip":10,"index":"geoip"}`,
		`{"ip":7,"handle":"handle1","index":"ip_rdap"}`,
		`{"event":4,"handle":"handle1","index":"rdap"}`,
	}
	if diff := cmp.Diff(want, scanAll(t, w)); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}

	// every stored document reproduces the key it was written under
	reg := category.Default()
	for doc, err := range w.Scan(context.Background()) {
		if err != nil {
			t.Fatal(err)
		}
		idx, _ := doc.Get(document.IndexField)
		key, err := reg.KeyFor(idx.String(), doc)
		if err != nil {
			t.Fatalf("KeyFor: %v", err)
		}
		s, err := w.Open(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !s.has(idx.String(), key) {
			t.Errorf("key %q of %s not loaded on open", key, doc)
		}
		_ = s.Close()
	}
}

func TestWrite_NumberLiterals(t *testing.T) {
	w := newWarehouse(t)
	ctx := context.Background()
	writes := []struct {
		doc  string
		want bool
	}{
		{`{"ip":9007199254740993,"price":1.50}`, true},
		{`{"ip":9007199254740992,"price":1.50}`, true},
		{`{"ip":1.50}`, true},
		{`{"ip":1.5}`, false},
	}
	err := w.WithSession(ctx, func(s *Session) error {
		for _, wr := range writes {
			added, err := s.Write(category.GeoIP, document.MustParse(wr.doc))
			if err != nil {
				return err
			}
			if added != wr.want {
				t.Errorf("%s: added = %v, want %v", wr.doc, added, wr.want)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		`{"ip":9007199254740993,"price":1.50,"index":"geoip"}`,
		`{"ip":9007199254740992,"price":1.50,"index":"geoip"}`,
		`{"ip":1.50,"index":"geoip"}`,
	}
	if diff := cmp.Diff(want, readLines(t, filepath.Join(w.Root(), "geoip.json"))); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, scanAll(t, w)); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}

	// keys rebuilt from the log still tell the two large integers apart
	s, err := w.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if n := s.keyCount(category.GeoIP); n != 3 {
		t.Errorf("keyCount after reopen = %d, want 3", n)
	}
	if added, _ := s.Write(category.GeoIP, document.MustParse(`{"ip":9007199254740993}`)); added {
		t.Error("reloaded large integer written twice")
	}
}

func TestScan_EmptyRoot(t *testing.T) {
	if got := scanAll(t, newWarehouse(t)); len(got) != 0 {
		t.Errorf("scan of a missing root yielded %v", got)
	}
}

func TestScan_CorruptLine(t *testing.T) {
	w := newWarehouse(t)
	writeFile(t, filepath.Join(w.Root(), "geoip.json"), "{\"ip\":1}\n[1,2]\n{\"ip\":3}\n")

	var (
		n       int
		lastErr error
	)
	for _, err := range w.Scan(context.Background()) {
		if err != nil {
			lastErr = err
			break
		}
		n++
	}
	if n != 1 {
		t.Errorf("yielded %d documents before the corrupt line, want 1", n)
	}
	if !errors.Is(lastErr, domain.ErrCorruptLog) {
		t.Errorf("err = %v, want ErrCorruptLog", lastErr)
	}
}

func TestScan_Cancelled(t *testing.T) {
	w := newWarehouse(t)
	writeFile(t, filepath.Join(w.Root(), "geoip.json"), "{\"ip\":1}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range w.Scan(ctx) {
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want Canceled", err)
		}
		return
	}
	t.Fatal("cancelled scan yielded nothing")
}

func TestWrite_Fsync(t *testing.T) {
	w := New(t.TempDir(), category.Default(), WithFsync(true))
	err := w.WithSession(context.Background(), func(s *Session) error {
		_, err := s.Write(category.GeoIP, document.MustParse(`{"ip":"8.8.8.8"}`))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(scanAll(t, w)); got != 1 {
		t.Errorf("stored %d documents, want 1", got)
	}
}

func TestPing(t *testing.T) {
	w := newWarehouse(t)
	if err := w.Ping(context.Background()); err != nil {
		t.Errorf("Ping on missing root: %v", err)
	}
	writeFile(t, w.Root(), "a file, not a directory")
	if err := w.Ping(context.Background()); err == nil {
		t.Error("Ping on a non-directory root must fail")
	}
}
