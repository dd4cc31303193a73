package availability_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-formstate/pkg/availability"
)

func TestStaticChecker(t *testing.T) {
	checker := availability.NewStatic([]string{"Bob", " admin "})

	got := map[string]bool{}
	for _, candidate := range []string{"bob", "ADMIN", "alice"} {
		ok, err := checker.CheckAvailability(context.Background(), candidate)
		if err != nil {
			t.Fatalf("check %s: %v", candidate, err)
		}
		got[candidate] = ok
	}
	want := map[string]bool{"bob": false, "ADMIN": false, "alice": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}

	checker.Release("bob")
	if ok, _ := checker.CheckAvailability(context.Background(), "bob"); !ok {
		t.Fatal("released name should be available")
	}
}

func TestStaticCheckerLatencyHonoursContext(t *testing.T) {
	checker := availability.NewStatic(nil, availability.WithLatency(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := checker.CheckAvailability(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHTTPChecker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("username") == "bob" {
			_, _ = w.Write([]byte(`{"available":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"available":true}`))
	}))
	defer server.Close()

	checker, err := availability.NewHTTPChecker(server.URL + "/check")
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}
	for candidate, want := range map[string]bool{"bob": false, "alice": true} {
		got, err := checker.CheckAvailability(context.Background(), candidate)
		if err != nil {
			t.Fatalf("check %s: %v", candidate, err)
		}
		if got != want {
			t.Fatalf("check %s = %v, want %v", candidate, got, want)
		}
	}
}

func TestHTTPCheckerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"available":true}`))
	}))
	defer server.Close()

	checker, _ := availability.NewHTTPChecker(server.URL,
		availability.WithRetries(3),
		availability.WithRetryInterval(time.Millisecond),
	)
	ok, err := checker.CheckAvailability(context.Background(), "carol")
	if err != nil || !ok {
		t.Fatalf("check = %v, %v", ok, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestHTTPCheckerClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker, _ := availability.NewHTTPChecker(server.URL,
		availability.WithRetries(3),
		availability.WithRetryInterval(time.Millisecond),
	)
	if _, err := checker.CheckAvailability(context.Background(), "x"); !errors.Is(err, availability.ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestHTTPCheckerRejectsMalformedAnswers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"free":true}`))
	}))
	defer server.Close()

	checker, _ := availability.NewHTTPChecker(server.URL)
	if _, err := checker.CheckAvailability(context.Background(), "x"); err == nil {
		t.Fatal("expected error for missing field")
	}
	if _, err := availability.NewHTTPChecker("ftp://example.com"); err == nil {
		t.Fatal("expected error for non-http url")
	}
}

func TestSQLChecker(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := availability.EnsureDirectory(ctx, db, []string{"bob", "Dave"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	checker, err := availability.NewSQLChecker(db, "usernames", "username")
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}

	got := map[string]bool{}
	for _, candidate := range []string{"bob", "dave", "erin"} {
		ok, err := checker.CheckAvailability(ctx, candidate)
		if err != nil {
			t.Fatalf("check %s: %v", candidate, err)
		}
		got[candidate] = ok
	}
	want := map[string]bool{"bob": false, "dave": false, "erin": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}

	if _, err := availability.NewSQLChecker(db, "usernames; DROP TABLE x", "username"); err == nil {
		t.Fatal("expected identifier validation error")
	}
}

func TestCachedDedupesAndRemembers(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	slow := availability.CheckerFunc(func(_ context.Context, candidate string) (bool, error) {
		calls.Add(1)
		<-release
		return candidate != "bob", nil
	})
	cached := availability.NewCached(slow, 8, time.Minute)

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = cached.CheckAvailability(context.Background(), "bob")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if diff := cmp.Diff([]bool{false, false, false, false}, results); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if _, err := cached.CheckAvailability(context.Background(), "BOB"); err != nil {
		t.Fatalf("cached check: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	cached.Forget("bob")
	_, _ = cached.CheckAvailability(context.Background(), "bob")
	if calls.Load() != 2 {
		t.Fatalf("calls after forget = %d, want 2", calls.Load())
	}
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	var calls atomic.Int32
	flaky := availability.CheckerFunc(func(context.Context, string) (bool, error) {
		if calls.Add(1) == 1 {
			return false, availability.ErrUnavailable
		}
		return true, nil
	})
	cached := availability.NewCached(flaky, 8, time.Minute)

	if _, err := cached.CheckAvailability(context.Background(), "x"); !errors.Is(err, availability.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	ok, err := cached.CheckAvailability(context.Background(), "x")
	if err != nil || !ok {
		t.Fatalf("second check = %v, %v", ok, err)
	}
}
