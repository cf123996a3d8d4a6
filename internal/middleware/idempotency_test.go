package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/tasktimer/internal/middleware"
	"github.com/Strob0t/tasktimer/internal/port/cache"
)

// memCache is an in-memory cache.Cache for testing.
type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	// staleGets makes that many Get calls miss regardless of content.
	staleGets int
}

var _ cache.Cache = (*memCache)(nil)

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	if m.staleGets > 0 {
		m.staleGets--
		return nil, false, nil
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func makeTestHandler(counter *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*counter++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, *counter)
	})
}

func post(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_NoHeader(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Minute)(makeTestHandler(&counter, http.StatusCreated))

	post(handler, "/test", "")
	post(handler, "/test", "")

	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
	if c.len() != 0 {
		t.Fatal("expected nothing cached without a key")
	}
}

func TestIdempotency_SecondRequestReplays(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Minute)(makeTestHandler(&counter, http.StatusCreated))

	rec1 := post(handler, "/api/v1/tasks", "key-2")
	rec2 := post(handler, "/api/v1/tasks", "key-2")

	if counter != 1 {
		t.Fatalf("expected handler called once, got %d", counter)
	}
	if rec2.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec2.Code)
	}
	if rec2.Body.String() != rec1.Body.String() {
		t.Fatalf("expected replayed body %q, got %q", rec1.Body.String(), rec2.Body.String())
	}
	if rec2.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay marker header")
	}
	if rec2.Header().Get("Content-Type") != "application/json" {
		t.Fatal("expected replayed headers")
	}
}

func TestIdempotency_StoresWithTTL(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, 5*time.Minute)(makeTestHandler(&counter, http.StatusOK))

	post(handler, "/test", "key-ttl")

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ttls) != 1 {
		t.Fatalf("expected one stored entry, got %d", len(c.ttls))
	}
	for _, ttl := range c.ttls {
		if ttl != 5*time.Minute {
			t.Fatalf("expected 5m TTL, got %v", ttl)
		}
	}
}

func TestIdempotency_KeyScopedToPath(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Minute)(makeTestHandler(&counter, http.StatusOK))

	post(handler, "/api/v1/tasks/1/start", "same")
	post(handler, "/api/v1/tasks/2/start", "same")

	if counter != 2 {
		t.Fatalf("expected 2 calls for distinct paths, got %d", counter)
	}
}

func TestIdempotency_ServerErrorNotCached(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Minute)(makeTestHandler(&counter, http.StatusInternalServerError))

	post(handler, "/test", "key-5xx")
	post(handler, "/test", "key-5xx")

	if counter != 2 {
		t.Fatalf("expected retry after 5xx to reach the handler, got %d calls", counter)
	}
}

func TestIdempotency_ClientErrorCached(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Minute)(makeTestHandler(&counter, http.StatusBadRequest))

	post(handler, "/test", "key-4xx")
	rec := post(handler, "/test", "key-4xx")

	if counter != 1 || rec.Code != http.StatusBadRequest {
		t.Fatalf("expected cached 400, got %d after %d calls", rec.Code, counter)
	}
}

func TestIdempotency_GETIgnored(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Minute)(makeTestHandler(&counter, http.StatusOK))

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("Idempotency-Key", "key-get")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if counter != 2 {
		t.Fatalf("expected handler called twice, got %d", counter)
	}
}

func TestIdempotency_DifferentKeys(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Minute)(makeTestHandler(&counter, http.StatusOK))

	post(handler, "/test", "key-a")
	post(handler, "/test", "key-b")

	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
}

func TestIdempotency_CacheErrorFallsThrough(t *testing.T) {
	counter := 0
	c := newMemCache()
	c.getErr = errors.New("cache down")
	handler := middleware.Idempotency(c, time.Minute)(makeTestHandler(&counter, http.StatusOK))

	rec := post(handler, "/test", "key-err")

	if counter != 1 || rec.Code != http.StatusOK {
		t.Fatalf("expected request served despite cache error, got %d after %d calls", rec.Code, counter)
	}
}

func TestIdempotency_InFlightDuplicateConflicts(t *testing.T) {
	c := newMemCache()
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := middleware.Idempotency(c, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- post(handler, "/test", "key-busy") }()
	<-entered

	rec := post(handler, "/test", "key-busy")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for in-flight duplicate, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON conflict body, got Content-Type %q", ct)
	}

	close(release)
	if first := <-done; first.Code != http.StatusCreated {
		t.Fatalf("expected first request to finish with 201, got %d", first.Code)
	}
}

func TestIdempotency_DuplicateAfterLookupMissReplays(t *testing.T) {
	counter := 0
	c := newMemCache()
	handler := middleware.Idempotency(c, time.Minute)(makeTestHandler(&counter, http.StatusCreated))

	if first := post(handler, "/test", "key-late"); first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	// The duplicate's first lookup ran before the original stored its
	// response; the claim that follows must still find it.
	c.mu.Lock()
	c.staleGets = 1
	c.mu.Unlock()

	rec := post(handler, "/test", "key-late")
	if counter != 1 {
		t.Fatalf("expected handler to run once, ran %d times", counter)
	}
	if rec.Code != http.StatusCreated || rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed 201, got %d %v", rec.Code, rec.Header())
	}
}
