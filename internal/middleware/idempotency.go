package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Strob0t/tasktimer/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyBody   = 1 << 20 // 1 MB
)

// idempotencyEntry stores a cached HTTP response.
type idempotencyEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that replays the stored response of a
// mutating request carrying an Idempotency-Key header. Keys are scoped to
// method and path. Server errors are not stored, so the client may retry them.
// A duplicate arriving while the first request is still in flight gets 409.
func Idempotency(c cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	var (
		mu       sync.Mutex
		inFlight = make(map[string]struct{})
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(headerIdempotencyKey)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := idempotencyKey(r.Method, r.URL.Path, header)
			ctx := r.Context()

			if replayCached(w, r, c, key, header) {
				return
			}

			mu.Lock()
			if _, busy := inFlight[key]; busy {
				mu.Unlock()
				writeConflict(w)
				return
			}
			inFlight[key] = struct{}{}
			mu.Unlock()
			defer func() {
				mu.Lock()
				delete(inFlight, key)
				mu.Unlock()
			}()

			// The first request may have stored its response between the
			// lookup above and the claim.
			if replayCached(w, r, c, key, header) {
				return
			}

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				return
			}
			data, err := json.Marshal(idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    w.Header().Clone(),
				Body:       rec.body.Bytes(),
			})
			if err != nil {
				return
			}
			if err := c.Set(ctx, key, data, ttl); err != nil {
				slog.WarnContext(ctx, "idempotency: failed to store response", "key", header, "error", err)
			}
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func idempotencyKey(method, path, key string) string {
	sum := sha256.Sum256([]byte(method + " " + path + "\x00" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// replayCached writes the stored response for key and reports whether there
// was one.
func replayCached(w http.ResponseWriter, r *http.Request, c cache.Cache, key, header string) bool {
	ctx := r.Context()
	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "idempotency: cache lookup failed", "error", err)
	}
	if !ok {
		return false
	}
	var cached idempotencyEntry
	if err := json.Unmarshal(raw, &cached); err != nil {
		slog.WarnContext(ctx, "idempotency: corrupt cache entry", "key", header)
		return false
	}
	replay(w, &cached)
	return true
}

func writeConflict(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusConflict)
	_, _ = w.Write([]byte(`{"error":"request with this Idempotency-Key is in progress"}` + "\n"))
}

func replay(w http.ResponseWriter, e *idempotencyEntry) {
	for k, vals := range e.Headers {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(headerReplayed, "true")
	w.WriteHeader(e.StatusCode)
	_, _ = w.Write(e.Body)
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	body        *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
