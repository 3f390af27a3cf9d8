package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"student-records/internal/httputil"
)

const rateLimitMessage = "Too many requests from this IP, please try again later."

// Store counts hits per key within fixed windows.
type Store interface {
	// Increment records a hit for key and returns the hit count in the current
	// window and the time the window resets.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

type RateLimitOptions struct {
	Max    int
	Window time.Duration
	Store  Store
	Skip   func(r *http.Request) bool
	Logger *slog.Logger
}

// RateLimit limits each client address to Max requests per Window. Requests
// matched by Skip are not counted. Store failures let the request through.
func RateLimit(opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Skip != nil && opts.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			count, resetAt, err := opts.Store.Increment(r.Context(), clientKey(r), opts.Window)
			if err != nil {
				opts.Logger.WarnContext(r.Context(), "rate limit store unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(opts.Max) - count
			if remaining < 0 {
				remaining = 0
			}
			resetSeconds := int64(time.Until(resetAt).Round(time.Second) / time.Second)
			if resetSeconds < 0 {
				resetSeconds = 0
			}

			w.Header().Set("RateLimit-Limit", strconv.Itoa(opts.Max))
			w.Header().Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("RateLimit-Reset", strconv.FormatInt(resetSeconds, 10))

			if count > int64(opts.Max) {
				w.Header().Set("Retry-After", strconv.FormatInt(resetSeconds, 10))
				httputil.RespondWithError(w, http.StatusTooManyRequests, rateLimitMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the remote IP without port. ClientIP runs earlier and has
// already resolved RemoteAddr through the trusted proxies.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryStore keeps counters in process memory. Expired windows are dropped
// lazily on access and by a periodic sweep.
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*memoryWindow
	now       func() time.Time
	lastSweep time.Time
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > window {
		for k, w := range s.windows {
			if !now.Before(w.resetAt) {
				delete(s.windows, k)
			}
		}
		s.lastSweep = now
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}
