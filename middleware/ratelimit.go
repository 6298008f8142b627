package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	auth "tabpool-backend/storage/auth"
)

// KeyLimiter applies a token bucket per client key and periodically evicts
// idle entries.
type KeyLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*limiterEntry
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyLimiter returns nil when rps or burst is not positive, which
// disables limiting.
func NewKeyLimiter(rps float64, burst int, idleTTL time.Duration) *KeyLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*limiterEntry),
		idleTTL: idleTTL,
	}
}

// Allow reports whether one token can be consumed for the key at now.
func (l *KeyLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func withResolvedKey(ctx context.Context, rec auth.APIKey) context.Context {
	return context.WithValue(ctx, resolvedKeyKey, rec)
}

func resolvedKeyFrom(ctx context.Context) (auth.APIKey, bool) {
	rec, ok := ctx.Value(resolvedKeyKey).(auth.APIKey)
	return rec, ok
}

// RateLimit rejects requests over the per-client budget with 429. A request
// whose API key resolves is charged to the key's wallet, so clients behind
// one address get separate buckets; the resolved record is passed on to
// APIAuth. Everything else, unknown keys included, is charged to the remote
// address.
func RateLimit(limiter *KeyLimiter, keys auth.APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucket := "ip:" + remoteHost(r)
			if key := apiKeyFrom(r); key != "" && keys != nil {
				if rec, ok := keys.Lookup(r.Context(), key); ok {
					bucket = "wallet:" + rec.Wallet.String()
					r = r.WithContext(withResolvedKey(r.Context(), rec))
				}
			}
			if !limiter.Allow(bucket, time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
