package middleware

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/metrics"
	auth "tabpool-backend/storage/auth"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	callerKey
	resolvedKeyKey
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderAPIKey    = "X-API-Key"
	HeaderWallet    = "X-Wallet"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"error":   code,
			"message": message,
			"code":    status,
		},
	})
}

// RequestID tags every request with an id, reusing a well-formed inbound one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestIDFrom returns the id assigned by RequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CORS middleware
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Wallet, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Logging writes one structured line per request and feeds the HTTP metrics.
func Logging(logger *zap.SugaredLogger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w}

			next.ServeHTTP(wrapped, r)

			status := wrapped.status()
			elapsed := time.Since(start)
			route := routePattern(r)
			if m != nil {
				m.ObserveHTTP(r.Method, route, status, elapsed)
			}
			fields := []interface{}{
				"request_id", RequestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
			}
			if caller, ok := CallerFrom(r.Context()); ok {
				fields = append(fields, "actor", caller)
			}
			if status >= http.StatusInternalServerError {
				logger.Warnw("request failed", fields...)
				return
			}
			logger.Infow("request", fields...)
		})
	}
}

// routePattern keeps metric labels bounded by using the matched chi route.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Recovery middleware
func Recovery(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Errorw("panic recovered",
						"request_id", RequestIDFrom(r.Context()),
						"path", r.URL.Path,
						"panic", err,
						"stack", zap.StackSkip("", 2).String)
					writeError(w, http.StatusInternalServerError, "internal_server_error", "Internal server error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout middleware
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tracked := &timeoutWriter{ResponseWriter: w}
			done := make(chan struct{})
			panicked := make(chan interface{}, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
					close(done)
				}()
				next.ServeHTTP(tracked, r.WithContext(ctx))
			}()

			select {
			case <-done:
				select {
				case p := <-panicked:
					// Re-raise on the serving goroutine so Recovery sees it.
					panic(p)
				default:
				}
			case <-ctx.Done():
			}
			if ctx.Err() == nil {
				return
			}

			tracked.mu.Lock()
			defer tracked.mu.Unlock()
			// Only write the error if the handler has not started a response.
			if !tracked.committed {
				writeError(w, http.StatusGatewayTimeout, "request_timeout", "Request timed out")
			}
			tracked.timedOut = true
		})
	}
}

type timeoutWriter struct {
	http.ResponseWriter
	mu        sync.Mutex
	committed bool
	timedOut  bool
}

func (tw *timeoutWriter) WriteHeader(statusCode int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.committed {
		return
	}
	tw.committed = true
	tw.ResponseWriter.WriteHeader(statusCode)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.committed = true
	return tw.ResponseWriter.Write(b)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode != 0 {
		// Headers already written, ignore superfluous calls
		return
	}
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (rw *responseWriter) status() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

func apiKeyFrom(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return key
	}
	if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(bearer, "Bearer "))
	}
	return ""
}

// WithCaller stores the acting wallet in ctx.
func WithCaller(ctx context.Context, wallet core.Identity) context.Context {
	return context.WithValue(ctx, callerKey, wallet)
}

// CallerFrom returns the wallet resolved by APIAuth.
func CallerFrom(ctx context.Context) (core.Identity, bool) {
	id, ok := ctx.Value(callerKey).(core.Identity)
	return id, ok && id != ""
}

// APIAuth resolves the caller wallet. A valid API key always wins. Without
// one, required mode rejects the request; otherwise a well-formed X-Wallet
// header is trusted and requests with neither pass through anonymous.
func APIAuth(validator auth.APIKeyValidator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := apiKeyFrom(r); apiKey != "" {
				rec, ok := resolvedKeyFrom(r.Context())
				if !ok && validator != nil {
					rec, ok = validator.Lookup(r.Context(), apiKey)
				}
				if !ok {
					writeError(w, http.StatusForbidden, "api_key_invalid", "Invalid API key")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), rec.Wallet)))
				return
			}

			if required {
				writeError(w, http.StatusUnauthorized, "api_key_required", "API key required")
				return
			}

			if raw := r.Header.Get(HeaderWallet); raw != "" {
				wallet, err := core.ParseIdentity(raw)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_wallet", "X-Wallet is not a valid identity")
					return
				}
				r = r.WithContext(WithCaller(r.Context(), wallet))
			}
			next.ServeHTTP(w, r)
		})
	}
}
