package apihttp

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mediashare/internal/metrics"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func corsMiddleware(allowed []string, next http.Handler) http.Handler {
	whitelist := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			whitelist[origin] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			_, ok := whitelist[origin]
			if len(whitelist) == 0 || ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Int("bytes", rw.size),
			slog.Int64("durationMs", time.Since(start).Milliseconds()),
			slog.String("clientIP", clientIP(r)),
		}
		if rawQuery := strings.TrimSpace(r.URL.RawQuery); rawQuery != "" {
			attrs = append(attrs, slog.String("query", truncate(rawQuery, 180)))
		}
		if userAgent := strings.TrimSpace(r.UserAgent()); userAgent != "" {
			attrs = append(attrs, slog.String("userAgent", truncate(userAgent, 120)))
		}
		logger.LogAttrs(r.Context(), pickRequestLogLevel(r.URL.Path, rw.status), "http request", attrs...)
	})
}

func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					slog.Any("error", err),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("clientIP", clientIP(r)),
					slog.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		route := normalizeRoute(r.URL.Path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func normalizeRoute(path string) string {
	switch {
	case path == "/metrics", path == "/telegram/webhook", path == "/api/media", path == "/api/others",
		path == "/api/send_file", path == "/api/authorize", path == "/api/user/me", path == "/api/query":
		return path
	case strings.HasPrefix(path, "/api/media/") && strings.Contains(path, "/season/"):
		return "/api/media/:id/season/:n"
	case strings.HasPrefix(path, "/api/media/"):
		return "/api/media/:id"
	case strings.HasPrefix(path, "/api/file/"):
		return "/api/file/:id"
	case strings.HasPrefix(path, "/api/query/"):
		return "/api/query/:id"
	case strings.HasPrefix(path, "/api/genres/"), strings.HasPrefix(path, "/api/stars/"),
		strings.HasPrefix(path, "/api/directors/"):
		return "/api/entity"
	case strings.HasPrefix(path, "/api/admin/ops"):
		return "/api/admin/ops"
	case strings.HasPrefix(path, "/api/admin/"):
		if parts := pathParts(path, "/api/admin/"); len(parts) > 0 {
			return "/api/admin/" + parts[0]
		}
		return "/other"
	default:
		return "/other"
	}
}

func pickRequestLogLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case path == "/telegram/webhook":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		return xrip
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

// rateLimitMiddleware applies a global token-bucket rate limiter.
// Requests that exceed the limit receive HTTP 429.
func rateLimitMiddleware(rps float64, burst int, next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Telegram retries refused webhook deliveries; never drop them here.
		if r.URL.Path == "/metrics" || r.URL.Path == "/telegram/webhook" {
			next.ServeHTTP(w, r)
			return
		}
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userIDKey struct{}

func withUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func userIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey{}).(int64)
	return id
}

// requireUser resolves the bearer header to an authorized user id.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.access == nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", "authentication not configured")
			return
		}
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authorization header missing")
			return
		}
		userID, err := s.access.Authenticate(r.Context(), header)
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		next(w, r.WithContext(withUserID(r.Context(), userID)))
	}
}

// requireOwner admits only the configured owner.
func (s *Server) requireOwner(next http.HandlerFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		if !s.access.IsAdmin(userIDFrom(r.Context())) {
			writeError(w, http.StatusForbidden, "forbidden", "owner access required")
			return
		}
		next(w, r)
	})
}
