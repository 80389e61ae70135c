package web

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"podvoice/internal/logging"
	"podvoice/internal/services"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware tags every request with a request id, echoes it in the
// response and carries it in the request context for log records.
func requestIDMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)
		started := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, logger).Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeErrorBody(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// rateLimitMiddleware applies limiter to /api routes. A nil limiter disables
// limiting. trustForwarded selects X-Forwarded-For as the client key.
func rateLimitMiddleware(limiter *rateLimiter, trustForwarded bool, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		decision := limiter.allow(clientIP(r, trustForwarded))
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(decision.limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.reset.UnixMilli(), 10))
		if !decision.allowed {
			h.Set("Retry-After", strconv.Itoa(decision.retryAfterSeconds()))
			writeErrorBody(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeErrorBody(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// clientIP returns the connection's remote host. With trustForwarded set the
// first X-Forwarded-For hop wins.
func clientIP(r *http.Request, trustForwarded bool) string {
	if fwd := r.Header.Get("X-Forwarded-For"); trustForwarded && fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
