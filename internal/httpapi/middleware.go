package httpapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/heimdall-evaluator/internal/logger"
	"github.com/rafaeljc/heimdall-evaluator/internal/observability"
)

// APIKeyHeader carries the client API key.
const APIKeyHeader = "X-API-Key"

// RequestLogger creates a middleware that injects a request-scoped logger
// into the context and logs the outcome of each request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Get RequestID set by Chi's RequestID middleware
			reqLogger := base.With(slog.String("request_id", middleware.GetReqID(r.Context())))
			ctx := logger.WithContext(r.Context(), reqLogger)

			// Wrap the ResponseWriter to capture the status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			// Info for success, Warn for 4xx, Error for 5xx
			level := slog.LevelInfo
			status := ww.Status()
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}

			reqLogger.Log(ctx, level, "HTTP request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_ip", r.RemoteAddr),
			)
		})
	}
}

// Metrics records request count and latency labelled by route pattern,
// keeping path cardinality bounded.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		observability.APIReqDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		observability.APIReqTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}

// APIKeyAuth rejects requests whose X-API-Key does not hash to one of
// hashes. Every digest is compared in constant time, with no early exit.
func APIKeyAuth(hashes ...string) func(http.Handler) http.Handler {
	accepted := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		digest, err := hex.DecodeString(h)
		if err != nil || len(digest) != sha256.Size {
			panic("httpapi: API key hashes must be hex-encoded SHA-256 digests")
		}
		accepted = append(accepted, digest)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			actual := sha256.Sum256([]byte(key))

			match := 0
			for _, digest := range accepted {
				match |= subtle.ConstantTimeCompare(digest, actual[:])
			}

			if key == "" || match != 1 {
				logger.FromContext(r.Context()).Warn("rejected request with invalid API key")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, ErrorResponse{
					Code:    codeUnauthorized,
					Message: "Missing or invalid API key",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
