package server

import (
	"net"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/harun/pointlog/internal/observability"
	"github.com/harun/pointlog/internal/tracing"
	"github.com/rs/zerolog"
)

// requestContext seeds the tracing context with the chi request id.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.NewRequestContext(r.Context(), chimiddleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)
			observability.RecordHTTPRequest(r.Method, status, duration)

			reqLogger := tracing.LoggerFromContext(r.Context(), logger)
			event := reqLogger.Info()
			if status >= http.StatusInternalServerError {
				event = reqLogger.Error()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", duration).
				Str("ip", clientIP(r)).
				Msg("HTTP request")
		})
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		allowed, retryAfter := s.rateLimiter.Allow(ip)
		if !allowed {
			seconds := int((retryAfter + time.Second - 1) / time.Second)
			logger := tracing.LoggerFromContext(r.Context(), s.logger)
			logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retry_after", seconds).
				Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too Many Requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's remote host. RealIP has already applied
// forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
