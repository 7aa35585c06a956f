package middleware

import (
	"net/http"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/logging"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

// Logger tags the request context with a request id and a child logger, then
// logs method, path, status and duration once the handler returns.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, requestID := logging.WithRequestID(r.Context(), r.Header.Get(RequestIDHeader))
		logger := log.With().Str("request_id", requestID).Logger()
		ctx = logger.WithContext(ctx)
		w.Header().Set(RequestIDHeader, requestID)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(ctx))

		event := logger.Info()
		if ww.status >= http.StatusInternalServerError {
			event = logger.Error()
		} else if ww.status >= http.StatusBadRequest {
			event = logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
