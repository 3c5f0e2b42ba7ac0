package statusapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const requestIDHeader = "X-Request-ID"

// RequestIDFromContext returns the request ID stamped by the server, or "".
func RequestIDFromContext(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// stampRequestID reuses a caller-supplied X-Request-ID so clients can
// correlate polls, and mints one otherwise. The ID lives under chi's request
// ID key so middleware.GetReqID sees it too.
func stampRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = requestID()
		}
		w.Header().Set(requestIDHeader, reqID)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logRequests logs each request at DEBUG with the simulated tick it was
// answered in. Status polling is frequent and would drown the simulator's
// INFO lines.
func logRequests(logger *slog.Logger, src Source) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"tick", src.Now(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}
