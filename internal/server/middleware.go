package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// LoggerMiddleware logs every request with its status, size and duration.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := zap.L().With(
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("http_method", r.Method),
			zap.String("http_path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Info("server: request finished",
			zap.Int("status_code", ww.Status()),
			zap.Int("bytes_written", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
