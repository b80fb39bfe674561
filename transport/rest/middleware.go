package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

type requestIDKey struct{}

// requestID tags every request with an id and logs its start and completion.
func requestID(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(headerRequestID)
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set(headerRequestID, id)

			log := logger.With("requestID", id, "httpMethod", r.Method, "path", r.URL.Path)
			log.Debug("request started", "remoteAddr", r.RemoteAddr)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

			log.Info("request completed", "status", ww.Status(), "duration", time.Since(start))
		})
	}
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
