// internal/web/middleware.go
package web

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// requestLogger tags every request with an id, echoes it back on the
// X-Request-ID response header so clients and log lines correlate, and logs
// method, path and duration. An id supplied by the caller is kept.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s (%s)", id, r.Method, r.URL.Path, time.Since(start))
	})
}

// throttle rejects state-changing requests once the shared rate limit is
// exhausted.
func (h *Handler) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
