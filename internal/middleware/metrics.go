package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestObserver records the latency of one HTTP request.
// *metrics.Metrics satisfies it.
type RequestObserver interface {
	ObserveRequest(method, route, status string, seconds float64)
}

// NewMetricsHandler returns a middleware that reports every request to obs,
// labelled by the chi route pattern ("/trips/{ref}") rather than the raw path
// so ids and codes do not explode the label cardinality.
func NewMetricsHandler(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			obs.ObserveRequest(r.Method, routePattern(r), strconv.Itoa(ww.Status()), time.Since(start).Seconds())
		})
	}
}

// routePattern returns the matched chi pattern, or "unmatched" for 404s.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
