package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/azure-ai-gateway/services/telemetry"
)

// RequestTelemetry reports every request to Application Insights. When
// telemetry is disabled the tracker is a no-op and the middleware only adds
// the response wrapper.
func RequestTelemetry(tracker *telemetry.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			tracker.TrackRequest(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}
