package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/aryannaik/reelmatch/internal/logging"
	"github.com/aryannaik/reelmatch/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// RequestIDWithLogging takes X-Request-ID from the request or generates
// one, echoes it on the response and stores it, with a fresh correlation
// ID, in the logging context.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Instrument records Prometheus request metrics and writes one access log
// line per request. The route label is the chi pattern, not the raw path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		d := time.Since(start)
		metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(status), d)

		logging.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("took", d).
			Str("remote", r.RemoteAddr).
			Msg("Request handled")
	})
}
