// Package server exposes the recommendation service over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryannaik/reelmatch/internal/config"
	"github.com/aryannaik/reelmatch/internal/history"
	"github.com/aryannaik/reelmatch/internal/recommend"
	"github.com/aryannaik/reelmatch/internal/similarity"
)

// Recommender is what the handlers need from the recommend service.
type Recommender interface {
	ByTitle(ctx context.Context, title string, k int) ([]similarity.Result, error)
	ByID(ctx context.Context, id, k int) ([]similarity.Result, error)
	ForUser(ctx context.Context, user string, targetCount, perTitleK int) (*history.Run, error)
	Status() recommend.Status
}

// New returns an http.Server for cfg. It is not started.
func New(cfg config.ServerConfig, limits config.RecommendConfig, svc Recommender) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           NewRouter(cfg, limits, svc),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(cfg config.ServerConfig, limits config.RecommendConfig, svc Recommender) http.Handler {
	h := NewHandlers(svc, limits)

	r := chi.NewRouter()
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(Instrument)
		if cfg.RateLimit > 0 {
			r.Use(httprate.Limit(cfg.RateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				}),
			))
		}
		if cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		}

		r.Get("/recommendations", h.HandleRecommendations)
		r.Get("/movies/{id}/similar", h.HandleSimilar)
		r.Get("/letterboxd", h.HandleLetterboxd)
		r.Get("/status", h.HandleStatus)
	})

	return r
}
