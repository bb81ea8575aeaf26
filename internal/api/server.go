// SPDX-License-Identifier: MIT

// Package api serves the daemon's control surface: health and readiness
// probes, Prometheus metrics, run history, a manual trigger for headless
// machines, and the backup reports written to the destination.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apimw "github.com/lifeboat-sh/lifeboat/internal/api/middleware"
	"github.com/lifeboat-sh/lifeboat/internal/config"
	"github.com/lifeboat-sh/lifeboat/internal/health"
	"github.com/lifeboat-sh/lifeboat/internal/history"
	"github.com/lifeboat-sh/lifeboat/internal/log"
	"github.com/lifeboat-sh/lifeboat/internal/session"
)

// Server is the control API. Construct with New, mount via Handler.
type Server struct {
	holder  *config.Holder
	session *session.Loop
	history *history.Store
	health  *health.Manager
	version string
	logger  zerolog.Logger
	router  chi.Router
}

// Options wires the server's collaborators. History may be nil; the runs
// endpoint then answers with an empty list.
type Options struct {
	Holder  *config.Holder
	Session *session.Loop
	History *history.Store
	Health  *health.Manager
	Version string
	Tracing bool
}

// New builds the server and its route tree.
func New(opts Options) *Server {
	s := &Server{
		holder:  opts.Holder,
		session: opts.Session,
		history: opts.History,
		health:  opts.Health,
		version: opts.Version,
		logger:  log.WithComponent("api"),
	}

	tracing := ""
	if opts.Tracing {
		tracing = "lifeboat-api"
	}
	r := apimw.NewRouter(apimw.StackConfig{
		EnableMetrics:   true,
		TracingService:  tracing,
		EnableLogging:   true,
		EnableRateLimit: true,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/runs", s.handleRuns)
		r.With(apimw.TriggerRateLimit()).Post("/trigger", s.handleTrigger)
		r.With(apimw.TriggerRateLimit()).Post("/cancel", s.handleCancel)
		r.Handle("/reports/*", http.StripPrefix("/api/v1/reports", s.secureFileServer()))
	})

	s.router = r
	return s
}

// Handler returns the mountable HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
