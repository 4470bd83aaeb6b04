// Package httptransport assembles the HTTP API. Handlers stay thin; business
// logic lives in the domain services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bidhub/internal/platform/middleware"
)

// RouteRegistrar is implemented by each domain handler package.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func() error

// NewRouter wires the shared middleware stack, operational endpoints, and
// every domain handler onto one chi router.
func NewRouter(logger *slog.Logger, health HealthChecker, handlers ...RouteRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
