package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rufatasadov/sober-driver-backend/internal/http/handlers"
)

// Deps are the pieces mounted by New. Nil middlewares and handlers are skipped.
type Deps struct {
	Base    *handlers.Handlers
	Orders  *handlers.OrderHandler
	Drivers *handlers.DriverHandler

	Auth          func(http.Handler) http.Handler
	RateLimit     func(http.Handler) http.Handler
	Observability func(http.Handler) http.Handler

	WS      http.Handler
	Metrics http.Handler
	Pprof   http.Handler

	RequestTimeout time.Duration
}

// New constructs the chi router: ambient routes, the authenticated
// /api/v1 group, and the long-lived /ws endpoint outside the request timeout.
func New(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 5 * time.Second
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Observability != nil {
		r.Use(d.Observability)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.RequestTimeout))

		r.Get("/ping", d.Base.Ping)
		r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
		r.Get("/readyz", d.Base.Ready)
		if d.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", d.Metrics)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if d.Auth != nil {
				r.Use(d.Auth)
			}
			if d.RateLimit != nil {
				r.Use(d.RateLimit)
			}

			if d.Orders != nil {
				r.Route("/orders", func(r chi.Router) {
					r.Post("/", d.Orders.Create)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", d.Orders.Get)
						r.Post("/accept", d.Orders.Accept)
						r.Post("/reject", d.Orders.Reject)
						r.Post("/assign", d.Orders.Assign)
						r.Patch("/status", d.Orders.UpdateStatus)
						r.Post("/cancel", d.Orders.Cancel)
						r.Post("/rating", d.Orders.Rate)
						r.Post("/broadcast", d.Orders.Broadcast)
					})
				})
			}
			if d.Drivers != nil {
				r.Route("/drivers", func(r chi.Router) {
					r.Get("/nearby", d.Drivers.Nearby)
					r.Get("/nearby-orders", d.Drivers.NearbyOrders)
					r.Patch("/me/location", d.Drivers.UpdateLocation)
					r.Patch("/me/status", d.Drivers.UpdateStatus)
					r.Get("/me/profile", d.Drivers.Profile)
					r.Put("/me/profile", d.Drivers.UpdateProfile)
				})
			}
		})
	})

	if d.WS != nil {
		r.Method(http.MethodGet, "/ws", d.WS)
	}
	if d.Pprof != nil {
		r.Mount("/debug", d.Pprof)
	}

	r.NotFound(http.HandlerFunc(d.Base.NotFound))
	r.MethodNotAllowed(http.HandlerFunc(d.Base.MethodNotAllowed))
	return r
}
