package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"fleettrack/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
}

func NewRouter(eng *engine.Engine) http.Handler {
	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
	}

	h.ensureDefaultAdmin(eng.DB())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE tracking stream
	r.Get("/events", h.handleTrackingStream)

	// Session
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)

	// Device and public API
	r.Route("/api", func(r chi.Router) {
		r.Post("/location-report", h.apiLocationReport)
		r.Get("/tracking-snapshot", h.apiTrackingSnapshot)
		r.Get("/health", h.apiHealthCheck)
	})

	// Operator API
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Route("/api/assignments", func(r chi.Router) {
			r.Get("/", h.apiListAssignments)
			r.Post("/", h.apiCreateAssignment)
			r.Get("/{ref}", h.apiGetAssignment)
			r.Patch("/{ref}", h.apiUpdateAssignment)
			r.Post("/{ref}/pickup", h.apiMarkPickup)
			r.Post("/{ref}/deliver", h.apiMarkDelivered)
			r.Post("/{ref}/cancel", h.apiCancelAssignment)
		})
		r.Route("/api/trucks", func(r chi.Router) {
			r.Get("/", h.apiListTrucks)
			r.Post("/", h.apiCreateTruck)
			r.Get("/positions", h.apiTruckPositions)
		})
		r.Route("/api/warehouses", func(r chi.Router) {
			r.Get("/", h.apiListWarehouses)
			r.Post("/", h.apiCreateWarehouse)
		})
		r.Route("/api/orders", func(r chi.Router) {
			r.Get("/", h.apiListOrders)
			r.Post("/", h.apiCreateOrder)
		})
		r.Route("/api/device-tokens", func(r chi.Router) {
			r.Get("/", h.apiListDeviceTokens)
			r.Post("/", h.apiCreateDeviceToken)
			r.Post("/{id}/revoke", h.apiRevokeDeviceToken)
		})
	})

	return r
}
