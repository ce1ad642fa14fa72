package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"

	"github.com/btouchard/choreboard/internal/board"
	"github.com/btouchard/choreboard/internal/hub"
)

// Pinger reports whether the durable store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Board *board.Processor
	Hub   *hub.Hub

	// VAPIDPublicKey is served to browsers so they can subscribe. Empty
	// disables the endpoint.
	VAPIDPublicKey string

	// MCP is mounted at /mcp when set.
	MCP http.Handler
	// Store is pinged by /health when set.
	Store Pinger

	AllowedOrigins []string
	// RateLimit caps requests per client IP over RateWindow. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
	// Keepalive is the viewer keepalive interval, used to size the
	// WebSocket read deadline.
	Keepalive time.Duration
}

// NewRouter builds the HTTP handler for the board.
func NewRouter(d Deps) http.Handler {
	h := &handler{deps: d, upgrader: newUpgrader(d.AllowedOrigins)}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Route("/weekend-tasks", func(r chi.Router) {
		if d.RateLimit > 0 && d.RateWindow > 0 {
			r.Use(httprate.LimitByIP(d.RateLimit, d.RateWindow))
		}

		r.Get("/", h.listTasks)
		r.Post("/toggle", h.toggleLegacy)
		r.Post("/{id}/toggle", h.toggleTask)
		r.Post("/reset", h.reset)
		r.Post("/subscribe", h.subscribe)
		r.Get("/vapid-public-key", h.vapidPublicKey)
		r.Get("/events", h.events)
		r.Get("/ws", h.socket)
	})

	if d.MCP != nil {
		r.Handle("/mcp", d.MCP)
	}

	return r
}

type handler struct {
	deps     Deps
	upgrader websocket.Upgrader
}
