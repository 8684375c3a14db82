package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ErenAtasun/MaskHeist/internal/hub"
	"github.com/ErenAtasun/MaskHeist/internal/store"
	"github.com/ErenAtasun/MaskHeist/internal/ws"
)

type Deps struct {
	Hub     *hub.Hub
	History History
	WS      ws.Options
	Log     *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.History == nil {
		d.History = store.Nop{}
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// The websocket route stays outside the request logger, which would
	// otherwise log once per connection lifetime.
	r.Get("/ws", ws.Handler(d.Hub, d.WS))
	r.Get("/healthz", Healthz)

	r.Group(func(r chi.Router) {
		r.Use(requestLogger(d.Log))
		r.Post("/sessions", CreateSession(d.Hub, d.Log))
		r.Get("/sessions", ListSessions(d.Hub))
		r.Route("/sessions/{code}", func(r chi.Router) {
			r.Get("/", GetSession(d.Hub))
			r.Delete("/", DeleteSession(d.Hub))
			r.Get("/history", SessionHistory(d.History, d.Log))
		})
	})
	return r
}
