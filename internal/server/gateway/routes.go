package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes mounts the stream, the message endpoint and the health check.
func (gs *GatewayServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Cache-Control", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get(gs.opts.StreamPath, gs.HandleStream)
	r.Post(gs.opts.MessagePath, gs.HandleMessage)
	r.Get("/health", gs.HandleHealth)
	return r
}

func (gs *GatewayServer) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": gs.registry.Len(),
	})
}
