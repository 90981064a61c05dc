package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/thegovlab/reboot-chat/backend/internal/config"
	"github.com/thegovlab/reboot-chat/backend/internal/handler/chat"
	"github.com/thegovlab/reboot-chat/backend/internal/handler/search"
	"github.com/thegovlab/reboot-chat/backend/internal/metrics"
	middlewarePkg "github.com/thegovlab/reboot-chat/backend/internal/middleware"
	"github.com/thegovlab/reboot-chat/backend/internal/model/document"
	chatService "github.com/thegovlab/reboot-chat/backend/internal/service/chat"
	searchService "github.com/thegovlab/reboot-chat/backend/internal/service/search"
	"github.com/thegovlab/reboot-chat/backend/pkg/utils"
)

// Dependencies groups what the router hands to its handlers. ChatService is
// nil when no model is configured.
type Dependencies struct {
	Documents     document.Store
	SearchService *searchService.Service
	ChatService   *chatService.Service
	Server        config.ServerConfig
	RateLimit     config.RateLimitConfig
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.Server.AllowedOrigins))

	chatHandler := chat.New(deps.ChatService)
	searchHandler := search.New(deps.Documents, deps.SearchService)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status": "ok",
				"ai":     deps.ChatService != nil,
			})
		})

		api.Group(func(limited chi.Router) {
			limited.Use(middlewarePkg.RateLimit(deps.RateLimit.RPS, deps.RateLimit.Burst))
			chatHandler.RegisterRoutes(limited)
			searchHandler.RegisterRoutes(limited)
		})
	})

	r.Handle("/metrics", metrics.Handler())

	return r
}
