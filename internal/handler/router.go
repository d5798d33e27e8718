package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mirror-labs/mirror/backend/internal/handler/chat"
	"github.com/mirror-labs/mirror/backend/internal/handler/dashboard"
	middlewarePkg "github.com/mirror-labs/mirror/backend/internal/middleware"
	"github.com/mirror-labs/mirror/backend/internal/service/recommend"
	"github.com/mirror-labs/mirror/backend/internal/service/session"
	"github.com/mirror-labs/mirror/backend/internal/store"
	"github.com/mirror-labs/mirror/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. detectedMood is the
// process-level emotion label supplied at startup.
func NewRouter(history *store.History, registry *session.Registry, gen chat.Generator, detectedMood string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(history, registry, gen, detectedMood)
	dashboardHandler := dashboard.New(history)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		dashboardHandler.RegisterRoutes(api)

		api.Get("/playlist", func(w http.ResponseWriter, r *http.Request) {
			mood := r.URL.Query().Get("mood")
			if mood == "" {
				mood = detectedMood
			}
			utils.RespondJSON(w, http.StatusOK, map[string]string{
				"mood":     mood,
				"playlist": recommend.PlaylistFor(mood),
			})
		})
	})

	return r
}
