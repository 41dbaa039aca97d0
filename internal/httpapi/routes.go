package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mwhited/typerace-backend/internal/coordinator"
	"github.com/mwhited/typerace-backend/internal/ws"
)

func SetupRoutes(c *coordinator.Coordinator, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(c, log))

	r.Route("/api/races", func(r chi.Router) {
		r.Use(RequireIdentity)
		r.Post("/", CreateRace(c))
		r.Post("/practice", CreatePracticeRace(c))
		r.Get("/available", GetAvailableRaces(c))
		r.Get("/{raceID}", GetRace(c))
		r.Post("/{raceID}/join", JoinRace(c))
		r.Post("/{raceID}/start", StartRace(c))
		r.Get("/{raceID}/results", GetResults(c))
	})
	return r
}
