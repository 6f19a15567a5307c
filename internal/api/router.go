package api

import (
	"net/http"

	"leetclash/internal/api/handler"
	"leetclash/internal/api/middleware"
	"leetclash/internal/app/service"
	"leetclash/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	problemService *service.ProblemService,
	soloService *service.SoloService,
	matchService *service.MatchService,
	resultService *service.ResultService,
	host handler.SessionHost,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger) // Chi's logger
	r.Use(chiMiddleware.Recoverer)

	// Puts verified claims from "Authorization: Bearer T" in the context.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		// Match routes set their own timeout so snapshot streams stay open.
		matchHandler := handler.NewMatchHandler(matchService, host)
		v1.Route("/matches", matchHandler.RegisterRoutes)

		v1.Group(func(api chi.Router) {
			api.Use(chiMiddleware.Timeout(middleware.RequestTimeout))

			authHandler := handler.NewAuthHandler(authService)
			api.Route("/auth", authHandler.RegisterRoutes)

			soloHandler := handler.NewSoloHandler(soloService)
			api.Route("/solo", soloHandler.RegisterRoutes)

			problemHandler := handler.NewProblemHandler(problemService)
			api.Route("/problems", problemHandler.RegisterRoutes)

			leaderboardHandler := handler.NewLeaderboardHandler(resultService)
			api.Route("/leaderboard", leaderboardHandler.RegisterRoutes)
		})
	})

	return r
}
