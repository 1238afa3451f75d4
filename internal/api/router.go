package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "github.com/rohits-web03/collab/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rohits-web03/collab/internal/api/handlers"
	"github.com/rohits-web03/collab/internal/api/middleware"
	"github.com/rs/cors"
)

type RouterDeps struct {
	Auth     *handlers.AuthHandler
	Users    *handlers.UsersHandler
	Gate     *middleware.Gate
	Gatherer prometheus.Gatherer
	Cors     cors.Options
	Logger   *slog.Logger
}

func SetupRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	// ---------- PUBLIC ROUTES ----------
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	mux.HandleFunc("POST /api/v1/auth/login", deps.Auth.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", deps.Auth.Logout)
	mux.HandleFunc("GET /api/v1/auth/status", deps.Auth.Status)
	mux.HandleFunc("GET /api/v1/auth/google", deps.Auth.GoogleLogin)
	mux.HandleFunc("GET /api/v1/auth/google/callback", deps.Auth.GoogleCallback)

	mux.HandleFunc("POST /api/v1/users/signup", deps.Users.Signup)
	mux.HandleFunc("GET /api/v1/users/check-email", deps.Users.CheckEmail)
	mux.HandleFunc("GET /api/v1/users/check-username", deps.Users.CheckUsername)
	mux.HandleFunc("GET /api/v1/users/{username}", deps.Users.Profile)

	// ---------- PROTECTED ROUTES ----------
	mux.Handle("GET /api/v1/users/me", deps.Gate.RequireAuth(http.HandlerFunc(deps.Users.Me)))

	deps.Logger.Info("router initialized")
	handler := cors.New(deps.Cors).Handler(mux)
	handler = middleware.Logger(deps.Logger)(handler)
	return handler
}
