package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rohits-web03/collab/internal/api"
	"github.com/rohits-web03/collab/internal/api/handlers"
	"github.com/rohits-web03/collab/internal/api/middleware"
	"github.com/rohits-web03/collab/internal/api/services"
	"github.com/rohits-web03/collab/internal/config"
	"github.com/rohits-web03/collab/internal/identity"
	"github.com/rohits-web03/collab/internal/logger"
	"github.com/rohits-web03/collab/internal/metrics"
	"github.com/rohits-web03/collab/internal/repositories"
	"github.com/rohits-web03/collab/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	db, err := repositories.ConnectDatabase(cfg.DB_URL, log)
	if err != nil {
		return err
	}
	users := repositories.NewUserRepository(db, repositories.WithBcryptCost(cfg.BcryptCost))

	var nonces repositories.NonceStore = repositories.NewMemoryNonceStore()
	if cfg.RedisURL != "" {
		client, err := repositories.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		nonces = repositories.NewRedisNonceStore(client)
	} else {
		log.Warn("REDIS_URL not set, oauth state nonces are kept in memory")
	}

	var avatars handlers.AvatarStore
	if cfg.R2.Enabled() {
		store, err := repositories.NewR2Store(repositories.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			Region:          cfg.R2.Region,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		})
		if err != nil {
			log.Warn("avatar uploads disabled", "error", err)
		} else {
			avatars = store
		}
	}

	var google handlers.IdentityProvider
	if cfg.Google.Enabled() {
		provider, err := services.NewGoogleProvider(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.GoogleCallbackURL())
		if err != nil {
			return err
		}
		google = provider
	} else {
		log.Warn("google sign-in disabled, GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET missing")
	}

	issuer, err := session.NewIssuer(cfg.JWTSecret, session.WithTTL(cfg.SessionTTL))
	if err != nil {
		return err
	}
	engine := identity.NewEngine(users,
		identity.WithMaxUsernameAttempts(cfg.MaxUsernameAttempts),
		identity.WithLogger(log),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gate := middleware.NewGate(issuer, users, log, m)
	secure := cfg.IsProduction()

	router := api.SetupRouter(api.RouterDeps{
		Auth: handlers.NewAuthHandler(handlers.AuthHandlerConfig{
			Engine:        engine,
			Issuer:        issuer,
			Gate:          gate,
			Google:        google,
			Nonces:        nonces,
			Metrics:       m,
			Logger:        log,
			StateKey:      cfg.JWTSecret,
			FrontendURL:   cfg.FrontendURL,
			SecureCookies: secure,
		}),
		Users:    handlers.NewUsersHandler(engine, issuer, users, avatars, m, log, secure),
		Gate:     gate,
		Gatherer: reg,
		Cors:     cfg.CorsConfig(),
		Logger:   log,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
		// Timeouts prevent resource exhaustion from slow clients
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting collab server", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on port %s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
