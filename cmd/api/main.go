package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicedash/internal/agents"
	"voicedash/internal/assistant"
	"voicedash/internal/auth"
	"voicedash/internal/callsession"
	"voicedash/internal/config"
	"voicedash/internal/httpapi"
	"voicedash/internal/livecall"
	"voicedash/internal/onboarding"
	"voicedash/internal/transcripts"
	"voicedash/internal/users"
	"voicedash/internal/vapi"
	"voicedash/migrations"
	"voicedash/pkg/logger"
	"voicedash/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := utils.RunMigrations(rootCtx, db, migrations.FS, "."); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// The voice provider is optional: without a key the dashboard still
	// runs, but agent provisioning and live calls report unavailable.
	var providerAPI assistant.ProviderAPI
	var sessions livecall.SessionFactory
	var artifacts callsession.ArtifactFetcher
	apiClient, err := assistant.NewClient(cfg.Voice)
	switch {
	case err == nil:
		providerAPI = apiClient
		factory, ferr := vapi.NewFactory(apiClient, log)
		if ferr != nil {
			log.Error("call session factory init failed", "err", ferr)
			os.Exit(1)
		}
		sessions = factory
		artifacts = factory
	case errors.Is(err, assistant.ErrNotConfigured):
		log.Warn("voice provider not configured; provisioning and calls disabled")
	default:
		log.Error("voice provider init failed", "err", err)
		os.Exit(1)
	}

	userSvc := users.NewService(users.NewPostgresRepo(db))
	assistantSvc := assistant.NewService(providerAPI, log)
	agentSvc := agents.NewService(agents.NewPostgresRepo(db), assistantSvc, log)
	transcriptSvc := transcripts.NewService(transcripts.NewPostgresRepo(db))
	onboardingSvc := onboarding.NewService(onboarding.NewPostgresRepo(db), userSvc)

	h := httpapi.Handlers{
		Users:       userSvc,
		Agents:      agentSvc,
		Transcripts: transcriptSvc,
		Onboarding:  onboardingSvc,
		Auth:        authManager,
		Refresh:     auth.NewRefreshStore(rdb),
		Voice:       cfg.Voice,
	}
	limiter := livecall.NewRedisLimiter(rdb, 1, 0)
	live := livecall.NewHandler(agentSvc, transcriptSvc, sessions, artifacts, limiter, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager), live)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
