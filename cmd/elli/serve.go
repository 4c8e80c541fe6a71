package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	elli "github.com/set-night/elli"
	"github.com/set-night/elli/internal/chat"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/handler"
	"github.com/set-night/elli/internal/middleware"
	"github.com/set-night/elli/internal/repository"
	"github.com/set-night/elli/internal/repository/sqlc"
	"github.com/set-night/elli/internal/service"
	"github.com/set-night/elli/internal/telegram"
	"github.com/set-night/elli/internal/usage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the usage worker and housekeeping",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on start")
	return cmd
}

func serve(ctx context.Context, skipMigrations bool) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg.SlogLevel())
	if cfg.SlogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	// Run migrations
	if !skipMigrations {
		migrationsFS, err := fs.Sub(elli.MigrationsFS, "migrations")
		if err != nil {
			return fmt.Errorf("load embedded migrations: %w", err)
		}
		if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
			return err
		}
	}

	queries := sqlc.New(pool)

	// Initialize services
	sessionService := service.NewSessionService(pool, queries)
	usageService := service.NewUsageService(pool, queries)
	profileService := service.NewProfileService(pool, queries)
	gateway := service.NewGatewayService(cfg.GatewayURL, cfg.GatewayAPIKey)
	documentService := service.NewDocumentService(pool, queries, gateway)

	meter := usage.NewMeter(usageService)
	pipeline := chat.NewPipeline(sessionService, gateway, meter, cfg.HardQuota)

	g, gctx := errgroup.WithContext(ctx)

	// Ops notifications
	var (
		alerter  usage.Alerter
		notifier middleware.RegistrationNotifier
	)
	if cfg.OpsLoggingEnabled() {
		ops, err := telegram.NewOpsLogger(cfg)
		if err != nil {
			return err
		}
		alerter, notifier = ops, ops
		g.Go(func() error { return ops.Run(gctx) })
	}

	// HTTP
	router := gin.New()
	router.Use(middleware.Recover(), middleware.Logging(), middleware.CORS(cfg.AllowedOrigins))

	var limiters []gin.HandlerFunc
	if cfg.RateLimitEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		limiters = append(limiters, middleware.RateLimit(rdb, cfg.RateLimitQPS))
	}

	h := handler.New(handler.Deps{
		Sessions:  sessionService,
		Pipeline:  pipeline,
		Meter:     meter,
		Plans:     usageService,
		Documents: documentService,
		Gateway:   gateway,
	})
	h.Register(router, middleware.Auth(cfg.JWTSecret, profileService, notifier), limiters...)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Usage outbox
	worker := usage.NewWorker(usageService, meter, alerter)
	g.Go(func() error { return worker.Run(gctx) })

	// Stale request cleanup
	g.Go(func() error {
		ticker := time.NewTicker(config.StaleRequestCleanup)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := sessionService.CleanupStaleRequests(gctx); err != nil {
					slog.Error("cleanup stale requests", "error", err)
				}
			}
		}
	})

	err = g.Wait()
	slog.Info("server stopped gracefully")
	return err
}
