package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/config"
	"magicpic_admin/internal/db"
	httpServer "magicpic_admin/internal/http"
	"magicpic_admin/internal/http/handlers"
	"magicpic_admin/internal/http/middleware"
	"magicpic_admin/internal/logger"
	"magicpic_admin/internal/service"
	"magicpic_admin/internal/session"
	"magicpic_admin/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
	}
	middleware.InitRedisRateLimiter(rdb)

	var dbPool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		dbPool = db.Connect(context.Background(), cfg.DatabaseURL)
		defer dbPool.Close()
	} else {
		logger.Info("DATABASE_URL not set, audit trail disabled")
	}

	// the base client never holds a token; each request binds its own session
	api := adminapi.New(cfg.AdminAPIURL, session.New(session.NewMemoryStore()),
		adminapi.WithTimeout(cfg.RequestTimeout),
		adminapi.WithRateLimit(cfg.APIRateLimit, cfg.APIRateBurst),
	)

	hub := ws.NewHub()
	audit := service.NewAuditService(dbPool)
	desk := service.NewGrantDesk(audit, func(adminKey string) service.UI { return hub.UI(adminKey) })
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	formIdle := cfg.GrantFormIdle
	if formIdle <= 0 {
		formIdle = 30 * time.Minute
	}
	go desk.Run(sweepCtx, time.Minute, formIdle)

	checks := []handlers.Check{}
	if rdb != nil {
		checks = append(checks, handlers.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
	}
	if dbPool != nil {
		checks = append(checks, handlers.Check{Name: "database", Fn: dbPool.Ping})
	}
	health := handlers.NewHealthHandler(cfg.Version, handlers.Check{Name: "admin_api", Fn: api.Ping}, checks...)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics(), middleware.AccessLog())

	httpServer.RegisterRoutes(r, cfg, httpServer.Deps{
		API:    api,
		Hub:    hub,
		Desk:   desk,
		Audit:  audit,
		Health: health,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "admin_api", cfg.AdminAPIURL, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
