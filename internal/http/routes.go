package http

import (
	"time"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/config"
	"magicpic_admin/internal/http/handlers"
	"magicpic_admin/internal/http/middleware"
	"magicpic_admin/internal/service"
	"magicpic_admin/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the routes need.
type Deps struct {
	API    *adminapi.Client
	Hub    *ws.Hub
	Desk   *service.GrantDesk
	Audit  *service.AuditService
	Health *handlers.HealthHandler
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, d Deps) {
	h := handlers.NewHandler(d.API, d.Desk, d.Audit)

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	loginWindow := cfg.LoginRateWindow
	if loginWindow <= 0 {
		loginWindow = time.Minute
	}
	v1.POST("/auth/login", middleware.RedisRateLimit("login", cfg.LoginRateLimit, loginWindow), h.Login)

	grantLimit, grantWindow := cfg.GrantRateLimit, cfg.GrantRateWindow
	if grantLimit <= 0 {
		grantLimit = 30
	}
	if grantWindow <= 0 {
		grantWindow = time.Minute
	}

	authed := v1.Group("")
	authed.Use(middleware.Session(d.API))
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/me", h.Me)

	authed.GET("/users/search", h.SearchUsers)

	// form state is only touched once the upstream has accepted the token
	grant := authed.Group("/credits/grant", middleware.Verified(30*time.Second))
	grant.GET("", h.GetGrantForm)
	grant.POST("", middleware.AdminRateLimit("grant", grantLimit, grantWindow), h.GrantCredits)
	authed.GET("/credits/transactions", h.ListTransactions)
	authed.GET("/credits/stats", h.CreditStats)

	authed.GET("/dashboard/stats", h.DashboardStats)
	authed.GET("/dashboard/activity", h.RecentActivity)
	authed.GET("/dashboard/charts", h.Charts)

	// live view of the credits pages
	r.GET("/ws/credits", ws.HandleCredits(d.Hub, d.API, cfg.AllowedOrigins, middleware.AdminKey))
}
