package handlers

import (
	"net/http"

	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := middleware.ClientFrom(c).DashboardStats(c.Request.Context())
	if err != nil {
		upstreamError(c, err, "Failed to load dashboard stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) RecentActivity(c *gin.Context) {
	acts, err := middleware.ClientFrom(c).RecentActivity(c.Request.Context())
	if err != nil {
		upstreamError(c, err, "Failed to load recent activity")
		return
	}
	if acts == nil {
		acts = []domain.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{"activities": acts})
}

// Charts proxies one chart series. metric and period are passed through;
// the admin API applies its own defaults when they are empty.
func (h *Handler) Charts(c *gin.Context) {
	data, err := middleware.ClientFrom(c).Charts(c.Request.Context(), c.Query("metric"), c.Query("period"))
	if err != nil {
		upstreamError(c, err, "Failed to load chart data")
		return
	}
	c.JSON(http.StatusOK, data)
}
