package handlers

import (
	"net/http"

	"magicpic_admin/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// Me checks the session against the upstream and returns the admin profile.
func (h *Handler) Me(c *gin.Context) {
	admin, err := middleware.ClientFrom(c).Me(c.Request.Context())
	if err != nil {
		// a rejected session check means the dashboard must log in again
		middleware.Unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": admin})
}
