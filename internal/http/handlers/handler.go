package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/http/middleware"
	"magicpic_admin/internal/service"
	"magicpic_admin/internal/session"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	API   *adminapi.Client
	Desk  *service.GrantDesk
	Audit *service.AuditService
}

func NewHandler(api *adminapi.Client, desk *service.GrantDesk, audit *service.AuditService) *Handler {
	return &Handler{API: api, Desk: desk, Audit: audit}
}

// auditContext attaches the acting admin for audit entries.
func auditContext(c *gin.Context, adminID int64) context.Context {
	return service.WithActor(c.Request.Context(), service.Actor{
		AdminID:   adminID,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}

// adminID is the verified admin's id when the route checked the token,
// else the bearer token's subject, 0 if absent.
func adminID(c *gin.Context) int64 {
	if admin := middleware.AdminFrom(c); admin != nil {
		return admin.ID
	}
	sub, ok := session.Subject(middleware.BearerToken(c))
	if !ok {
		return 0
	}
	id, _ := strconv.ParseInt(sub, 10, 64)
	return id
}

// upstreamError maps an admin API error to a response. Unauthorized
// sends the dashboard to the login page; structured errors keep their
// message; anything else gets fallback.
func upstreamError(c *gin.Context, err error, fallback string) {
	var appErr *adminapi.ApplicationError
	switch {
	case errors.Is(err, adminapi.ErrUnauthorized):
		middleware.Unauthorized(c)
	case errors.As(err, &appErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": appErr.Message, "code": appErr.Code})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": fallback})
	}
}
