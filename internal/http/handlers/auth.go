package handlers

import (
	"errors"
	"net/http"
	"strings"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/http/middleware"
	"magicpic_admin/internal/logger"
	"magicpic_admin/internal/session"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	client := h.API.WithSession(session.New(session.NewMemoryStore()))
	res, err := client.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var appErr *adminapi.ApplicationError
		if errors.As(err, &appErr) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": appErr.Message, "code": appErr.Code})
			return
		}
		logger.WithContext(c.Request.Context()).Error("login failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Login failed"})
		return
	}

	h.Audit.LogLogin(auditContext(c, res.Admin.ID), res.Admin.Email)
	c.JSON(http.StatusOK, gin.H{
		"admin":        res.Admin,
		"access_token": res.AccessToken,
		"token_type":   res.TokenType,
		"expires_in":   res.ExpiresIn,
	})
}

// Logout always ends the console side of the session, even when the
// upstream call fails.
func (h *Handler) Logout(c *gin.Context) {
	client := middleware.ClientFrom(c)
	ctx := c.Request.Context()

	id := adminID(c)
	if err := client.Logout(ctx); err != nil {
		logger.WithContext(ctx).Warn("upstream logout failed", "error", err)
	}
	h.Desk.Forget(middleware.AdminKeyFrom(c))
	h.Audit.LogLogout(auditContext(c, id))

	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": middleware.LoginPath})
}
