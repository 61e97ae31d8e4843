package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/logger"
	"magicpic_admin/internal/session"

	"github.com/gin-gonic/gin"
)

// LoginPath is where the dashboard sends admins without a session.
const LoginPath = "/admin/login"

const (
	ctxClient   = "adminapi_client"
	ctxAdminKey = "admin_key"
)

// AdminKey scopes per-admin state (grant form, view streams, grant limit) to
// a digest of the whole token. Claims are never trusted for it: they are read
// without the signing key, so a forged token could name any subject.
func AdminKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "tok:" + hex.EncodeToString(sum[:16])
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Unauthorized aborts with the redirect the dashboard follows to the login page.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": LoginPath})
}

// Session builds a per-request admin session from the bearer token and
// exposes a client bound to it.
func Session(api *adminapi.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			Unauthorized(c)
			return
		}

		ctx := c.Request.Context()
		sess := session.New(session.NewMemoryStore())
		if err := sess.Begin(ctx, token, nil, 0); err != nil {
			Unauthorized(c)
			return
		}
		sess.OnExpired(func(reason string) {
			logger.WithContext(ctx).Info("admin session ended", "reason", reason)
		})
		if _, ok := sess.Token(ctx); !ok {
			Unauthorized(c)
			return
		}

		client := api.WithSession(sess)
		c.Set(ctxClient, client)
		c.Set(ctxAdminKey, AdminKey(token))
		c.Request = c.Request.WithContext(adminapi.NewContext(ctx, client))
		c.Next()
	}
}

// ClientFrom returns the client set by Session.
func ClientFrom(c *gin.Context) *adminapi.Client {
	v, _ := c.Get(ctxClient)
	client, _ := v.(*adminapi.Client)
	return client
}

// AdminKeyFrom returns the admin key set by Session.
func AdminKeyFrom(c *gin.Context) string {
	return c.GetString(ctxAdminKey)
}
