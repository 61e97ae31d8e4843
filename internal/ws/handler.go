package ws

import (
	"context"
	"net/http"
	"slices"
	"time"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/logger"
	"magicpic_admin/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// LoginPath is where clients go when their session ends.
const LoginPath = "/admin/login"

// KeyFunc derives the registry key of an admin from a token.
type KeyFunc func(token string) string

// HandleCredits upgrades to the credits view stream. The token comes from the
// "token" query parameter since browsers cannot set headers on websockets.
func HandleCredits(hub *Hub, api *adminapi.Client, allowedOrigins []string, key KeyFunc) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required", "redirect": LoginPath})
			return
		}

		sess := session.New(session.NewMemoryStore())
		if err := sess.Begin(c.Request.Context(), token, nil, 0); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "redirect": LoginPath})
			return
		}
		if _, ok := sess.Token(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired", "redirect": LoginPath})
			return
		}

		client := api.WithSession(sess)
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		_, err := client.Me(checkCtx)
		cancel()
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": LoginPath})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		wsClient := NewClient(key(token), conn, hub, NewView(client, client))
		sess.OnExpired(func(reason string) {
			wsClient.trySend(encode(MsgError, ErrorPayload{Message: reason, Redirect: LoginPath}))
			go wsClient.Close()
		})

		go wsClient.Run(context.Background())
	}
}
