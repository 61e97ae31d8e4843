package middleware

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/logger"

	"github.com/gin-gonic/gin"
)

const ctxAdmin = "admin"

type verifiedEntry struct {
	admin domain.Admin
	until time.Time
}

// verifiedTokens remembers tokens the upstream accepted, by AdminKey.
type verifiedTokens struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]verifiedEntry
}

func newVerifiedTokens(ttl time.Duration) *verifiedTokens {
	return &verifiedTokens{ttl: ttl, now: time.Now, entries: make(map[string]verifiedEntry)}
}

func (v *verifiedTokens) get(key string) (domain.Admin, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entries[key]
	if !ok || v.now().After(e.until) {
		delete(v.entries, key)
		return domain.Admin{}, false
	}
	return e.admin, true
}

func (v *verifiedTokens) put(key string, admin domain.Admin) {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	if len(v.entries) > 10000 {
		for k, e := range v.entries {
			if now.After(e.until) {
				delete(v.entries, k)
			}
		}
	}
	v.entries[key] = verifiedEntry{admin: admin, until: now.Add(v.ttl)}
}

// Verified admits a request only after the upstream accepted its token
// (GET /auth/me). Accepted tokens are remembered for ttl. Requires Session.
func Verified(ttl time.Duration) gin.HandlerFunc {
	return verified(newVerifiedTokens(ttl))
}

func verified(cache *verifiedTokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := AdminKeyFrom(c)
		client := ClientFrom(c)
		if key == "" || client == nil {
			Unauthorized(c)
			return
		}
		if admin, ok := cache.get(key); ok {
			c.Set(ctxAdmin, &admin)
			c.Next()
			return
		}

		admin, err := client.Me(c.Request.Context())
		if err != nil {
			var appErr *adminapi.ApplicationError
			if errors.Is(err, adminapi.ErrUnauthorized) || errors.As(err, &appErr) {
				Unauthorized(c)
				return
			}
			logger.WithContext(c.Request.Context()).Warn("token check failed", "error", err)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "admin API unavailable"})
			return
		}
		cache.put(key, *admin)
		c.Set(ctxAdmin, admin)
		c.Next()
	}
}

// AdminFrom returns the admin set by Verified, nil on unverified routes.
func AdminFrom(c *gin.Context) *domain.Admin {
	v, _ := c.Get(ctxAdmin)
	admin, _ := v.(*domain.Admin)
	return admin
}
