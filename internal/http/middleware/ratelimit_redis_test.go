package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

func hit(t *testing.T, r http.Handler) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitFallsBackToMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitRedisRateLimiter(nil)

	r := gin.New()
	r.POST("/login", RedisRateLimit("login-test", 2, time.Minute), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		if code := hit(t, r); code != 200 {
			t.Fatalf("request %d: expected 200 got %d", i, code)
		}
	}
	if code := hit(t, r); code != 429 {
		t.Fatalf("expected 429 got %d", code)
	}
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newMemoryLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	if !l.allow("a") {
		t.Fatal("first hit allowed")
	}
	if l.allow("a") {
		t.Fatal("second hit in window blocked")
	}
	if !l.allow("b") {
		t.Fatal("keys are independent")
	}
	now = now.Add(2 * time.Minute)
	if !l.allow("a") {
		t.Fatal("new window allowed")
	}
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisRateLimitIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DB: db})
	defer rdb.Close()
	InitRedisRateLimiter(rdb)
	defer InitRedisRateLimiter(nil)

	scope := "it-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	r := gin.New()
	r.POST("/login", RedisRateLimit(scope, 2, 2*time.Second), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		if code := hit(t, r); code != 200 {
			t.Fatalf("expected 200 got %d", code)
		}
	}
	if code := hit(t, r); code != 429 {
		t.Fatalf("expected 429 got %d", code)
	}
}

func TestAdminRateLimitKeysByAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitRedisRateLimiter(nil)

	r := gin.New()
	r.POST("/grant", func(c *gin.Context) {
		if k := c.GetHeader("X-Test-Admin"); k != "" {
			c.Set(ctxAdminKey, k)
		}
	}, AdminRateLimit("grant-test", 1, time.Minute), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	send := func(admin string) int {
		req := httptest.NewRequest(http.MethodPost, "/grant", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		if admin != "" {
			req.Header.Set("X-Test-Admin", admin)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("tok:a"); code != 200 {
		t.Fatalf("first grant = %d", code)
	}
	if code := send("tok:a"); code != 429 {
		t.Fatalf("second grant = %d, want 429", code)
	}
	if code := send("tok:b"); code != 200 {
		t.Fatalf("other admin behind the same IP = %d", code)
	}
	if code := send(""); code != 401 {
		t.Fatalf("no admin = %d, want 401", code)
	}
}
