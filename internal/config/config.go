package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"magicpic_admin/internal/logger"

	"github.com/joho/godotenv"
)

const DefaultAdminAPIURL = "http://localhost:8000/api/admin"

type Config struct {
	AppPort     string
	AdminAPIURL string
	Version     string

	RequestTimeout time.Duration
	APIRateLimit   float64 // outbound requests per second, 0 disables pacing
	APIRateBurst   int

	LoginRateLimit  int
	LoginRateWindow time.Duration

	GrantRateLimit  int // grant submissions per admin per window
	GrantRateWindow time.Duration
	GrantFormIdle   time.Duration // unused grant forms are dropped after this

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionPrefix string

	DatabaseURL    string // optional, enables the audit trail
	AllowedOrigins []string

	LogLevel string
	LogJSON  bool
}

// Load reads the server configuration from env (and .env if present).
func Load() *Config {
	_ = godotenv.Load()

	apiURL := strings.TrimRight(os.Getenv("ADMIN_API_URL"), "/")
	if apiURL == "" {
		apiURL = DefaultAdminAPIURL
	}
	if !strings.HasPrefix(apiURL, "http://") && !strings.HasPrefix(apiURL, "https://") {
		logger.Fatal("ADMIN_API_URL must be an http(s) URL", "value", apiURL)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	sessionPrefix := os.Getenv("SESSION_PREFIX")
	if sessionPrefix == "" {
		sessionPrefix = "magicpic:"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		AppPort:         port,
		AdminAPIURL:     apiURL,
		Version:         version,
		RequestTimeout:  time.Duration(envInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		APIRateLimit:    envFloat("API_RATE_LIMIT", 20),
		APIRateBurst:    envInt("API_RATE_BURST", 10),
		LoginRateLimit:  envInt("LOGIN_RATE_LIMIT", 5),
		LoginRateWindow: time.Duration(envInt("LOGIN_RATE_WINDOW_SECONDS", 60)) * time.Second,
		GrantRateLimit:  envInt("GRANT_RATE_LIMIT", 30),
		GrantRateWindow: time.Duration(envInt("GRANT_RATE_WINDOW_SECONDS", 60)) * time.Second,
		GrantFormIdle:   time.Duration(envInt("GRANT_FORM_IDLE_MINUTES", 30)) * time.Minute,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envInt("REDIS_DB", 0),
		SessionPrefix:   sessionPrefix,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		AllowedOrigins:  origins,
		LogLevel:        logLevel,
		LogJSON:         os.Getenv("LOG_JSON") == "true",
	}
}

// envInt returns a positive integer from env or def.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}
