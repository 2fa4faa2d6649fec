package config

import (
	"os"
	"strconv"
	"time"

	"billing-service/internal/pkg/jwt"
)

type AppConfig struct {
	// Server
	HTTPAddr  string
	RedisAddr string
	RedisPass string
	RedisDB   int

	// JWT
	JWT jwt.Config

	// Store verification gateways
	AppStoreVerifyURL  string
	PlayStoreVerifyURL string
	VerifyTimeout      time.Duration

	// Caching and rate limiting
	CacheTTL         time.Duration
	VerifyRateLimit  int
	VerifyRateWindow time.Duration

	// Background expiry refresh
	RefreshInterval time.Duration
	RefreshBatch    int
}

// Load loads environment variables into AppConfig. The Postgres
// connection string is read separately from DATABASE_URL.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8000"),
		RedisAddr: getEnv("REDIS_ADDR", "redis-billing:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		JWT: jwt.Config{
			PubPath:  getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/jwt_public.pem"),
			Issuer:   getEnv("JWT_ISSUER", "identity-service"),
			Audience: getEnv("JWT_AUDIENCE", "billing-users"),
		},

		AppStoreVerifyURL:  getEnv("APP_STORE_VERIFY_URL", "http://verification:8080/appstore/verify"),
		PlayStoreVerifyURL: getEnv("PLAY_STORE_VERIFY_URL", "http://verification:8080/playstore/verify"),
		VerifyTimeout:      getEnvDuration("VERIFY_TIMEOUT", 15*time.Second),

		CacheTTL:         getEnvDuration("SUBSCRIPTION_CACHE_TTL", 5*time.Minute),
		VerifyRateLimit:  getEnvInt("VERIFY_RATE_LIMIT", 10),
		VerifyRateWindow: getEnvDuration("VERIFY_RATE_WINDOW", time.Minute),

		RefreshInterval: getEnvDuration("SUBSCRIPTION_REFRESH_INTERVAL", time.Hour),
		RefreshBatch:    getEnvInt("SUBSCRIPTION_REFRESH_BATCH", 100),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
