package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                string
	Port                  string
	DatabaseURL           string
	JWTSecret             string
	AppURL                string
	MidtransServerKey     string
	MidtransSnapBaseURL   string
	MidtransAPIBaseURL    string
	GeoIPDBPath           string
	DefaultLocale         string
	AllowedOrigins        []string
	HTTPReadTimeout       time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration
	GatewayTimeout        time.Duration
	RateLimitPerMin       int
	ReconcilePendingAge   time.Duration
	ReconcilePollInterval time.Duration
	ReconcileBatchSize    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		AppURL:                getEnv("APP_URL", "http://localhost:3000"),
		MidtransServerKey:     os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransSnapBaseURL:   getEnv("MIDTRANS_SNAP_BASE_URL", "https://app.sandbox.midtrans.com/snap/v1"),
		MidtransAPIBaseURL:    getEnv("MIDTRANS_API_BASE_URL", "https://api.sandbox.midtrans.com/v2"),
		GeoIPDBPath:           os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:         getEnv("DEFAULT_LOCALE", "id"),
		AllowedOrigins:        splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		GatewayTimeout:        time.Second * time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 15)),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ReconcilePendingAge:   time.Minute * time.Duration(getEnvInt("RECONCILE_PENDING_AGE_MINUTES", 30)),
		ReconcilePollInterval: time.Second * time.Duration(getEnvInt("RECONCILE_POLL_INTERVAL_SECONDS", 60)),
		ReconcileBatchSize:    getEnvInt("RECONCILE_BATCH_SIZE", 50),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.MidtransServerKey == "" {
		return nil, fmt.Errorf("MIDTRANS_SERVER_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
