package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config bundles the environment-driven settings the server needs at startup.
type Config struct {
	DatabaseURL    string
	JWTSecret      string
	Port           string
	RedisAddr      string
	PlatformFeePct float64
}

// LoadConfig reads configuration from the environment, loading a local .env
// file first when present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		Port:           os.Getenv("PORT"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		PlatformFeePct: 10,
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("db: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("db: JWT_SECRET is required")
	}

	if raw := os.Getenv("PLATFORM_FEE_PERCENT"); raw != "" {
		pct, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("db: parse PLATFORM_FEE_PERCENT: %w", err)
		}
		if pct < 0 || pct >= 100 {
			return Config{}, fmt.Errorf("db: PLATFORM_FEE_PERCENT out of range: %v", pct)
		}
		cfg.PlatformFeePct = pct
	}

	return cfg, nil
}
