// internal/config/config.go
//
// Environment-driven configuration.
// Load reads an optional .env file (development) and then the process
// environment; every value has a default so the server starts bare.
//
// Environment variables:
//   PORT                 listen port (default 5175)
//   LOG_LEVEL            zerolog level name (default info)
//   DB_PATH              SQLite file (default ./data/app.db)
//   JWT_SECRET           HMAC secret for auth tokens
//   JWT_EXPIRES_DAYS     token lifetime in days (default 14)
//   COOKIE_NAME          auth cookie name (default pattern_token)
//   CLIENT_ORIGIN        CORS origin (default http://localhost:5173)
//   NODE_ENV             "production" enables Secure/SameSite=None cookies
//   DAILY_SALT           salt for the daily pattern seed
//   SESSION_TTL_MINUTES  idle session lifetime (default 60)
//   DEBUG_ROUTES         "true" mounts the /debug direct-mutation routes

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	LogLevel     string
	DBPath       string
	JWTSecret    string
	JWTExpiry    time.Duration
	CookieName   string
	ClientOrigin string
	Production   bool
	DailySalt    string
	SessionTTL   time.Duration
	DebugRoutes  bool
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DBPath:       getEnv("DB_PATH", "./data/app.db"),
		JWTSecret:    getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiry:    time.Duration(getInt("JWT_EXPIRES_DAYS", 14)) * 24 * time.Hour,
		CookieName:   getEnv("COOKIE_NAME", "pattern_token"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:   os.Getenv("NODE_ENV") == "production",
		DailySalt:    getEnv("DAILY_SALT", "local_dev_salt"),
		SessionTTL:   time.Duration(getInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		DebugRoutes:  getBool("DEBUG_ROUTES", false),
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil && n > 0 {
		return n
	}
	return def
}

func getBool(k string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(k)); err == nil {
		return b
	}
	return def
}
