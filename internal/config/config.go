package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Webhook action
	WebhookBaseURL string
	WebhookTimeout time.Duration

	// Dispatch workers
	Workers int

	// Rate limiting: maximum dispatches per second per action
	RateLimit int

	// Bus publish buffer
	BusBuffer int

	// Background worker poll intervals
	SchedulerInterval time.Duration
	ReaperInterval    time.Duration

	// RunningDeadline is how long an invocation may sit in phase=running
	// before the reaper treats it as orphaned and rejects it.
	RunningDeadline time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		WebhookBaseURL: getEnv("WEBHOOK_BASE_URL", "https://webhook.site/your-uuid-here"),
		WebhookTimeout: getDuration("WEBHOOK_TIMEOUT", 10*time.Second),

		Workers: getInt("WORKERS", 10),

		RateLimit: getInt("RATE_LIMIT_PER_ACTION", 100),

		BusBuffer: getInt("BUS_BUFFER", 1024),

		SchedulerInterval: getDuration("SCHEDULER_INTERVAL", 5*time.Second),
		ReaperInterval:    getDuration("REAPER_INTERVAL", 30*time.Second),
		RunningDeadline:   getDuration("RUNNING_DEADLINE", 5*time.Minute),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
