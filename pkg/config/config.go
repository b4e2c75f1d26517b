// Package config loads the router's runtime configuration from the
// environment, following the same getEnv/getEnvInt64 helper style the
// teacher service uses for its own configuration.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config holds the service-level settings for running the router as an
// HTTP-fronted process: ports, Redis connectivity, telemetry window, and
// instance identity. Policy weights/thresholds are a separate concern
// (pkg/policy), loaded from a file by cmd/router, not from here.
type Config struct {
	RedisURL          string
	TelemetryWindowMS int64
	CleanupIntervalMS int64
	InstanceID        string
	Port              string
	MetricsPort       string
	LogLevel          string
	ConsumerGroupName string
	SQLiteAuditPath   string
}

// Load reads Config from the environment, applying defaults for any
// variable that is unset.
func Load() *Config {
	return &Config{
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		TelemetryWindowMS: getEnvInt64("TELEMETRY_WINDOW_MS", 15*60*1000),
		CleanupIntervalMS: getEnvInt64("CLEANUP_INTERVAL_MS", 60*1000),
		InstanceID:        getEnv("INSTANCE_ID", generateInstanceID()),
		Port:              getEnv("PORT", "8080"),
		MetricsPort:       getEnv("METRICS_PORT", "9090"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ConsumerGroupName: getEnv("CONSUMER_GROUP_NAME", "router-dispatchers"),
		SQLiteAuditPath:   getEnv("SQLITE_AUDIT_PATH", ""),
	}
}

func (c *Config) TelemetryWindow() time.Duration {
	return time.Duration(c.TelemetryWindowMS) * time.Millisecond
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMS) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func generateInstanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.New().String()
	}
	return hostname + "-" + uuid.New().String()[:8]
}
