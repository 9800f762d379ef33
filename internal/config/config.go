package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	// GroupWindow is the maximum gap between two inbound messages that still
	// places them in the same burst.
	GroupWindow time.Duration
	// SweepInterval is how often the worker sweeps all conversations.
	SweepInterval time.Duration
	// ReconcileDelay is the grace period before an orphaned message is checked
	// against its expected conversation.
	ReconcileDelay time.Duration

	UseMemoryQueue    bool
	WorkerCount       int
	ReconcileQueueURL string

	SweepLockEnabled bool
	SweepLockTTL     time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool

	SweepRunsTable string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GroupWindow:    getEnvAsDuration("GROUP_WINDOW", 5*time.Second),
		SweepInterval:  getEnvAsDuration("SWEEP_INTERVAL", 5*time.Second),
		ReconcileDelay: getEnvAsDuration("RECONCILE_DELAY", 6*time.Second),

		UseMemoryQueue:    getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 2),
		ReconcileQueueURL: getEnv("RECONCILE_QUEUE_URL", ""),

		SweepLockEnabled: getEnvAsBool("SWEEP_LOCK_ENABLED", false),
		SweepLockTTL:     getEnvAsDuration("SWEEP_LOCK_TTL", 30*time.Second),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),

		SweepRunsTable: getEnv("SWEEP_RUNS_TABLE", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
