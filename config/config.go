package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port            string
	Environment     string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Ledger configuration
	LedgerBackend string // memory, pebble or redis
	PebblePath    string
	SeedDemoData  bool

	// Redis configuration, shared by the redis ledger and the redis publisher
	RedisURL           string
	RedisChannelPrefix string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Event dispatch
	EventQueueSize    int
	EventWorkers      int
	EventMaxAttempts  int
	EventRetryBackoff time.Duration
}

// LoadConfig reads the environment, after loading envPath (or ./.env) when it exists
func LoadConfig(envPath ...string) *Config {
	if len(envPath) > 0 && envPath[0] != "" {
		_ = godotenv.Load(envPath[0])
	} else {
		_ = godotenv.Load()
	}

	return &Config{
		// Server
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "10s"),

		// Ledger
		LedgerBackend: strings.ToLower(getEnv("LEDGER_BACKEND", "memory")),
		PebblePath:    getEnv("PEBBLE_PATH", "data/ledger"),
		SeedDemoData:  getEnvAsBool("SEED_DEMO_DATA", true),

		// Redis
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "bidding:"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "bidding-service"),

		// Events
		EventQueueSize:    getEnvAsInt("EVENT_QUEUE_SIZE", 1024),
		EventWorkers:      getEnvAsInt("EVENT_WORKERS", 4),
		EventMaxAttempts:  getEnvAsInt("EVENT_MAX_ATTEMPTS", 3),
		EventRetryBackoff: getEnvAsDuration("EVENT_RETRY_BACKOFF", "100ms"),
	}
}

// PubNubEnabled reports whether both keys needed to publish are set
func (c *Config) PubNubEnabled() bool {
	return c.PubNubPublishKey != "" && c.PubNubSubscribeKey != ""
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
