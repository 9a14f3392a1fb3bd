package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

var ErrMissingRedis = errors.New("redis connection not configured: set REDIS_URL or REDIS_HOST")

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Websocket WebsocketConfig
	Events    EventsConfig
	Kafka     KafkaConfig
}

type ServerConfig struct {
	Port string
}

// RedisConfig accepts either a URL or the host/port/password triple. URL wins when both are set.
type RedisConfig struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

type SecurityConfig struct {
	JWTSecret    string
	JWTPublicKey string
}

type LoggingConfig struct {
	Directory string
	Level     string
	Format    string
}

type WebsocketConfig struct {
	SendBuffer int
	// StrictAuth verifies bearer tokens on every gateway instead of only on dashboard.
	StrictAuth bool
}

type EventsConfig struct {
	Source string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envOrDefault("PORT", "8080"),
		},
		Redis: RedisConfig{
			URL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
			Host:     strings.TrimSpace(os.Getenv("REDIS_HOST")),
			Port:     envOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			JWTSecret:    os.Getenv("JWT_SECRET"),
			JWTPublicKey: strings.ReplaceAll(os.Getenv("JWT_PUBLIC_KEY"), `\n`, "\n"),
		},
		Logging: LoggingConfig{
			Directory: envOrDefault("LOG_DIR", "./logs"),
			Level:     envOrDefault("LOG_LEVEL", "info"),
			Format:    envOrDefault("LOG_FORMAT", "text"),
		},
		Websocket: WebsocketConfig{
			SendBuffer: envInt("WS_SEND_BUFFER", 16),
			StrictAuth: envBool("WS_STRICT_AUTH", false),
		},
		Events: EventsConfig{
			Source: envOrDefault("EVENTS_SOURCE", "unknown"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(firstNonEmpty(os.Getenv("KAFKA_BROKERS"), os.Getenv("KAFKA_BROKER"))),
			GroupID: envOrDefault("KAFKA_GROUP_ID", "fleet-ws"),
			Topics:  splitList(os.Getenv("KAFKA_TOPICS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Redis.URL == "" && c.Redis.Host == "" {
		return ErrMissingRedis
	}
	if c.Websocket.SendBuffer <= 0 {
		c.Websocket.SendBuffer = 16
	}
	return nil
}

// KafkaEnabled reports whether the ingest bridge has both brokers and topics to read.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && len(c.Kafka.Topics) > 0
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
