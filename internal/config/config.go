package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout_seconds"`
	WriteTimeout   int      `mapstructure:"write_timeout_seconds"`
	IdleTimeout    int      `mapstructure:"idle_timeout_seconds"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	TrustProxyHops int      `mapstructure:"trust_proxy_hops"`
}

type DatabaseConfig struct {
	Driver              string `mapstructure:"driver"`
	Host                string `mapstructure:"host"`
	Port                string `mapstructure:"port"`
	User                string `mapstructure:"user"`
	Password            string `mapstructure:"password"`
	DBName              string `mapstructure:"name"`
	SSLMode             string `mapstructure:"ssl_mode"`
	MaxOpenConns        int    `mapstructure:"max_open_conns"`
	IdleTimeoutMillis   int    `mapstructure:"idle_timeout_ms"`
	ConnTimeoutMillis   int    `mapstructure:"connection_timeout_ms"`
	HealthTimeoutMillis int    `mapstructure:"health_timeout_ms"`
}

type RateLimitConfig struct {
	WindowSeconds int         `mapstructure:"window_seconds"`
	Max           int         `mapstructure:"max"`
	Redis         RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EventsConfig struct {
	Driver string      `mapstructure:"driver"`
	NATS   NATSConfig  `mapstructure:"nats"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

var defaults = map[string]interface{}{
	"env":                            "local",
	"server.host":                    "0.0.0.0",
	"server.port":                    "5000",
	"server.read_timeout_seconds":    15,
	"server.write_timeout_seconds":   15,
	"server.idle_timeout_seconds":    60,
	"server.cors_origins":            []string{"http://localhost", "http://localhost:3000", "http://localhost:3001"},
	"server.trust_proxy_hops":        1,
	"database.driver":                "pg",
	"database.host":                  "localhost",
	"database.port":                  "5432",
	"database.user":                  "postgres",
	"database.password":              "password",
	"database.name":                  "student_management",
	"database.ssl_mode":              "disable",
	"database.max_open_conns":        20,
	"database.idle_timeout_ms":       30000,
	"database.connection_timeout_ms": 2000,
	"database.health_timeout_ms":     5000,
	"rate_limit.window_seconds":      900,
	"rate_limit.max":                 100,
	"rate_limit.redis.addr":          "",
	"rate_limit.redis.password":      "",
	"rate_limit.redis.db":            0,
	"events.driver":                  "none",
	"events.nats.url":                "nats://localhost:4222",
	"events.nats.subject":            "students.events",
	"events.kafka.brokers":           []string{"localhost:9092"},
	"events.kafka.topic":             "students.events",
	"telemetry.otlp_endpoint":        "",
}

// Environment variable names kept compatible with the existing deployment manifests.
var envBindings = map[string]string{
	"env":                            "ENV",
	"server.host":                    "HOST",
	"server.port":                    "PORT",
	"server.read_timeout_seconds":    "SERVER_READ_TIMEOUT_SECONDS",
	"server.write_timeout_seconds":   "SERVER_WRITE_TIMEOUT_SECONDS",
	"server.idle_timeout_seconds":    "SERVER_IDLE_TIMEOUT_SECONDS",
	"server.cors_origins":            "CORS_ORIGIN",
	"server.trust_proxy_hops":        "TRUST_PROXY_HOPS",
	"database.driver":                "DB_DRIVER",
	"database.host":                  "DB_HOST",
	"database.port":                  "DB_PORT",
	"database.user":                  "DB_USER",
	"database.password":              "DB_PASSWORD",
	"database.name":                  "DB_NAME",
	"database.ssl_mode":              "DB_SSL_MODE",
	"database.max_open_conns":        "DB_MAX_CONNECTIONS",
	"database.idle_timeout_ms":       "DB_IDLE_TIMEOUT",
	"database.connection_timeout_ms": "DB_CONNECTION_TIMEOUT",
	"database.health_timeout_ms":     "DB_HEALTH_TIMEOUT",
	"rate_limit.window_seconds":      "RATE_LIMIT_WINDOW_SECONDS",
	"rate_limit.max":                 "RATE_LIMIT_MAX",
	"rate_limit.redis.addr":          "RATE_LIMIT_REDIS_ADDR",
	"rate_limit.redis.password":      "RATE_LIMIT_REDIS_PASSWORD",
	"rate_limit.redis.db":            "RATE_LIMIT_REDIS_DB",
	"events.driver":                  "EVENTS_DRIVER",
	"events.nats.url":                "NATS_URL",
	"events.nats.subject":            "NATS_SUBJECT",
	"events.kafka.brokers":           "KAFKA_BROKERS",
	"events.kafka.topic":             "KAFKA_TOPIC",
	"telemetry.otlp_endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
}

func Load() (*Config, error) {
	// Get environment from ENV, default to "local"
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("/configs")   // Kubernetes mount
	v.AddConfigPath("./configs")  // repo root
	v.AddConfigPath("../configs") // IDE from cmd/

	// Config file is optional - ENV variables and defaults are enough
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, envName := range envBindings {
		if err := v.BindEnv(key, envName); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", envName, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma-separated env values arrive as a single element
	config.Server.CORSOrigins = splitList(config.Server.CORSOrigins)
	config.Events.Kafka.Brokers = splitList(config.Events.Kafka.Brokers)
	config.Events.Driver = strings.ToLower(strings.TrimSpace(config.Events.Driver))
	config.Database.Driver = strings.ToLower(strings.TrimSpace(config.Database.Driver))

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimit.Max)
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be positive, got %d", c.RateLimit.WindowSeconds)
	}
	if c.Server.TrustProxyHops < 0 {
		return fmt.Errorf("TRUST_PROXY_HOPS must not be negative, got %d", c.Server.TrustProxyHops)
	}
	return nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
