// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Allocator backends for stable IDs.
const (
	AllocatorMemory   = "memory"
	AllocatorRedis    = "redis"
	AllocatorPostgres = "postgres"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `validate:"required"`
	Environment     string        `validate:"oneof=dev test prod"`
	PublicBaseURL   string        `validate:"required,url"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	// ReadTimeout and WriteTimeout of zero keep the server defaults.
	ReadTimeout     time.Duration `validate:"gte=0"`
	WriteTimeout    time.Duration `validate:"gte=0"`
	ReferencePath   string
	Auth            AuthConfig
	Database        DatabaseConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
	RateLimit       RateLimitConfig
	Allocator       string `validate:"oneof=memory redis postgres"`
	SearchPageSize  int    `validate:"gte=1,lte=200"`
}

type AuthConfig struct {
	JWTSigningKey string `validate:"required,min=16"`
	Issuer        string `validate:"required"`
	Audience      string `validate:"required"`
	AdminToken    string
}

// DatabaseConfig is empty when records live in memory.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int           `validate:"gte=1"`
	MaxIdleConns int           `validate:"gte=0"`
	ConnMaxLife  time.Duration `validate:"gte=0"`
}

type RedisConfig struct {
	URL          string
	PoolSize     int           `validate:"gte=1"`
	MinIdleConns int           `validate:"gte=0"`
	DialTimeout  time.Duration `validate:"gt=0"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

// RateLimitConfig bounds requests per client IP. Counts live in Redis when
// REDIS_URL is set.
type RateLimitConfig struct {
	Disabled bool
	Requests int           `validate:"gte=1"`
	Window   time.Duration `validate:"gt=0"`
}

// KafkaConfig is empty when confidence changes are only logged.
type KafkaConfig struct {
	Brokers           []string
	Topic             string `validate:"required"`
	ClientID          string `validate:"required"`
	Partitions        int32  `validate:"gte=1"`
	ReplicationFactor int16  `validate:"gte=1"`
	QueueSize         int    `validate:"gte=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:            env("G2P_ADDR", ":8080"),
		Environment:     env("G2P_ENV", "dev"),
		PublicBaseURL:   env("G2P_PUBLIC_BASE_URL", "http://localhost:8080"),
		ShutdownTimeout: envDuration("G2P_SHUTDOWN_TIMEOUT", 10*time.Second),
		ReadTimeout:     envDuration("G2P_READ_TIMEOUT", 0),
		WriteTimeout:    envDuration("G2P_WRITE_TIMEOUT", 0),
		ReferencePath:   os.Getenv("G2P_REFERENCE_PATH"),
		Auth: AuthConfig{
			// Use a default for development - should be overridden in production
			JWTSigningKey: env("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        env("JWT_ISSUER", "g2p"),
			Audience:      env("JWT_AUDIENCE", "g2p-api"),
			AdminToken:    os.Getenv("G2P_ADMIN_TOKEN"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLife:  envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           envList("KAFKA_BROKERS"),
			Topic:             env("KAFKA_TOPIC", "g2p.confidence-changes"),
			ClientID:          env("KAFKA_CLIENT_ID", "g2p-server"),
			Partitions:        int32(envInt("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(envInt("KAFKA_TOPIC_REPLICATION", 1)),
			QueueSize:         envInt("G2P_NOTIFY_QUEUE_SIZE", 256),
		},
		RateLimit: RateLimitConfig{
			Disabled: envBool("G2P_RATELIMIT_DISABLED", false),
			Requests: envInt("G2P_RATELIMIT_REQUESTS", 120),
			Window:   envDuration("G2P_RATELIMIT_WINDOW", time.Minute),
		},
		Allocator:      env("G2P_ID_ALLOCATOR", AllocatorMemory),
		SearchPageSize: envInt("G2P_SEARCH_PAGE_SIZE", 20),
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and the cross-field rules tags cannot express.
func (c Server) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch {
	case c.Allocator == AllocatorRedis && c.Redis.URL == "":
		return fmt.Errorf("invalid configuration: G2P_ID_ALLOCATOR=redis requires REDIS_URL")
	case c.Allocator == AllocatorPostgres && c.Database.URL == "":
		return fmt.Errorf("invalid configuration: G2P_ID_ALLOCATOR=postgres requires DATABASE_URL")
	case c.Environment == "prod" && c.Auth.JWTSigningKey == "dev-secret-key-change-in-production":
		return fmt.Errorf("invalid configuration: JWT_SIGNING_KEY must be set in prod")
	}
	return nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
