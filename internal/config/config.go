package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Geocoder     GeocoderConfig
	Assignment   AssignmentConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowOrigins      string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// OpTimeoutMS bounds each cache or stream command so a stalled Redis
	// cannot eat the request deadline.
	OpTimeoutMS int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	CookieName            string
}

// NotificationConfig controls outbound email relay and the lifecycle event stream.
type NotificationConfig struct {
	RelayURL      string
	SendTimeoutMS int
	QueueSize     int
	StreamKey     string
}

// GeocoderConfig points at the postal code lookup service.
type GeocoderConfig struct {
	BaseURL         string
	UserAgent       string
	TimeoutMS       int
	CacheTTLSeconds int
}

// AssignmentConfig tunes the dispatch engine.
type AssignmentConfig struct {
	PriorityPolicy  string
	Timezone        string
	MaxWriteRetries int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "dispatch-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSAllowOrigins:      getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			OpTimeoutMS: getEnvAsInt("REDIS_OP_TIMEOUT_MS", 200),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			CookieName:            getEnv("AUTH_COOKIE_NAME", "token"),
		},
		Notification: NotificationConfig{
			RelayURL:      os.Getenv("NOTIFY_RELAY_URL"),
			SendTimeoutMS: getEnvAsInt("NOTIFY_SEND_TIMEOUT_MS", 5000),
			QueueSize:     getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			StreamKey:     getEnv("NOTIFY_STREAM_KEY", "dispatch.ticket.events"),
		},
		Geocoder: GeocoderConfig{
			BaseURL:         getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/search"),
			UserAgent:       getEnv("GEOCODER_USER_AGENT", "dispatch-service/1.0"),
			TimeoutMS:       getEnvAsInt("GEOCODER_TIMEOUT_MS", 5000),
			CacheTTLSeconds: getEnvAsInt("GEOCODER_CACHE_TTL_SECONDS", 86400),
		},
		Assignment: AssignmentConfig{
			PriorityPolicy:  getEnv("ASSIGNMENT_PRIORITY_POLICY", "proximity"),
			Timezone:        getEnv("ASSIGNMENT_TIMEZONE", "UTC"),
			MaxWriteRetries: getEnvAsInt("ASSIGNMENT_MAX_WRITE_RETRIES", 3),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Assignment.PriorityPolicy {
	case "proximity", "proximity_rescore", "service_type":
	default:
		return fmt.Errorf("invalid ASSIGNMENT_PRIORITY_POLICY: %q", c.Assignment.PriorityPolicy)
	}
	if _, err := c.Assignment.Location(); err != nil {
		return fmt.Errorf("invalid ASSIGNMENT_TIMEZONE: %w", err)
	}
	if c.Assignment.MaxWriteRetries < 1 {
		return fmt.Errorf("ASSIGNMENT_MAX_WRITE_RETRIES must be at least 1")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must not be empty")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves the timezone used to derive a ticket's weekday.
func (a AssignmentConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || strings.EqualFold(a.Timezone, "UTC") {
		return time.UTC, nil
	}
	return time.LoadLocation(a.Timezone)
}

// OpTimeout returns the deadline applied to a single Redis command.
func (r RedisConfig) OpTimeout() time.Duration {
	return millis(r.OpTimeoutMS)
}

// Timeout returns the geocoder request deadline.
func (g GeocoderConfig) Timeout() time.Duration {
	return millis(g.TimeoutMS)
}

// CacheTTL returns how long resolved postal codes stay cached.
func (g GeocoderConfig) CacheTTL() time.Duration {
	if g.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(g.CacheTTLSeconds) * time.Second
}

// SendTimeout bounds a single outbound notification.
func (n NotificationConfig) SendTimeout() time.Duration {
	return millis(n.SendTimeoutMS)
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
