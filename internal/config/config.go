package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Client    ClientConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Environment    string // "development", "production", "test"
	Debug          bool
	MigrationsPath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// AuthConfig selects how the server identifies callers. With an issuer set,
// requests carry an OIDC ID token as a bearer token; otherwise the dev
// header is trusted.
type AuthConfig struct {
	OIDCIssuerURL  string
	OIDCClientID   string
	AllowDevHeader bool
}

type RateLimitConfig struct {
	ReactionsPerWindow int64
	Window             time.Duration
}

// ClientConfig is read by the feedsync command.
type ClientConfig struct {
	BaseURL   string
	Token     string
	UserID    string
	PageSize  int
	Lookahead int
	Timeout   time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (a AuthConfig) OIDCEnabled() bool {
	return strings.TrimSpace(a.OIDCIssuerURL) != ""
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			Environment:    env,
			Debug:          getEnvBool("DEBUG", false),
			MigrationsPath: getEnvNonEmpty("MIGRATIONS_PATH", "migrations"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "feedsync"),
			Password: getEnv("DB_PASSWORD", "feedsync"),
			DBName:   getEnv("DB_NAME", "feedsync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Auth: AuthConfig{
			OIDCIssuerURL:  getEnv("OIDC_ISSUER_URL", ""),
			OIDCClientID:   getEnv("OIDC_CLIENT_ID", ""),
			AllowDevHeader: getEnvBool("AUTH_ALLOW_DEV_HEADER", env == "development"),
		},
		RateLimit: RateLimitConfig{
			ReactionsPerWindow: int64(getEnvInt("REACTION_RATE_LIMIT", 120)),
			Window:             getEnvDuration("REACTION_RATE_WINDOW", time.Minute),
		},
	}

	if cfg.Auth.OIDCEnabled() && strings.TrimSpace(cfg.Auth.OIDCClientID) == "" {
		return nil, fmt.Errorf("OIDC_CLIENT_ID is required when OIDC_ISSUER_URL is set")
	}
	client, err := LoadClient()
	if err != nil {
		return nil, err
	}
	cfg.Client = client

	return cfg, nil
}

// LoadClient reads only the FEEDSYNC_* settings, so the CLI starts regardless
// of how the server side is configured.
func LoadClient() (ClientConfig, error) {
	cfg := ClientConfig{
		BaseURL:   getEnvNonEmpty("FEEDSYNC_BASE_URL", "http://localhost:8080"),
		Token:     getEnv("FEEDSYNC_TOKEN", ""),
		UserID:    getEnv("FEEDSYNC_USER_ID", ""),
		PageSize:  getEnvInt("FEEDSYNC_PAGE_SIZE", 20),
		Lookahead: getEnvInt("FEEDSYNC_LOOKAHEAD", 5),
		Timeout:   getEnvDuration("FEEDSYNC_TIMEOUT", 10*time.Second),
	}
	if cfg.PageSize <= 0 {
		return ClientConfig{}, fmt.Errorf("FEEDSYNC_PAGE_SIZE must be positive, got %d", cfg.PageSize)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvNonEmpty(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(value) != "" {
			return value
		}
		return defaultValue
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
