package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

var globalConfig *Config

func Global() *Config {
	return globalConfig
}

func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

type Config struct {
	Env      string `env:"ENV" env-required:"true"`
	HTTP     HTTPConfig
	JWT      JWTConfig
	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Hub      HubConfig
}

type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	AllowedOrigins  []string      `env:"HTTP_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	SecureCookies   bool          `env:"HTTP_SECURE_COOKIES" env-default:"false"`
	// AdminToken enables the admin routes when set.
	AdminToken string `env:"ADMIN_TOKEN"`
}

type JWTConfig struct {
	Issuer         string        `env:"JWT_ISSUER" env-default:"taskdock"`
	SigningKey     string        `env:"JWT_SIGNING_KEY" env-required:"true"`
	AccessTokenTTL time.Duration `env:"JWT_ACCESS_TOKEN_TTL" env-default:"24h"`
}

type StoreConfig struct {
	// Driver is either "postgres" or "sqlite".
	Driver string `env:"STORE_DRIVER" env-default:"postgres"`
}

type PostgresConfig struct {
	Host           string        `env:"POSTGRES_HOST" env-default:"localhost"`
	Port           int           `env:"POSTGRES_PORT" env-default:"5432"`
	Username       string        `env:"POSTGRES_USERNAME" env-default:"postgres"`
	Password       string        `env:"POSTGRES_PASSWORD"`
	Database       string        `env:"POSTGRES_DATABASE" env-default:"taskdock"`
	SSLMode        string        `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" env-default:"10s"`
	PingTimeout    time.Duration `env:"POSTGRES_PING_TIMEOUT" env-default:"10s"`
	AutoMigrate    bool          `env:"POSTGRES_AUTO_MIGRATE" env-default:"true"`
}

func (c PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" env-default:"taskdock.db"`
}

type RedisConfig struct {
	// URL takes precedence over the discrete fields when set.
	URL      string        `env:"REDIS_URL"`
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `env:"REDIS_CACHE_TTL" env-default:"60s"`

	EventsEnabled bool   `env:"REDIS_EVENTS_ENABLED" env-default:"false"`
	EventsChannel string `env:"REDIS_EVENTS_CHANNEL" env-default:"taskdock:events"`
}

// Enabled reports whether any Redis endpoint is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != "" || c.Addr != ""
}

// Options resolves the connection settings, parsing URL if present.
func (c RedisConfig) Options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(strings.TrimSpace(c.URL))
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}, nil
}

type HubConfig struct {
	QueueSize int `env:"HUB_QUEUE_SIZE" env-default:"64"`
}
