package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const developmentSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Client   ClientConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	AllowedOrigins        []string
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Driver    string
	SQLiteDSN string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret        string
	TokenTTL         time.Duration
	BcryptCost       int
	AdminEmail       string
	AdminPassword    string
	AdminDisplayName string
}

// ClientConfig drives the imparablesctl client.
type ClientConfig struct {
	APIURL          string
	SessionBackend  string
	SessionFile     string
	MonitorInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	tokenTTL, err := getEnvAsDuration("AUTH_TOKEN_TTL", 4*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_TOKEN_TTL: %w", err)
	}
	monitorInterval, err := getEnvAsDuration("IMPARABLES_MONITOR_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IMPARABLES_MONITOR_INTERVAL: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "imparables"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "4000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			AllowedOrigins:        getEnvAsList("CLIENT_ORIGIN", []string{"http://localhost:5173"}),
		},
		Store: StoreConfig{
			Driver:    strings.ToLower(getEnv("CREDENTIAL_STORE_DRIVER", "sqlite")),
			SQLiteDSN: getEnv("SQLITE_DSN", "file:imparables.db?_pragma=busy_timeout(5000)"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", developmentSecret),
			TokenTTL:         tokenTTL,
			BcryptCost:       getEnvAsInt("AUTH_BCRYPT_COST", 10),
			AdminEmail:       os.Getenv("ADMIN_EMAIL"),
			AdminPassword:    os.Getenv("ADMIN_SEED_PASSWORD"),
			AdminDisplayName: getEnv("ADMIN_DISPLAY_NAME", "Editora Imparable"),
		},
		Client: ClientConfig{
			APIURL:          strings.TrimRight(getEnv("IMPARABLES_API_URL", "http://localhost:4000/api"), "/"),
			SessionBackend:  strings.ToLower(getEnv("IMPARABLES_SESSION_BACKEND", "file")),
			SessionFile:     getEnv("IMPARABLES_SESSION_FILE", defaultSessionFile()),
			MonitorInterval: monitorInterval,
		},
	}

	return cfg, nil
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.App.Env != "development" && c.Auth.JWTSecret == developmentSecret {
		return fmt.Errorf("JWT_SECRET must be overridden in %s", c.App.Env)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("AUTH_TOKEN_TTL must be positive")
	}
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres credential store")
		}
	default:
		return fmt.Errorf("unknown CREDENTIAL_STORE_DRIVER %q", c.Store.Driver)
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

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "imparables", "session.json")
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

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	return time.ParseDuration(val)
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
