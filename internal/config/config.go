package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret is the fallback signing secret; rejected when APP_ENV=production.
const DevJWTSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Mail      MailConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
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
	Level string
	// Format is json or console.
	Format string
}

// AuthConfig defines token signing and password hashing parameters.
type AuthConfig struct {
	JWTSecret             string
	JWTAlgorithm          string
	AccessTokenTTLMinutes int
	RefreshTokenTTLHours  int
	EmailTokenTTLHours    int
	PasswordAlgorithm     string
	BcryptCost            int
	Argon2MemoryKB        int
	Argon2Iterations      int
	Argon2Threads         int
}

// RateLimitConfig holds the default call budget for guarded routes.
type RateLimitConfig struct {
	Calls         int
	WindowSeconds int
	KeyPrefix     string
}

// MailConfig holds SMTP settings for confirmation emails.
type MailConfig struct {
	Server     string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	QueueSize  int
	MaxRetries int
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
			Name:                  getEnv("APP_NAME", "contacts-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
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
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", DevJWTSecret),
			JWTAlgorithm:          strings.ToUpper(getEnv("AUTH_JWT_ALGORITHM", "HS256")),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 15),
			RefreshTokenTTLHours:  getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 7*24),
			EmailTokenTTLHours:    getEnvAsInt("AUTH_EMAIL_TOKEN_TTL_HOURS", 7*24),
			PasswordAlgorithm:     strings.ToLower(getEnv("AUTH_PASSWORD_ALGORITHM", "argon2id")),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			Argon2MemoryKB:        getEnvAsInt("AUTH_ARGON2_MEMORY_KB", 64*1024),
			Argon2Iterations:      getEnvAsInt("AUTH_ARGON2_ITERATIONS", 1),
			Argon2Threads:         getEnvAsInt("AUTH_ARGON2_THREADS", 4),
		},
		RateLimit: RateLimitConfig{
			Calls:         getEnvAsInt("RATE_LIMIT_CALLS", 10),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_PREFIX", "ratelimit"),
		},
		Mail: MailConfig{
			Server:     getEnv("MAIL_SERVER", "smtp.gmail.com"),
			Port:       getEnvAsInt("MAIL_PORT", 465),
			Username:   os.Getenv("MAIL_USERNAME"),
			Password:   os.Getenv("MAIL_PASSWORD"),
			From:       getEnv("MAIL_FROM", "noreply@example.com"),
			FromName:   getEnv("MAIL_FROM_NAME", "Contacts API"),
			QueueSize:  getEnvAsInt("MAIL_QUEUE_SIZE", 100),
			MaxRetries: getEnvAsInt("MAIL_MAX_RETRIES", 3),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the auth core cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must not be empty"))
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == DevJWTSecret {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be set in production"))
	}
	switch c.Auth.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported AUTH_JWT_ALGORITHM %q", c.Auth.JWTAlgorithm))
	}
	switch c.Auth.PasswordAlgorithm {
	case "argon2id", "bcrypt":
	default:
		errs = append(errs, fmt.Errorf("unsupported AUTH_PASSWORD_ALGORITHM %q", c.Auth.PasswordAlgorithm))
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 || c.Auth.RefreshTokenTTLHours <= 0 || c.Auth.EmailTokenTTLHours <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.RateLimit.Calls <= 0 || c.RateLimit.WindowSeconds <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_CALLS and RATE_LIMIT_WINDOW_SECONDS must be positive"))
	}

	return errors.Join(errs...)
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

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// EmailTokenTTL returns the email confirmation token lifetime.
func (a AuthConfig) EmailTokenTTL() time.Duration {
	return time.Duration(a.EmailTokenTTLHours) * time.Hour
}

// Window returns the rate window duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
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
