// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	Release     string
	Debug       bool
	Origins     []string
	SentryDSN   string

	DatabaseURL   string
	DBMaxConns    int32
	RunMigrations bool

	RedisURL     string
	RedisTimeout time.Duration

	Auth  Auth
	Email Email

	DadataToken  string
	DadataSecret string

	AdminEmail    string
	AdminPassword string
}

type Auth struct {
	JWTSecret       string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	HeaderFirst     bool
	CookieSecure    bool
	CookieDomain    string
	LoginRateMax    int
	LoginRateWindow time.Duration
}

type Email struct {
	Host            string
	Port            int
	Username        string
	Password        string
	From            string
	Sender          string
	VerificationURL string
	VerificationTTL time.Duration
}

var defaultOrigins = []string{
	"http://localhost",
	"http://localhost:8000",
	"http://localhost:3000",
}

// Load reads a .env file when loadDotEnv is set and builds the Config.
// runMigrations is the default for RUN_MIGRATIONS_ON_STARTUP.
func Load(loadDotEnv, runMigrations bool) (*Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	redisURL, err := redisDSN()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:          envOrDefault("PORT", "8080"),
		Environment:   envOrDefault("APP_ENV", "development"),
		Release:       envOrDefault("APP_VERSION", "dev"),
		Debug:         EnvBoolOrDefault("DEBUG", false),
		Origins:       envListOrDefault("APP_ORIGINS", defaultOrigins),
		SentryDSN:     strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		DatabaseURL:   databaseURL,
		DBMaxConns:    int32(envIntOrDefault("DB_MAX_CONNS", 10)),
		RunMigrations: EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", runMigrations),
		RedisURL:      redisURL,
		RedisTimeout:  envSecondsOrDefault("REDIS_TIMEOUT_SECONDS", 3),
		Auth: Auth{
			JWTSecret:       jwtSecret,
			AccessTTL:       envSecondsOrDefault("AUTH_ACCESS_TOKEN_EXPIRES_IN", 900),
			RefreshTTL:      envSecondsOrDefault("AUTH_REFRESH_TOKEN_EXPIRES_IN", 3600),
			HeaderFirst:     EnvBoolOrDefault("AUTH_HEADER_FIRST", true),
			CookieSecure:    EnvBoolOrDefault("AUTH_COOKIE_SECURE", false),
			CookieDomain:    strings.TrimSpace(os.Getenv("AUTH_COOKIE_DOMAIN")),
			LoginRateMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
			LoginRateWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Email: Email{
			Host:            strings.TrimSpace(os.Getenv("EMAIL_HOST")),
			Port:            envIntOrDefault("EMAIL_PORT", 465),
			Username:        strings.TrimSpace(os.Getenv("EMAIL_USERNAME")),
			Password:        os.Getenv("EMAIL_PASSWORD"),
			From:            strings.TrimSpace(os.Getenv("EMAIL_EMAIL")),
			Sender:          envOrDefault("EMAIL_SENDER", "pawmate.ru"),
			VerificationURL: strings.TrimRight(strings.TrimSpace(os.Getenv("EMAIL_VERIFICATION_CODE_URL")), "/"),
			VerificationTTL: envSecondsOrDefault("EMAIL_VERIFICATION_CODE_EXPIRE_SEC", 900),
		},
		DadataToken:   strings.TrimSpace(os.Getenv("DADATA_TOKEN")),
		DadataSecret:  strings.TrimSpace(os.Getenv("DADATA_SECRET")),
		AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.Email.VerificationURL == "" {
		return nil, fmt.Errorf("missing required env: EMAIL_VERIFICATION_CODE_URL")
	}
	if _, err := url.ParseRequestURI(cfg.Email.VerificationURL); err != nil {
		return nil, fmt.Errorf("invalid EMAIL_VERIFICATION_CODE_URL: %w", err)
	}

	return cfg, nil
}

// redisDSN prefers REDIS_URL and otherwise assembles one from REDIS_HOST,
// REDIS_PORT, REDIS_USERNAME and REDIS_PASSWORD.
func redisDSN() (string, error) {
	if dsn := strings.TrimSpace(os.Getenv("REDIS_URL")); dsn != "" {
		return dsn, nil
	}

	host, err := mustEnv("REDIS_HOST")
	if err != nil {
		return "", fmt.Errorf("%w (or REDIS_URL)", err)
	}
	u := url.URL{
		Scheme: "redis",
		Host:   host + ":" + envOrDefault("REDIS_PORT", "6379"),
		Path:   "/0",
		User:   url.UserPassword(envOrDefault("REDIS_USERNAME", "default"), os.Getenv("REDIS_PASSWORD")),
	}
	return u.String(), nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envListOrDefault(name string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
