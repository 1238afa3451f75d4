package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

// DevJWTSecret is only acceptable outside production.
const DevJWTSecret = "not-so-secret-now-is-it?"

type GoogleConfig struct {
	ClientID        string `env:"CLIENT_ID"`
	ClientSecret    string `env:"CLIENT_SECRET"`
	CallbackURLDev  string `env:"CALLBACK_URL_DEV" envDefault:"http://localhost:8080/api/v1/auth/google/callback"`
	CallbackURLProd string `env:"CALLBACK_URL_PROD"`
}

func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type R2Config struct {
	AccountID       string `env:"ACCOUNT_ID"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	BucketName      string `env:"BUCKET_NAME"`
	Region          string `env:"REGION" envDefault:"auto"`
	PublicBaseURL   string `env:"PUBLIC_BASE_URL"`
}

func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.BucketName != ""
}

type Config struct {
	DB_URL              string        `env:"DB_URL"`
	Port                string        `env:"PORT" envDefault:"8080"`
	JWTSecret           string        `env:"JWT_SECRET" envDefault:"not-so-secret-now-is-it?"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	Environment         string        `env:"ENV" envDefault:"development"`
	FrontendURL         string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	BcryptCost          int           `env:"BCRYPT_COST" envDefault:"10"`
	MaxUsernameAttempts int           `env:"MAX_USERNAME_ATTEMPTS" envDefault:"5"`
	RedisURL            string        `env:"REDIS_URL"`
	CorsOrigins         []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,https://icfaicollab.vercel.app"`
	Google              GoogleConfig  `envPrefix:"GOOGLE_"`
	R2                  R2Config      `envPrefix:"R2_"`
}

// Load reads ENV_FILE (default .env) if present, then binds the environment.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Info("no env file found, using process environment", "file", envFile)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// GoogleCallbackURL picks the callback registered for the current environment.
func (c Config) GoogleCallbackURL() string {
	if c.IsProduction() && c.Google.CallbackURLProd != "" {
		return c.Google.CallbackURLProd
	}
	return c.Google.CallbackURLDev
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		return errors.New("JWT_SECRET must be overridden in production")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	return nil
}

func (c Config) CorsConfig() cors.Options {
	return cors.Options{
		AllowedOrigins:   c.CorsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}
