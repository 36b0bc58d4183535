// Package config loads application settings from the environment, an
// optional .env file and an optional config.yml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-me-in-production"

// Config holds application configuration values.
type Config struct {
	AppPort     string        `mapstructure:"APP_PORT"`
	Env         string        `mapstructure:"APP_ENV"`
	PublicURL   string        `mapstructure:"PUBLIC_URL"`
	LogLevel    string        `mapstructure:"LOG_LEVEL"`
	DBDriver    string        `mapstructure:"DB_DRIVER"`
	DatabaseDSN string        `mapstructure:"DATABASE_DSN"`
	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	JWTTTL      time.Duration `mapstructure:"JWT_TTL"`
	RedisURL    string        `mapstructure:"REDIS_URL"`
	CacheTTL    time.Duration `mapstructure:"CACHE_TTL"`
	RabbitMQURL string        `mapstructure:"RABBITMQ_URL"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=storefinder port=5432 sslmode=disable")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CACHE_TTL", 5*time.Minute)
	v.SetDefault("RABBITMQ_URL", "")
}

// Load reads .env (if present), config.yml (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on environment variables")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the app runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures required values are present and safe.
func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("APP_PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	switch strings.ToLower(c.DBDriver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Warn().Msg("JWT_SECRET is shorter than 32 characters")
	}
	return nil
}
