package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from files and environment
// variables.
type Config struct {
	Env       string `mapstructure:"env"`
	HTTPAddr  string `mapstructure:"http_addr"`
	PublicURL string `mapstructure:"public_url"`

	DBDriver string `mapstructure:"db_driver"` // sqlite|postgres
	DBDSN    string `mapstructure:"-"`

	CORSOrigins []string `mapstructure:"cors_origins"`

	AuthSecret      string        `mapstructure:"-"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	MagicLinkTTL    time.Duration `mapstructure:"magic_link_ttl"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`

	SnapshotDir string `mapstructure:"snapshot_dir"`

	SMTP SMTP `mapstructure:"smtp"`
}

// SMTP configures the magic-link mailer. When Host is empty the server
// falls back to logging links instead of sending mail.
type SMTP struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"-"`
	Password string `mapstructure:"-"`
	From     string `mapstructure:"from"`
}

var ErrMissingAuthSecret = errors.New("AUTH_HMAC_SECRET is required outside local env")

// Load reads configuration from an optional config file and environment
// variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	v.SetDefault("env", "local")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("access_token_ttl", "1h")
	v.SetDefault("refresh_token_ttl", "720h")
	v.SetDefault("magic_link_ttl", "15m")
	v.SetDefault("session_ttl", "2h")
	v.SetDefault("snapshot_dir", "./data/snapshots")
	v.SetDefault("smtp.port", 587)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("db_dsn", "DB_DSN")
	_ = v.BindEnv("auth_secret", "AUTH_HMAC_SECRET")
	_ = v.BindEnv("smtp.username", "SMTP_USERNAME")
	_ = v.BindEnv("smtp.password", "SMTP_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg.DBDSN = v.GetString("db_dsn")
	cfg.SMTP.Username = v.GetString("smtp.username")
	cfg.SMTP.Password = v.GetString("smtp.password")

	cfg.AuthSecret = v.GetString("auth_secret")
	if cfg.AuthSecret == "" {
		if cfg.Env != "local" {
			return nil, ErrMissingAuthSecret
		}
		cfg.AuthSecret = "quiznote-dev-secret"
	}

	return &cfg, nil
}
