// Package config loads service settings from a yaml file, .env files and
// AUTH_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, AUTH_TOKENS_ISSUER for
// tokens.issuer.
const EnvPrefix = "AUTH"

type Tokens struct {
	SigningKey       string        `mapstructure:"signing_key"`
	Issuer           string        `mapstructure:"issuer"`
	AccessTokenTTL   time.Duration `mapstructure:"access_ttl"`
	RefreshTokenTTL  time.Duration `mapstructure:"refresh_ttl"`
	RegisterTokenTTL time.Duration `mapstructure:"register_ttl"`
	PasswordResetTTL time.Duration `mapstructure:"password_reset_ttl"`
}

type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Redis struct {
	// URL enables the redis key set cache. Empty keeps it in memory.
	URL string `mapstructure:"url"`
}

type SMTP struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	From          string `mapstructure:"from"`
	ResetLinkBase string `mapstructure:"reset_link_base"`
}

type Providers struct {
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	KeySetTTL       time.Duration `mapstructure:"jwks_ttl"`
	RefetchInterval time.Duration `mapstructure:"jwks_refetch_interval"`
	KakaoAppKey     string        `mapstructure:"kakao_app_key"`
	GoogleClientIDs []string      `mapstructure:"google_client_ids"`
	NaverUserInfo   string        `mapstructure:"naver_userinfo_url"`
}

type Server struct {
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
	ForbiddenTTL    time.Duration `mapstructure:"forbidden_words_ttl"`
	LogLevel        string        `mapstructure:"log_level"`
	Development     bool          `mapstructure:"development"`
}

// Config is the full service configuration. It implements auth.Config.
type Config struct {
	Tokens    Tokens    `mapstructure:"tokens"`
	Database  Database  `mapstructure:"database"`
	Redis     Redis     `mapstructure:"redis"`
	SMTP      SMTP      `mapstructure:"smtp"`
	Providers Providers `mapstructure:"providers"`
	Server    Server    `mapstructure:"server"`
}

var defaults = map[string]any{
	"tokens.issuer":             "epik",
	"tokens.signing_key":        "",
	"tokens.access_ttl":         "30m",
	"tokens.refresh_ttl":        "336h",
	"tokens.register_ttl":       "10m",
	"tokens.password_reset_ttl": "30m",

	"database.driver": "sqlite",
	"database.dsn":    "file:epik.db?cache=shared",

	"redis.url": "",

	"smtp.host":            "",
	"smtp.port":            587,
	"smtp.username":        "",
	"smtp.password":        "",
	"smtp.from":            "",
	"smtp.reset_link_base": "epik://reset-password",

	"providers.http_timeout":          "5s",
	"providers.jwks_ttl":              "1h",
	"providers.jwks_refetch_interval": "10s",
	"providers.kakao_app_key":         "",
	"providers.google_client_ids":     []string{},
	"providers.naver_userinfo_url":    "https://openapi.naver.com/v1/nid/me",

	"server.metrics_addr":        ":9090",
	"server.cleanup_schedule":    "@every 1h",
	"server.forbidden_words_ttl": "10m",
	"server.log_level":           "info",
	"server.development":         false,
}

// Load reads path (optional, yaml) after loading any .env file in the
// working directory. Environment variables win over the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Tokens.SigningKey) == "" {
		errs = append(errs, errors.New("tokens.signing_key is required"))
	}
	if c.Tokens.AccessTokenTTL <= 0 || c.Tokens.RefreshTokenTTL <= c.Tokens.AccessTokenTTL {
		errs = append(errs, errors.New("tokens.refresh_ttl must exceed tokens.access_ttl"))
	}
	if c.Tokens.RegisterTokenTTL <= 0 || c.Tokens.PasswordResetTTL <= 0 {
		errs = append(errs, errors.New("tokens ttls must be positive"))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) GetSigningKey() string {
	return c.Tokens.SigningKey
}

func (c *Config) GetIssuer() string {
	return c.Tokens.Issuer
}

func (c *Config) GetAccessTokenTTL() time.Duration {
	return c.Tokens.AccessTokenTTL
}

func (c *Config) GetRefreshTokenTTL() time.Duration {
	return c.Tokens.RefreshTokenTTL
}

func (c *Config) GetRegisterTokenTTL() time.Duration {
	return c.Tokens.RegisterTokenTTL
}

func (c *Config) GetPasswordResetTTL() time.Duration {
	return c.Tokens.PasswordResetTTL
}

// MailEnabled reports whether SMTP settings are present.
func (c *Config) MailEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}
