// Package config provides configuration management for the livehook server.
// Settings come from the environment (optionally seeded from a .env file) or
// from a YAML/env file passed with --config; environment variables win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/coregx/livehook/model"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Config holds all configuration for the livehook server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Twitch   TwitchConfig   `yaml:"twitch"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Discord  DiscordConfig  `yaml:"discord"`
	Renewal  RenewalConfig  `yaml:"renewal"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port int    `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite3"` // sqlite3, postgres, mysql, memory
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"livehook"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"livehook.db"`
	Prefix   string `yaml:"prefix" env:"DB_PREFIX" env-default:"livehook_"` // Table prefix
}

// TwitchConfig holds Helix API and hub settings.
type TwitchConfig struct {
	ClientID     string        `yaml:"client_id" env:"TWITCH_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"TWITCH_CLIENT_SECRET"`
	APIURL       string        `yaml:"api_url" env:"TWITCH_API_URL" env-default:"https://api.twitch.tv/helix"`
	HubURL       string        `yaml:"hub_url" env:"TWITCH_HUB_URL" env-default:"https://api.twitch.tv/helix/webhooks/hub"`
	TokenURL     string        `yaml:"token_url" env:"TWITCH_TOKEN_URL" env-default:"https://id.twitch.tv/oauth2/token"`
	RateLimit    int           `yaml:"rate_limit" env:"TWITCH_RATE_LIMIT" env-default:"10"` // requests per second
	HubTimeout   time.Duration `yaml:"hub_timeout" env:"HUB_TIMEOUT" env-default:"10s"`
	LeaseSeconds int           `yaml:"lease_seconds" env:"LEASE_SECONDS" env-default:"864000"`
}

// WebhookConfig holds the public callback settings.
type WebhookConfig struct {
	BaseURL         string        `yaml:"base_url" env:"WEBHOOK_BASE_URL"`
	Secret          string        `yaml:"secret" env:"WEBHOOK_SECRET"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" env:"DELIVERY_TIMEOUT" env-default:"30s"`
}

// DiscordConfig holds the chat bot settings.
type DiscordConfig struct {
	Token string `yaml:"token" env:"DISCORD_TOKEN"`
}

// RenewalConfig holds the renewal scan settings.
type RenewalConfig struct {
	Interval    time.Duration `yaml:"interval" env:"RENEWAL_INTERVAL" env-default:"60m"`
	Concurrency int           `yaml:"concurrency" env:"RENEWAL_CONCURRENCY" env-default:"8"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Load reads configuration with Read and validates every section.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read reads configuration without validating it. A .env file in the working
// directory is loaded first when present; path, if set, names a YAML or .env file.
func Read(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Database),
		validation.Field(&c.Twitch),
		validation.Field(&c.Webhook),
		validation.Field(&c.Discord),
		validation.Field(&c.Renewal),
		validation.Field(&c.Log),
	)
}

func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func (c DatabaseConfig) Validate() error {
	external := c.Driver == DriverPostgres || c.Driver == DriverMySQL
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres, DriverMySQL, DriverMemory)),
		validation.Field(&c.Name, validation.When(c.Driver != DriverMemory, validation.Required)),
		validation.Field(&c.Host, validation.When(external, validation.Required)),
		validation.Field(&c.Port, validation.When(external, validation.Required, validation.Min(1), validation.Max(65535))),
		validation.Field(&c.Prefix, validation.Match(identifierPattern)),
	)
}

func (c TwitchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.APIURL, validation.Required, is.URL),
		validation.Field(&c.HubURL, validation.Required, is.URL),
		validation.Field(&c.TokenURL, validation.Required, is.URL),
		validation.Field(&c.RateLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.HubTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.LeaseSeconds, validation.Required, validation.Min(1), validation.Max(model.MaxLeaseSeconds)),
	)
}

func (c WebhookConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL,
			validation.By(func(value interface{}) error {
				s, _ := value.(string)
				if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
					return errors.New("must be an http or https URL")
				}
				return nil
			})),
		validation.Field(&c.Secret, validation.Length(0, 200)),
		validation.Field(&c.DeliveryTimeout, validation.Required, validation.Min(time.Second)),
	)
}

func (c DiscordConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Token, validation.Required),
	)
}

func (c RenewalConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1)),
	)
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "warning", "error", "off")),
		validation.Field(&c.Format, validation.In("json", "console")),
	)
}

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetDSN returns the database connection string based on driver.
// MySQL DSNs enable multiStatements so migrations can run multi-statement files.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			c.User, c.Password, c.Host, c.Port, c.Name)
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Name)
	case DriverSQLite:
		return c.Name + "?_txlock=immediate&_busy_timeout=5000" // immediate transactions take the write lock up front
	default:
		return ""
	}
}
