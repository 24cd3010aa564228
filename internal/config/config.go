// Package config loads the service configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultListen         = ":8080"
	DefaultRequestTimeout = 15 * time.Second
	DefaultRefreshCron    = "*/5 * * * *"
	DefaultRetryCron      = "* * * * *"
)

// DatabaseConfig holds PostgreSQL connection settings. The in-memory stores
// are used when Host is empty.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DSN builds a postgres:// connection URL. Values are escaped, so empty or
// unusual passwords survive parsing.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	switch {
	case c.Password != "":
		u.User = url.UserPassword(c.User, c.Password)
	case c.User != "":
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// CSRFConfig enables CSRF protection for form posts when Key is set.
type CSRFConfig struct {
	Key            string   `yaml:"key"`
	Secure         bool     `yaml:"secure"`
	TrustedOrigins []string `yaml:"trusted_origins"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// EventEndpoint is the spreadsheet-backed club schedule endpoint.
	EventEndpoint string `yaml:"event_endpoint"`

	// UserEndpoint is the member record endpoint.
	UserEndpoint string `yaml:"user_endpoint"`

	// RequestTimeout bounds every call to the remote endpoints.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// RefreshCron is the cron schedule for reloading events from the
	// event endpoint.
	RefreshCron string `yaml:"refresh"`

	// RetryCron is the cron schedule for retrying failed compensations.
	RetryCron string `yaml:"retry"`

	// Editors lists the emails allowed to edit events. Empty means anyone.
	Editors []string `yaml:"editors"`

	// AllowedOrigins is the CORS allow list. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	Database DatabaseConfig `yaml:"database"`
	CSRF     CSRFConfig     `yaml:"csrf"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         DefaultListen,
		RequestTimeout: DefaultRequestTimeout,
		RefreshCron:    DefaultRefreshCron,
		RetryCron:      DefaultRetryCron,
		Editors:        []string{},
		AllowedOrigins: []string{},
		Database: DatabaseConfig{
			Port:    "5432",
			User:    "postgres",
			Name:    "clubschedule",
			SSLMode: "disable",
		},
	}
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.RetryCron == "" {
		c.RetryCron = def.RetryCron
	}
	if c.Editors == nil {
		c.Editors = []string{}
	}
	for i, e := range c.Editors {
		c.Editors[i] = strings.ToLower(strings.TrimSpace(e))
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{}
	}
	if c.Database.Port == "" {
		c.Database.Port = def.Database.Port
	}
	if c.Database.User == "" {
		c.Database.User = def.Database.User
	}
	if c.Database.Name == "" {
		c.Database.Name = def.Database.Name
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = def.Database.SSLMode
	}
}

// Load reads the YAML file at path, applies environment overrides and
// normalizes the result. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.Normalize()
	return cfg, nil
}

// applyEnv overrides file values with well-known environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.EventEndpoint, "CLUB_SCHEDULE_URL")
	set(&c.UserEndpoint, "MEMBER_URL")
	set(&c.Listen, "LISTEN")
	if port := getenv("PORT"); port != "" && getenv("LISTEN") == "" {
		c.Listen = ":" + port
	}
	set(&c.Database.Host, "DB_HOST")
	set(&c.Database.Port, "DB_PORT")
	set(&c.Database.User, "DB_USER")
	set(&c.Database.Password, "DB_PASSWORD")
	set(&c.Database.Name, "DB_NAME")
	set(&c.Database.SSLMode, "DB_SSLMODE")
	set(&c.CSRF.Key, "CSRF_KEY")
}

// Validate checks that the configuration can run the service.
func (c *Config) Validate() error {
	if err := validateEndpoint("event_endpoint", c.EventEndpoint); err != nil {
		return err
	}
	if err := validateEndpoint("user_endpoint", c.UserEndpoint); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", c.RefreshCron, err)
	}
	if _, err := cron.ParseStandard(c.RetryCron); err != nil {
		return fmt.Errorf("retry schedule %q: %w", c.RetryCron, err)
	}
	if c.CSRF.Key != "" && len(c.CSRF.Key) != 32 {
		return errors.New("csrf key must be 32 bytes")
	}
	return nil
}

// IsEditor reports whether email may edit events.
func (c *Config) IsEditor(email string) bool {
	if len(c.Editors) == 0 {
		return true
	}
	return slices.Contains(c.Editors, strings.ToLower(strings.TrimSpace(email)))
}

func validateEndpoint(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", name)
	}
	return nil
}
