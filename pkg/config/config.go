// Package config loads server settings from the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/logging"
)

// Environment variable names
const (
	EnvClusterURL    = "DYNATRACE_MANAGED_URL"
	EnvEnvironmentID = "DYNATRACE_ENVIRONMENT_ID"
	EnvAPIToken      = "DYNATRACE_API_TOKEN"
	EnvTimeout       = "REQUEST_TIMEOUT"
	EnvMaxRetries    = "MAX_RETRIES"
	EnvServerName    = "MCP_SERVER_NAME"
	EnvServerVersion = "MCP_SERVER_VERSION"
	EnvLogDir        = "MCP_LOG_DIR"
	EnvLogLevel      = "MCP_LOG_LEVEL"
	EnvLogStderr     = "MCP_LOG_STDERR"
	EnvHTTPAuthToken = "MCP_HTTP_AUTH_TOKEN"

	// UserEnvFile is read from the home directory after ./.env.
	UserEnvFile = ".mcp_env"
)

// Config is the complete server configuration
type Config struct {
	URL           string `env:"DYNATRACE_MANAGED_URL,required"`
	EnvironmentID string `env:"DYNATRACE_ENVIRONMENT_ID,required"`
	APIToken      string `env:"DYNATRACE_API_TOKEN,required"`
	// TimeoutMs bounds a single HTTP attempt.
	TimeoutMs     int    `env:"REQUEST_TIMEOUT" envDefault:"30000"`
	MaxRetries    int    `env:"MAX_RETRIES" envDefault:"3"`
	ServerName    string `env:"MCP_SERVER_NAME" envDefault:"dynatrace-managed-mcp"`
	ServerVersion string `env:"MCP_SERVER_VERSION" envDefault:"1.1.0"`
	LogDir        string `env:"MCP_LOG_DIR"`
	LogLevel      string `env:"MCP_LOG_LEVEL" envDefault:"info"`
	LogToStderr   bool   `env:"MCP_LOG_STDERR" envDefault:"false"`
	HTTPAuthToken string `env:"MCP_HTTP_AUTH_TOKEN"`
}

// LoadEnvFiles loads ./.env and ~/.mcp_env into the process environment.
// Variables already set are never overridden and missing files are skipped.
func LoadEnvFiles(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		paths = DefaultEnvFiles()
	}
	var loaded []string
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("failed to load %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// DefaultEnvFiles returns the env files consulted at startup, in order.
func DefaultEnvFiles() []string {
	files := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, UserEnvFile))
	}
	return files
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.URL = strings.TrimSpace(c.URL)
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid %s: %s", EnvClusterURL, c.URL)
	}
	c.URL = strings.TrimSuffix(c.URL, "/")

	c.EnvironmentID = strings.TrimSpace(c.EnvironmentID)
	if c.EnvironmentID == "" {
		return fmt.Errorf("%s must not be blank", EnvEnvironmentID)
	}
	if strings.TrimSpace(c.APIToken) == "" {
		return fmt.Errorf("%s must not be blank", EnvAPIToken)
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("%s must be a positive number of milliseconds, got %d", EnvTimeout, c.TimeoutMs)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%s must not be negative, got %d", EnvMaxRetries, c.MaxRetries)
	}
	return nil
}

// Timeout returns TimeoutMs as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// UserAgent returns the User-Agent sent to the cluster.
func (c *Config) UserAgent() string {
	return dynatrace.DefaultUserAgent(c.ServerName, c.ServerVersion)
}

// ClientConfig builds the immutable client configuration.
func (c *Config) ClientConfig(logger *logging.Logger) dynatrace.Config {
	return dynatrace.Config{
		URL:           c.URL,
		EnvironmentID: c.EnvironmentID,
		APIToken:      c.APIToken,
		Timeout:       c.Timeout(),
		MaxRetries:    c.MaxRetries,
		UserAgent:     c.UserAgent(),
		Logger:        logger,
	}
}

// Source reports whether key was set in the environment.
func Source(key string) logging.ConfigSource {
	if _, ok := os.LookupEnv(key); ok {
		return logging.SourceEnvironment
	}
	return logging.SourceDefault
}
