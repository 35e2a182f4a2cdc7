// internal/common/config/config.go
package config

import (
	"strings"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	RPC     RPCConfig     `mapstructure:"rpc"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// RPCConfig holds settings for the forms service JSON-RPC endpoint.
type RPCConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	Path              string  `mapstructure:"path"`
	Timeout           int     `mapstructure:"timeout"`       // milliseconds
	MaxRetries        int     `mapstructure:"max_retries"`   // transport-level, 0 disables
	RetryBackoff      int     `mapstructure:"retry_backoff"` // milliseconds, doubled per attempt
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	SequentialIDs     bool    `mapstructure:"sequential_ids"`
}

// Endpoint returns the full URL of the RPC endpoint.
func (r RPCConfig) Endpoint() string {
	return strings.TrimRight(r.BaseURL, "/") + "/" + strings.TrimLeft(r.Path, "/")
}

// AuthConfig selects how the transport authenticates. A static Token wins
// over client credentials.
type AuthConfig struct {
	Token        string   `mapstructure:"token"`
	TokenURL     string   `mapstructure:"token_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds settings for the watch command's health/metrics server.
type MetricsConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	ProbeInterval int    `mapstructure:"probe_interval"` // milliseconds
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
