// Package common provides shared utilities for quotebar
package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for quotebar
type Config struct {
	Cache   CacheConfig   `toml:"cache"`
	Feed    FeedConfig    `toml:"feed"`
	Clients ClientsConfig `toml:"clients"`
	Logging LoggingConfig `toml:"logging"`
}

// CacheConfig holds quote cache configuration
type CacheConfig struct {
	Path string `toml:"path"` // empty means ~/.quotebar_cache.json
	TTL  string `toml:"ttl"`
}

// GetTTL parses and returns the cache TTL duration
func (c *CacheConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 300 * time.Second
	}
	return d
}

// FeedConfig holds orchestrator configuration
type FeedConfig struct {
	// DataSourcePriority is the ordered provider list. Providers not
	// listed are appended in the built-in default order.
	DataSourcePriority []string `toml:"data_source_priority"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Yahoo        YahooConfig        `toml:"yahoo"`
	Finnhub      FinnhubConfig      `toml:"finnhub"`
	AlphaVantage AlphaVantageConfig `toml:"alphavantage"`
	Stooq        StooqConfig        `toml:"stooq"`
}

// YahooConfig holds Yahoo Finance client configuration
type YahooConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit string `toml:"rate_limit"` // minimum spacing between calls
	Timeout   string `toml:"timeout"`
}

// GetRateLimit parses and returns the minimum inter-call spacing
func (c *YahooConfig) GetRateLimit() time.Duration {
	return parseDurationOr(c.RateLimit, 500*time.Millisecond)
}

// GetTimeout parses and returns the per-call timeout
func (c *YahooConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 10*time.Second)
}

// FinnhubConfig holds Finnhub client configuration
type FinnhubConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit string `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetRateLimit parses and returns the minimum inter-call spacing
func (c *FinnhubConfig) GetRateLimit() time.Duration {
	return parseDurationOr(c.RateLimit, 500*time.Millisecond)
}

// GetTimeout parses and returns the per-call timeout
func (c *FinnhubConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 10*time.Second)
}

// AlphaVantageConfig holds Alpha Vantage client configuration
type AlphaVantageConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit string `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetRateLimit parses and returns the minimum inter-call spacing.
// Alpha Vantage throttles aggressively on the free tier, so the default
// spacing is wider than for the other quote providers.
func (c *AlphaVantageConfig) GetRateLimit() time.Duration {
	return parseDurationOr(c.RateLimit, time.Second)
}

// GetTimeout parses and returns the per-call timeout
func (c *AlphaVantageConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 10*time.Second)
}

// StooqConfig holds Stooq CSV client configuration
type StooqConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit string `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetRateLimit parses and returns the minimum inter-call spacing
func (c *StooqConfig) GetRateLimit() time.Duration {
	return parseDurationOr(c.RateLimit, time.Second)
}

// GetTimeout parses and returns the per-call timeout
func (c *StooqConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 10*time.Second)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			TTL: "300s",
		},
		Clients: ClientsConfig{
			Yahoo: YahooConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				RateLimit: "500ms",
				Timeout:   "10s",
			},
			Finnhub: FinnhubConfig{
				BaseURL:   "https://finnhub.io",
				RateLimit: "500ms",
				Timeout:   "10s",
			},
			AlphaVantage: AlphaVantageConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: "1s",
				Timeout:   "10s",
			},
			Stooq: StooqConfig{
				BaseURL:   "https://stooq.com",
				RateLimit: "1s",
				Timeout:   "10s",
			},
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if level := os.Getenv("QUOTEBAR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("QUOTEBAR_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	}

	if ttl := os.Getenv("QUOTEBAR_CACHE_TTL"); ttl != "" {
		config.Cache.TTL = ttl
	}

	if priority := os.Getenv("DATA_SOURCE_PRIORITY"); priority != "" {
		config.Feed.DataSourcePriority = SplitList(priority)
	}
}

// SplitList splits a comma-separated list, trimming whitespace and
// dropping empty elements.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ResolveAPIKey resolves an API key from environment variables with a
// config-file fallback. Environment wins so keys never need to live in a
// checked-in config file.
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"finnhub_api_key":      {"FINNHUB_API_KEY", "QUOTEBAR_FINNHUB_API_KEY"},
		"alphavantage_api_key": {"ALPHAVANTAGE_API_KEY", "QUOTEBAR_ALPHAVANTAGE_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}
