// Package app wires configuration, logging, the quote cache, and the
// provider registry into a ready-to-use feed. It is the shared assembly
// used by cmd/quotebar.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stockbar/quotebar/internal/cache"
	"github.com/stockbar/quotebar/internal/clients/alphavantage"
	"github.com/stockbar/quotebar/internal/clients/finnhub"
	"github.com/stockbar/quotebar/internal/clients/stooq"
	"github.com/stockbar/quotebar/internal/clients/yahoo"
	"github.com/stockbar/quotebar/internal/common"
	"github.com/stockbar/quotebar/internal/feed"
	"github.com/stockbar/quotebar/internal/interfaces"
)

// App holds the initialized configuration, cache, registry, and feed.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Cache       *cache.Store
	Registry    *feed.Registry
	Feed        interfaces.Feed
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes the full stack. configPath may be empty, in which case
// the default resolution logic is used: QUOTEBAR_CONFIG, then quotebar.toml
// next to the binary, then config/quotebar.toml.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("QUOTEBAR_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "quotebar.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/quotebar.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	cachePath := resolveCachePath(config.Cache.Path, binDir)
	store := cache.NewStore(logger, cachePath, config.Cache.GetTTL())

	registry := feed.NewRegistry()

	registry.Register(yahoo.NewClient(
		yahoo.WithBaseURL(config.Clients.Yahoo.BaseURL),
		yahoo.WithLogger(logger),
		yahoo.WithRateLimit(config.Clients.Yahoo.GetRateLimit()),
		yahoo.WithTimeout(config.Clients.Yahoo.GetTimeout()),
	))

	// Keyed providers join the registry only when a key resolves; the feed
	// never sees a client guaranteed to fail auth.
	finnhubKey, err := common.ResolveAPIKey("finnhub_api_key", config.Clients.Finnhub.APIKey)
	if err != nil {
		logger.Warn().Msg("Finnhub API key not configured - provider disabled")
	} else {
		registry.Register(finnhub.NewClient(finnhubKey,
			finnhub.WithBaseURL(config.Clients.Finnhub.BaseURL),
			finnhub.WithLogger(logger),
			finnhub.WithRateLimit(config.Clients.Finnhub.GetRateLimit()),
			finnhub.WithTimeout(config.Clients.Finnhub.GetTimeout()),
		))
	}

	avKey, err := common.ResolveAPIKey("alphavantage_api_key", config.Clients.AlphaVantage.APIKey)
	if err != nil {
		logger.Warn().Msg("Alpha Vantage API key not configured - provider disabled")
	} else {
		registry.Register(alphavantage.NewClient(avKey,
			alphavantage.WithBaseURL(config.Clients.AlphaVantage.BaseURL),
			alphavantage.WithLogger(logger),
			alphavantage.WithRateLimit(config.Clients.AlphaVantage.GetRateLimit()),
			alphavantage.WithTimeout(config.Clients.AlphaVantage.GetTimeout()),
		))
	}

	registry.Register(stooq.NewClient(
		stooq.WithBaseURL(config.Clients.Stooq.BaseURL),
		stooq.WithLogger(logger),
		stooq.WithRateLimit(config.Clients.Stooq.GetRateLimit()),
		stooq.WithTimeout(config.Clients.Stooq.GetTimeout()),
	))

	feedService := feed.NewService(registry, store, config.Feed.DataSourcePriority, logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Cache:       store,
		Registry:    registry,
		Feed:        feedService,
		StartupTime: startupStart,
	}

	logger.Info().
		Dur("startup", time.Since(startupStart)).
		Strs("providers", registry.Names()).
		Msg("App initialized")

	return a, nil
}

// resolveCachePath picks the cache file location: configured path (relative
// paths resolve against the binary directory), else the user's home.
func resolveCachePath(configured, binDir string) string {
	if configured != "" {
		if filepath.IsAbs(configured) {
			return configured
		}
		return filepath.Join(binDir, configured)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(binDir, cache.DefaultFileName)
	}
	return filepath.Join(home, cache.DefaultFileName)
}
