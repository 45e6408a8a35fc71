// Package config manages litfuse configuration from environment variables.
//
// A .env file in the working directory is loaded first (best effort), then
// LITFUSE_* variables override. Provider credentials are optional: the
// aggregator degrades to anonymous rate limits when a key is absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	literrors "github.com/litfuse/litfuse/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr  string
	MetricsAddr string
	DataPath    string // global pipeline store + caches
	Workspace   string // workspace pipeline store root

	// Search settings
	GlobalTimeout       time.Duration // whole-request deadline
	ProviderTimeout     time.Duration // per-provider deadline
	DefaultLimit        int
	RelaxMinimum        int // relaxer triggers below this result count
	DedupStrategy       string
	LandmarkVelocityCap float64

	// Entity cache
	CacheTTL  time.Duration
	CacheSize int

	// Provider credentials and politeness
	NCBIAPIKey     string // raises the pubmed rate limit from 3/s to 10/s
	ContactEmail   string // sent to polite pools (crossref, unpaywall, openalex)
	SemanticAPIKey string

	// Logging settings
	LogLevel  string
	LogFormat string
}

// Load reads configuration from .env plus the environment.
func Load() (*Config, error) {
	// Best effort: a missing .env is fine
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	cfg := &Config{
		ListenAddr:          getEnv("LITFUSE_LISTEN", ":7870"),
		MetricsAddr:         getEnv("LITFUSE_METRICS_LISTEN", ":9187"),
		DataPath:            getEnv("LITFUSE_DATA_PATH", defaultDataPath()),
		Workspace:           getEnv("LITFUSE_WORKSPACE", "."),
		GlobalTimeout:       getDuration("LITFUSE_GLOBAL_TIMEOUT", 30*time.Second),
		ProviderTimeout:     getDuration("LITFUSE_PROVIDER_TIMEOUT", 10*time.Second),
		DefaultLimit:        getInt("LITFUSE_DEFAULT_LIMIT", 20),
		RelaxMinimum:        getInt("LITFUSE_RELAX_MINIMUM", 1),
		DedupStrategy:       getEnv("LITFUSE_DEDUP_STRATEGY", "moderate"),
		LandmarkVelocityCap: getFloat("LITFUSE_VELOCITY_CAP", 20),
		CacheTTL:            getDuration("LITFUSE_CACHE_TTL", time.Hour),
		CacheSize:           getInt("LITFUSE_CACHE_SIZE", 1000),
		NCBIAPIKey:          getEnv("LITFUSE_NCBI_API_KEY", ""),
		ContactEmail:        getEnv("LITFUSE_CONTACT_EMAIL", ""),
		SemanticAPIKey:      getEnv("LITFUSE_S2_API_KEY", ""),
		LogLevel:            getEnv("LITFUSE_LOG_LEVEL", "info"),
		LogFormat:           getEnv("LITFUSE_LOG_FORMAT", "auto"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.GlobalTimeout <= 0 || c.ProviderTimeout <= 0 {
		return literrors.WrapConfig("validate", fmt.Errorf("timeouts must be positive"))
	}
	if c.ProviderTimeout > c.GlobalTimeout {
		log.Warn().
			Dur("provider", c.ProviderTimeout).
			Dur("global", c.GlobalTimeout).
			Msg("Provider timeout exceeds global timeout; clamping")
		c.ProviderTimeout = c.GlobalTimeout
	}
	switch strings.ToLower(c.DedupStrategy) {
	case "strict", "moderate", "aggressive":
	default:
		return literrors.WrapConfig("validate",
			fmt.Errorf("unknown dedup strategy %q", c.DedupStrategy))
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 1000
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	return nil
}

// GlobalStoreRoot is the persistence root for globally-scoped pipelines.
// The store keeps configs under pipelines/ and history under runs/ inside it.
func (c *Config) GlobalStoreRoot() string {
	return c.DataPath
}

// WorkspaceStoreRoot is the persistence root for workspace-scoped pipelines.
func (c *Config) WorkspaceStoreRoot() string {
	return filepath.Join(c.Workspace, ".litfuse")
}

func defaultDataPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "litfuse")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/litfuse"
	}
	return filepath.Join(home, ".config", "litfuse")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer in environment, using default")
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid float in environment, using default")
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration in environment, using default")
		return fallback
	}
	return d
}
