// Package config provides configuration management for Strata.
// It loads settings from environment variables with the STRATA_ prefix,
// optionally overlaid on a YAML file, and provides sensible defaults for
// every option. Environment variables win over YAML values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Strata memory system.
type Config struct {
	Memory    MemoryConfig    `yaml:"memory"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Features  FeaturesConfig  `yaml:"features"`
}

// MemoryConfig tunes the three tiers.
type MemoryConfig struct {
	WorkingItems       int `yaml:"working_items"`       // Working-context ring size (default: 20)
	MaxTraces          int `yaml:"max_traces"`          // Episodic trace bound (default: 1000)
	FocusWindowSize    int `yaml:"focus_window_size"`   // Rotating decision log size (default: 10)
	ConsolidationEvery int `yaml:"consolidation_every"` // Decisions between consolidation passes (default: 20)
}

// RetrievalConfig tunes the gated retrieval path.
type RetrievalConfig struct {
	TokenBudget float64 `yaml:"token_budget"` // Per-call token budget (default: 2000)
	MaxItems    int     `yaml:"max_items"`    // Default item cap per retrieval (default: 10)
	Tokenizer   string  `yaml:"tokenizer"`    // heuristic or tiktoken (default: heuristic)
	CacheSize   int     `yaml:"cache_size"`   // Token-estimate LRU size (default: 1024)
}

// StorageConfig selects and locates the snapshot backend.
type StorageConfig struct {
	Engine          string `yaml:"engine"`           // json or sqlite (default: json)
	DataPath        string `yaml:"data_path"`        // Data directory (default: ./data)
	BreakerFailures int    `yaml:"breaker_failures"` // Consecutive failures before the breaker opens (default: 3)
	BreakerTimeout  string `yaml:"breaker_timeout"`  // Open-state cooldown duration (default: 30s)
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host      string  `yaml:"host"`       // Bind host (default: 127.0.0.1)
	Port      int     `yaml:"port"`       // Bind port (default: 7171)
	RateLimit float64 `yaml:"rate_limit"` // Requests per second per server (default: 50)
	RateBurst int     `yaml:"rate_burst"` // Burst allowance (default: 100)
}

// FeaturesConfig contains feature flags.
type FeaturesConfig struct {
	Persistence     bool `yaml:"persistence"`      // Snapshot persistence (default: true)
	DriftMonitoring bool `yaml:"drift_monitoring"` // Quality-signal drift tracking (default: true)
	Contradictions  bool `yaml:"contradictions"`   // Contradiction detection on store (default: true)
	EnableWebSocket bool `yaml:"enable_websocket"` // Event stream endpoint (default: true)
	EnableMetrics   bool `yaml:"enable_metrics"`   // Prometheus endpoint (default: true)
	WatchSnapshots  bool `yaml:"watch_snapshots"`  // fsnotify snapshot watcher (default: false)
}

// Load builds a Config from defaults and STRATA_ environment variables.
func Load() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile builds a Config from defaults, a YAML file, then STRATA_
// environment variables, in increasing precedence.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Storage.Engine != "json" && c.Storage.Engine != "sqlite" {
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Retrieval.Tokenizer != "heuristic" && c.Retrieval.Tokenizer != "tiktoken" {
		return fmt.Errorf("config: unknown tokenizer %q", c.Retrieval.Tokenizer)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Retrieval.TokenBudget <= 0 {
		return fmt.Errorf("config: token budget must be positive")
	}
	return nil
}

// Addr returns the server bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaults() *Config {
	return &Config{
		Memory: MemoryConfig{
			WorkingItems:       20,
			MaxTraces:          1000,
			FocusWindowSize:    10,
			ConsolidationEvery: 20,
		},
		Retrieval: RetrievalConfig{
			TokenBudget: 2000,
			MaxItems:    10,
			Tokenizer:   "heuristic",
			CacheSize:   1024,
		},
		Storage: StorageConfig{
			Engine:          "json",
			DataPath:        "./data",
			BreakerFailures: 3,
			BreakerTimeout:  "30s",
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      7171,
			RateLimit: 50,
			RateBurst: 100,
		},
		Features: FeaturesConfig{
			Persistence:     true,
			DriftMonitoring: true,
			Contradictions:  true,
			EnableWebSocket: true,
			EnableMetrics:   true,
			WatchSnapshots:  false,
		},
	}
}

func (c *Config) applyEnv() {
	c.Memory.WorkingItems = getEnvInt("STRATA_WORKING_ITEMS", c.Memory.WorkingItems)
	c.Memory.MaxTraces = getEnvInt("STRATA_MAX_TRACES", c.Memory.MaxTraces)
	c.Memory.FocusWindowSize = getEnvInt("STRATA_FOCUS_WINDOW_SIZE", c.Memory.FocusWindowSize)
	c.Memory.ConsolidationEvery = getEnvInt("STRATA_CONSOLIDATION_EVERY", c.Memory.ConsolidationEvery)

	c.Retrieval.TokenBudget = getEnvFloat("STRATA_TOKEN_BUDGET", c.Retrieval.TokenBudget)
	c.Retrieval.MaxItems = getEnvInt("STRATA_MAX_ITEMS", c.Retrieval.MaxItems)
	c.Retrieval.Tokenizer = getEnv("STRATA_TOKENIZER", c.Retrieval.Tokenizer)
	c.Retrieval.CacheSize = getEnvInt("STRATA_TOKEN_CACHE_SIZE", c.Retrieval.CacheSize)

	c.Storage.Engine = getEnv("STRATA_STORAGE_ENGINE", c.Storage.Engine)
	c.Storage.DataPath = getEnv("STRATA_DATA_PATH", c.Storage.DataPath)
	c.Storage.BreakerFailures = getEnvInt("STRATA_BREAKER_FAILURES", c.Storage.BreakerFailures)
	c.Storage.BreakerTimeout = getEnv("STRATA_BREAKER_TIMEOUT", c.Storage.BreakerTimeout)

	c.Server.Host = getEnv("STRATA_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("STRATA_PORT", c.Server.Port)
	c.Server.RateLimit = getEnvFloat("STRATA_RATE_LIMIT", c.Server.RateLimit)
	c.Server.RateBurst = getEnvInt("STRATA_RATE_BURST", c.Server.RateBurst)

	c.Features.Persistence = getEnvBool("STRATA_ENABLE_PERSISTENCE", c.Features.Persistence)
	c.Features.DriftMonitoring = getEnvBool("STRATA_ENABLE_DRIFT_MONITORING", c.Features.DriftMonitoring)
	c.Features.Contradictions = getEnvBool("STRATA_ENABLE_CONTRADICTIONS", c.Features.Contradictions)
	c.Features.EnableWebSocket = getEnvBool("STRATA_ENABLE_WEBSOCKET", c.Features.EnableWebSocket)
	c.Features.EnableMetrics = getEnvBool("STRATA_ENABLE_METRICS", c.Features.EnableMetrics)
	c.Features.WatchSnapshots = getEnvBool("STRATA_WATCH_SNAPSHOTS", c.Features.WatchSnapshots)
}

// getEnv retrieves an environment variable or returns the fallback.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable or returns the
// fallback. Unparseable values fall back silently.
func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
