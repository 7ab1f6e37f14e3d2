package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the hojsle raw-data pipeline.
type Config struct {
	Storage Storage       `yaml:"storage"`
	Server  Server        `yaml:"server"`
	Sources SourcesConfig `yaml:"sources"`
	Collect CollectConfig `yaml:"collect"`
	Logging Logging       `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration for the read API.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SourcesConfig holds endpoints and limits for the three external data
// providers. Base URLs are overridable mainly for tests.
type SourcesConfig struct {
	QuotesBaseURL   string `yaml:"quotes_base_url"`  // historical quotes provider (tier A)
	PortalBaseURL   string `yaml:"portal_base_url"`  // financial-portal chart API (tier B)
	KRXBaseURL      string `yaml:"krx_base_url"`     // exchange statistics provider (tier C)
	ListingBaseURL  string `yaml:"listing_base_url"` // portal listing endpoints (universe)
	PortalCount     int    `yaml:"portal_count"`     // chart rows per portal request
	TimeoutSeconds  int    `yaml:"timeout_seconds"`  // per-request HTTP timeout
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// CollectConfig controls collection behaviour.
type CollectConfig struct {
	StartDate     string `yaml:"start_date"`     // bulk-build history start (YYYY-MM-DD)
	ProgressEvery int    `yaml:"progress_every"` // log a progress line every N symbols
	RetryAttempts int    `yaml:"retry_attempts"` // patch-mode retry cap on portal calls
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies defaults, and then applies environment variable
// overrides. A missing file is not an error: the CLIs then run on Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/hojsle.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Sources.QuotesBaseURL == "" {
		cfg.Sources.QuotesBaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Sources.PortalBaseURL == "" {
		cfg.Sources.PortalBaseURL = "https://m.stock.naver.com"
	}
	if cfg.Sources.KRXBaseURL == "" {
		cfg.Sources.KRXBaseURL = "http://data.krx.co.kr"
	}
	if cfg.Sources.ListingBaseURL == "" {
		cfg.Sources.ListingBaseURL = "https://m.stock.naver.com"
	}
	if cfg.Sources.PortalCount == 0 {
		cfg.Sources.PortalCount = 4500
	}
	if cfg.Sources.TimeoutSeconds == 0 {
		cfg.Sources.TimeoutSeconds = 7
	}
	if cfg.Sources.RateLimitPerMin == 0 {
		cfg.Sources.RateLimitPerMin = 120
	}
	if cfg.Collect.StartDate == "" {
		cfg.Collect.StartDate = "2015-01-02"
	}
	if cfg.Collect.ProgressEvery == 0 {
		cfg.Collect.ProgressEvery = 50
	}
	if cfg.Collect.RetryAttempts == 0 {
		cfg.Collect.RetryAttempts = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HOJSLE_QUOTES_URL"); v != "" {
		cfg.Sources.QuotesBaseURL = v
	}
	if v := os.Getenv("HOJSLE_PORTAL_URL"); v != "" {
		cfg.Sources.PortalBaseURL = v
	}
	if v := os.Getenv("HOJSLE_KRX_URL"); v != "" {
		cfg.Sources.KRXBaseURL = v
	}
}
