// Package config loads runtime configuration from a JSON file with
// environment-variable overrides. Priority: file < environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the pipeline.
type Config struct {
	APIKey              string  `json:"api_key"`
	Model               string  `json:"model"`
	Temperature         float64 `json:"temperature"`
	MaxTokens           int     `json:"max_tokens"`
	ResponseIntervalSec float64 `json:"response_interval_seconds"`
	EnableResearch      bool    `json:"enable_research"`
	OracleTimeoutSec    float64 `json:"oracle_timeout_seconds"`
	DBPath              string  `json:"db_path"`
	Debug               bool    `json:"debug"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Model:               "gemini-2.0-flash",
		Temperature:         0.6,
		MaxTokens:           500,
		ResponseIntervalSec: 2,
		EnableResearch:      true,
		OracleTimeoutSec:    60,
	}
}

// Load reads the config file at path (missing file is not an error) and
// applies environment overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults + env only.
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays environment variables. PARLEY_API_KEY wins over
// GEMINI_API_KEY so a dedicated key can coexist with a shared one.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("PARLEY_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("PARLEY_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("PARLEY_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PARLEY_RESEARCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableResearch = b
		}
	}
	if v := os.Getenv("PARLEY_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// ResponseInterval returns the configured rate limit as a duration.
func (c Config) ResponseInterval() time.Duration {
	return time.Duration(c.ResponseIntervalSec * float64(time.Second))
}

// OracleTimeout returns the per-call oracle timeout as a duration.
func (c Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutSec * float64(time.Second))
}

// Validate checks that the config can actually drive the pipeline.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("no API key configured; set api_key in the config file or GEMINI_API_KEY / PARLEY_API_KEY")
	}
	if c.ResponseIntervalSec < 0 {
		return fmt.Errorf("response_interval_seconds must not be negative")
	}
	return nil
}
