// Package config holds the settings shared by the CLI and the web server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zalepa/medicmap/geo"
)

// Config is read from an optional YAML file and overridden by environment.
type Config struct {
	APIURL         string        `yaml:"api_url"`
	BoundariesURL  string        `yaml:"boundaries_url"`
	BoundariesFile string        `yaml:"boundaries_file"`
	Addr           string        `yaml:"addr"`
	Timeout        time.Duration `yaml:"timeout"`
	RedisURL       string        `yaml:"redis_url"`
	// CacheTTL of zero turns the response cache off.
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:        "http://localhost:8000",
		BoundariesURL: geo.DefaultURL,
		Addr:          ":8080",
		Timeout:       30 * time.Second,
		CacheTTL:      5 * time.Minute,
		SessionTTL:    time.Hour,
	}
}

// Load returns the defaults, overlaid with the YAML file at path when path
// is non-empty, overlaid with the environment. A missing file at path is an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config YAML: %w", err)
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("MEDICMAP_API_URL"); v != "" {
		c.APIURL = v
	} else if v := getenv("NEXT_PUBLIC_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := getenv("MEDICMAP_ADDR"); v != "" {
		c.Addr = v
	} else if v := getenv("PORT"); v != "" {
		c.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := getenv("MEDICMAP_BOUNDARIES"); v != "" {
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			c.BoundariesURL = v
			c.BoundariesFile = ""
		} else {
			c.BoundariesFile = v
		}
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("api_url is empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", c.CacheTTL)
	}
	return nil
}
