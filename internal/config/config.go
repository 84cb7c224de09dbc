// Package config defines crawl session configuration.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the first config file looked up in the working
// directory when no explicit path is given. DefaultConfigFileJSON is
// tried second.
const (
	DefaultConfigFile     = ".scout.yaml"
	DefaultConfigFileJSON = ".scout.json"
)

// FuzzConfig controls wordlist-driven path discovery.
type FuzzConfig struct {
	// Enable path fuzzing per discovered directory
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path to the wordlist file (empty = embedded default list)
	WordlistPath string `json:"wordlist_path" yaml:"wordlist_path"`

	// File extensions appended to each word, in addition to the bare word
	Extensions []string `json:"extensions" yaml:"extensions"`
}

// Config holds all configuration for a crawl session.
type Config struct {
	// Seed URL to start discovery from
	Seed string `json:"seed" yaml:"seed"`

	// User-Agent sent on every request
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// === Limits ===

	// Maximum crawl depth (0 = seed only)
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// Maximum number of URLs to discover
	MaxURLs int `json:"max_urls" yaml:"max_urls"`

	// Maximum response body size in bytes
	MaxBodySize int64 `json:"max_body_size" yaml:"max_body_size"`

	// === Speed & Concurrency ===

	// Number of concurrent workers
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Minimum delay between requests to the same host
	Delay time.Duration `json:"delay" yaml:"delay"`

	// Global requests per second across all hosts (0 = unlimited)
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Per-request timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Maximum retry attempts for transient failures
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Base delay for exponential backoff between retries
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff"`

	// Maximum number of redirect hops to follow
	MaxRedirects int `json:"max_redirects" yaml:"max_redirects"`

	// === Politeness ===

	// Respect robots.txt (fail-closed per host when unreachable)
	RespectRobots bool `json:"respect_robots" yaml:"respect_robots"`

	// === Fuzzing ===

	Fuzzing FuzzConfig `json:"fuzzing" yaml:"fuzzing"`

	// === Cache ===

	// TTL for cached responses
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// Maximum number of cache entries before LRU eviction
	CacheCapacity int `json:"cache_capacity" yaml:"cache_capacity"`

	// SQLite file backing the cache (empty = in-memory)
	CachePath string `json:"cache_path,omitempty" yaml:"cache_path,omitempty"`

	// === Transport ===

	// Proxy endpoints requests are routed through (round-robin)
	Proxies []string `json:"proxies,omitempty" yaml:"proxies,omitempty"`

	// Extra headers injected into every request
	CustomHeaders map[string]string `json:"custom_headers,omitempty" yaml:"custom_headers,omitempty"`

	// === Cancellation ===

	// How long in-flight fetches may run after cancellation
	GracePeriod time.Duration `json:"grace_period" yaml:"grace_period"`
}

// ConfigError reports an invalid configuration value. It is fatal and is
// surfaced before the crawl starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		UserAgent: "ScoutCrawler/1.0 (+https://github.com/scout-crawler)",

		MaxDepth:    3,
		MaxURLs:     1000,
		MaxBodySize: 10 * 1024 * 1024, // 10MB

		Concurrency:       5,
		Delay:             time.Second,
		RequestsPerSecond: 10,
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RetryBackoff:      time.Second,
		MaxRedirects:      10,

		RespectRobots: true,

		Fuzzing: FuzzConfig{
			Enabled:    false,
			Extensions: []string{".html", ".php", ".txt"},
		},

		CacheTTL:      time.Hour,
		CacheCapacity: 10000,

		GracePeriod: 5 * time.Second,
	}
}

// Validate checks the configuration and returns a ConfigError for the first
// invalid value found. Out-of-range tuning knobs are clamped instead.
func (c *Config) Validate() error {
	if c.Seed == "" {
		return &ConfigError{Field: "seed", Reason: "required"}
	}
	u, err := url.Parse(c.Seed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Field: "seed", Reason: "not an absolute URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Field: "seed", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if c.MaxDepth < 0 {
		return &ConfigError{Field: "max_depth", Reason: "must be >= 0"}
	}
	if c.MaxURLs <= 0 {
		return &ConfigError{Field: "max_urls", Reason: "must be > 0"}
	}
	if c.Delay < 0 {
		return &ConfigError{Field: "delay", Reason: "must be >= 0"}
	}
	for _, p := range c.Proxies {
		pu, err := url.Parse(p)
		if err != nil || pu.Scheme == "" || pu.Host == "" {
			return &ConfigError{Field: "proxies", Reason: fmt.Sprintf("invalid proxy URL %q", p)}
		}
	}

	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.MaxRedirects < 0 {
		c.MaxRedirects = 0
	}
	if c.CacheCapacity < 1 {
		c.CacheCapacity = 1
	}
	return nil
}

// Save writes the configuration to a JSON or YAML file, chosen by extension.
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads configuration from a JSON or YAML file, layered over defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// FindConfigFile returns the explicit path if it exists, otherwise looks
// for the default config files in the working directory, YAML before
// JSON. Empty means not found.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for _, name := range []string{DefaultConfigFile, DefaultConfigFileJSON} {
		p := filepath.Join(cwd, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
