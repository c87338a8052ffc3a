// Package config loads configuration from an optional YAML file and
// environment variables; the environment wins.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gateway configuration.
type Config struct {
	// Server
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Serving
	Prefix string `yaml:"prefix"` // reserved serving prefix, no slashes

	// Identity resolution
	ResolverHost string `yaml:"resolver_host"`
	PLCDirectory string `yaml:"plc_directory"`

	// Record collections
	SiteCollection      string `yaml:"site_collection"`
	DirectoryCollection string `yaml:"directory_collection"`

	// Storage
	DataDir string `yaml:"data_dir"`

	// Network
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Load reads the optional config file named by WISP_CONFIG (or the
// path argument when non-empty), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:          ":8481",
		MetricsAddr:         ":9481",
		LogLevel:            "info",
		LogFormat:           "json",
		Prefix:              "wisp",
		ResolverHost:        "https://public.api.bsky.app",
		PLCDirectory:        "https://plc.directory",
		SiteCollection:      "blue.wisp.site",
		DirectoryCollection: "blue.wisp.directory",
		DataDir:             defaultDataDir(),
		RequestTimeout:      30 * time.Second,
	}

	if path == "" {
		path = os.Getenv("WISP_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ListenAddr = envOr("WISP_LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = envOr("WISP_METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = envOr("WISP_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("WISP_LOG_FORMAT", cfg.LogFormat)
	cfg.Prefix = envOr("WISP_PREFIX", cfg.Prefix)
	cfg.ResolverHost = envOr("WISP_RESOLVER_HOST", cfg.ResolverHost)
	cfg.PLCDirectory = envOr("WISP_PLC_DIRECTORY", cfg.PLCDirectory)
	cfg.SiteCollection = envOr("WISP_SITE_COLLECTION", cfg.SiteCollection)
	cfg.DirectoryCollection = envOr("WISP_DIRECTORY_COLLECTION", cfg.DirectoryCollection)
	cfg.DataDir = envOr("WISP_DATA_DIR", cfg.DataDir)
	cfg.RequestTimeout = envDuration("WISP_REQUEST_TIMEOUT", cfg.RequestTimeout)

	if cfg.Prefix == "" {
		return nil, fmt.Errorf("prefix must not be empty")
	}

	return cfg, nil
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "wisp-explorer")
	}
	return ".wisp-explorer"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
