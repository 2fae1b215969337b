package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the ipwarehouse configuration.
type Config struct {
	Warehouse  WarehouseConfig  `yaml:"warehouse"`
	Query      QueryConfig      `yaml:"query"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WarehouseConfig holds document store settings.
type WarehouseConfig struct {
	Root  string `yaml:"root"`  // directory of <category>.json logs (default: data)
	Fsync bool   `yaml:"fsync"` // fsync after every appended line
}

// QueryConfig holds query engine settings.
type QueryConfig struct {
	CacheSize int `yaml:"cache_size"` // compiled pipelines kept in memory
}

// EnrichmentConfig holds GeoIP/RDAP lookup settings.
type EnrichmentConfig struct {
	GeoIPURL        string `yaml:"geoip_url"`
	GeoIPAccessKey  string `yaml:"geoip_access_key"`
	RDAPURL         string `yaml:"rdap_url"`
	Workers         int    `yaml:"workers"`
	TimeoutSec      int    `yaml:"timeout_sec"`       // per request
	RetryMax        int    `yaml:"retry_max"`         // retries per request
	BatchTimeoutSec int    `yaml:"batch_timeout_sec"` // whole batch
}

// Timeout returns the per-request timeout.
func (e EnrichmentConfig) Timeout() time.Duration { return time.Duration(e.TimeoutSec) * time.Second }

// BatchTimeout returns the whole-batch timeout.
func (e EnrichmentConfig) BatchTimeout() time.Duration {
	return time.Duration(e.BatchTimeoutSec) * time.Second
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"` // empty disables auth
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from a YAML file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, falling back to defaults when the env has no config file.
func LoadOrDefault(env string) (Config, error) {
	cfg, err := Load(env)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns the configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Warehouse.Root == "" {
		c.Warehouse.Root = "data"
	}
	if c.Query.CacheSize <= 0 {
		c.Query.CacheSize = 128
	}
	if c.Enrichment.GeoIPURL == "" {
		c.Enrichment.GeoIPURL = "http://api.ipstack.com"
	}
	if c.Enrichment.RDAPURL == "" {
		c.Enrichment.RDAPURL = "https://rdap.arin.net/registry/ip"
	}
	if c.Enrichment.Workers <= 0 {
		c.Enrichment.Workers = 4
	}
	if c.Enrichment.TimeoutSec <= 0 {
		c.Enrichment.TimeoutSec = 10
	}
	if c.Enrichment.RetryMax <= 0 {
		c.Enrichment.RetryMax = 3
	}
	if c.Enrichment.BatchTimeoutSec <= 0 {
		c.Enrichment.BatchTimeoutSec = 1800
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if strings.TrimSpace(c.Warehouse.Root) == "" {
		return fmt.Errorf("warehouse.root is required")
	}
	for name, raw := range map[string]string{
		"enrichment.geoip_url": c.Enrichment.GeoIPURL,
		"enrichment.rdap_url":  c.Enrichment.RDAPURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
		// ok
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
