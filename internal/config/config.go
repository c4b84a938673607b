// Package config handles configuration loading and validation for radhttpd.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RADHTTPD_"

// Config is the complete daemon configuration.
type Config struct {
	HTTP    HTTPConfig    `toml:"http" json:"http" yaml:"http"`
	Node    NodeConfig    `toml:"node" json:"node" yaml:"node"`
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
	Web     WebConfig     `toml:"web" json:"web" yaml:"web"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Listen string `toml:"listen" json:"listen" yaml:"listen"`

	// CORSOrigins lists allowed origins. Empty allows any.
	CORSOrigins []string `toml:"cors_origins" json:"cors_origins" yaml:"cors_origins"`

	ReadTimeoutSec     int `toml:"read_timeout_sec" json:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec    int `toml:"write_timeout_sec" json:"write_timeout_sec" yaml:"write_timeout_sec"`
	IdleTimeoutSec     int `toml:"idle_timeout_sec" json:"idle_timeout_sec" yaml:"idle_timeout_sec"`
	ShutdownTimeoutSec int `toml:"shutdown_timeout_sec" json:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`

	// RateLimit is requests per second per client host; 0 disables it.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
}

// NodeConfig locates the local node. Empty paths are derived from Home.
type NodeConfig struct {
	Home       string `toml:"home" json:"home" yaml:"home"`
	KeyPath    string `toml:"key_path" json:"key_path" yaml:"key_path"`
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`

	DialTimeoutMs    int `toml:"dial_timeout_ms" json:"dial_timeout_ms" yaml:"dial_timeout_ms"`
	RequestTimeoutMs int `toml:"request_timeout_ms" json:"request_timeout_ms" yaml:"request_timeout_ms"`
}

// StorageConfig locates the node databases. Empty paths are derived from
// Node.Home.
type StorageConfig struct {
	NodeDB         string `toml:"node_db" json:"node_db" yaml:"node_db"`
	PoliciesDB     string `toml:"policies_db" json:"policies_db" yaml:"policies_db"`
	BusyTimeoutMs  int    `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
	MaxConnections int    `toml:"max_connections" json:"max_connections" yaml:"max_connections"`
}

// WebConfig is the display metadata reported for the local node. It is
// reloaded while running.
type WebConfig struct {
	AvatarURL   string `toml:"avatar_url" json:"avatar_url" yaml:"avatar_url"`
	BannerURL   string `toml:"banner_url" json:"banner_url" yaml:"banner_url"`
	Description string `toml:"description" json:"description" yaml:"description"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// DefaultConfig returns the default configuration. Node paths are left for
// Resolve to derive.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Listen:             "127.0.0.1:8080",
			ReadTimeoutSec:     10,
			WriteTimeoutSec:    30,
			IdleTimeoutSec:     120,
			ShutdownTimeoutSec: 10,
			RateBurst:          20,
		},
		Node: NodeConfig{
			Home:             RadicleHome(),
			DialTimeoutMs:    1000,
			RequestTimeoutMs: 5000,
		},
		Storage: StorageConfig{
			BusyTimeoutMs:  5000,
			MaxConnections: 8,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
// Environment overrides are applied and derived paths resolved, but the
// result is not validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.Resolve()
	return cfg, nil
}

// loadConfigFromFile reads and parses a config file based on its extension.
func loadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// Resolve expands ~ and fills empty node and storage paths from Node.Home.
func (c *Config) Resolve() {
	c.Node.Home = expandPath(c.Node.Home)
	derive := func(p *string, rel string) {
		if *p == "" {
			*p = filepath.Join(c.Node.Home, filepath.FromSlash(rel))
			return
		}
		*p = expandPath(*p)
	}
	derive(&c.Node.KeyPath, publicKeyFile)
	derive(&c.Node.SocketPath, socketFile)
	derive(&c.Storage.NodeDB, nodeDBFile)
	derive(&c.Storage.PoliciesDB, policiesDBFile)
	if c.Logging.FilePath != "" {
		c.Logging.FilePath = expandPath(c.Logging.FilePath)
	}
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with RADHTTPD_ and use underscores.
// RAD_HOME, honoured by the node itself, sets the node home.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("RAD_HOME"); v != "" {
		c.Node.Home = v
	}

	strs := map[string]*string{
		"LISTEN":          &c.HTTP.Listen,
		"NODE_HOME":       &c.Node.Home,
		"KEY_PATH":        &c.Node.KeyPath,
		"SOCKET_PATH":     &c.Node.SocketPath,
		"NODE_DB":         &c.Storage.NodeDB,
		"POLICIES_DB":     &c.Storage.PoliciesDB,
		"WEB_AVATAR_URL":  &c.Web.AvatarURL,
		"WEB_BANNER_URL":  &c.Web.BannerURL,
		"WEB_DESCRIPTION": &c.Web.Description,
		"LOG_LEVEL":       &c.Logging.Level,
		"LOG_FORMAT":      &c.Logging.Format,
		"LOG_OUTPUT":      &c.Logging.Output,
		"LOG_PATH":        &c.Logging.FilePath,
		"METRICS_PATH":    &c.Metrics.Path,
	}
	for name, dst := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DIAL_TIMEOUT_MS":    &c.Node.DialTimeoutMs,
		"REQUEST_TIMEOUT_MS": &c.Node.RequestTimeoutMs,
		"BUSY_TIMEOUT_MS":    &c.Storage.BusyTimeoutMs,
		"MAX_CONNECTIONS":    &c.Storage.MaxConnections,
	}
	for name, dst := range ints {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v := os.Getenv(EnvPrefix + "METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMETRICS_ENABLED: %w", EnvPrefix, err)
		}
		c.Metrics.Enabled = b
	}

	if v := os.Getenv(EnvPrefix + "CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.HTTP.CORSOrigins = origins
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.HTTP.CORSOrigins = slices.Clone(c.HTTP.CORSOrigins)
	return &clone
}

// Timeouts as durations.

func (h HTTPConfig) ReadTimeout() time.Duration  { return seconds(h.ReadTimeoutSec) }
func (h HTTPConfig) WriteTimeout() time.Duration { return seconds(h.WriteTimeoutSec) }
func (h HTTPConfig) IdleTimeout() time.Duration  { return seconds(h.IdleTimeoutSec) }
func (h HTTPConfig) ShutdownTimeout() time.Duration {
	return seconds(h.ShutdownTimeoutSec)
}

func (n NodeConfig) DialTimeout() time.Duration    { return millis(n.DialTimeoutMs) }
func (n NodeConfig) RequestTimeout() time.Duration { return millis(n.RequestTimeoutMs) }

func (s StorageConfig) BusyTimeout() time.Duration { return millis(s.BusyTimeoutMs) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func millis(n int) time.Duration  { return time.Duration(n) * time.Millisecond }
