// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/cgi-kvstore/config.toml",
	"configs/config.toml",
}

// DefaultWelcomeMessage is served for GET / when no message is configured.
const DefaultWelcomeMessage = "Welcome to the Go CGI application!"

// CLI holds command-line arguments parsed by Kong. CGI servers usually pass no
// arguments, so every flag can also be supplied through the environment.
type CLI struct {
	Config           string `kong:"short='c',help='Path to TOML config file.',env='CGI_KVSTORE_CONFIG'"`
	StorageRoot      string `kong:"help='Sandbox directory for stored keys (overrides config).',env='CGI_KVSTORE_ROOT'"`
	MaxContentLength int64  `kong:"help='Maximum request body size in bytes (overrides config).',env='CGI_KVSTORE_MAX_CONTENT_LENGTH'"`
	LogLevel         string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='CGI_KVSTORE_LOG_LEVEL'"`
	MetricsTextfile  string `kong:"help='Write Prometheus metrics to this .prom file (enables metrics).',env='CGI_KVSTORE_METRICS_TEXTFILE'"`

	Version kong.VersionFlag `kong:"help='Print version and exit.'"`
	// Some servers pass the words of an ISINDEX query as arguments.
	Query []string `kong:"arg,optional,hidden"`
}

// Config is the top-level application configuration.
type Config struct {
	Request RequestConfig `toml:"request"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// RequestConfig holds request ingestion settings.
type RequestConfig struct {
	MaxContentLength int64  `toml:"max_content_length"`
	ChunkSize        int    `toml:"chunk_size"`
	WelcomeMessage   string `toml:"welcome_message"`
}

// StorageConfig holds key/value store settings.
type StorageConfig struct {
	Root     string `toml:"root"`
	FileMode uint32 `toml:"file_mode"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus textfile export settings.
type MetricsConfig struct {
	Enabled  bool   `toml:"enabled"`
	Textfile string `toml:"textfile"`
}

// Load reads the TOML config file, if any, and applies CLI overrides.
// When no explicit path is given (via --config or CGI_KVSTORE_CONFIG), it
// searches /etc/cgi-kvstore/config.toml then configs/config.toml. Finding no
// file is not an error: a CGI program must be usable with defaults alone.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.StorageRoot != "" {
		c.Storage.Root = cli.StorageRoot
	}
	if cli.MaxContentLength != 0 {
		c.Request.MaxContentLength = cli.MaxContentLength
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.MetricsTextfile != "" {
		c.Metrics.Enabled = true
		c.Metrics.Textfile = cli.MetricsTextfile
	}
}

func (c *Config) validate() error {
	// Numeric bounds.
	if c.Request.MaxContentLength < 0 {
		return fmt.Errorf("request.max_content_length must be non-negative; got %d", c.Request.MaxContentLength)
	}
	// Chunked requests declare max_content_length+1, which must stay representable.
	if c.Request.MaxContentLength >= math.MaxInt64 {
		return fmt.Errorf("request.max_content_length must be below %d; got %d", int64(math.MaxInt64), c.Request.MaxContentLength)
	}
	if c.Request.ChunkSize < 0 {
		return fmt.Errorf("request.chunk_size must be non-negative; got %d", c.Request.ChunkSize)
	}
	if c.Storage.FileMode > 0o777 {
		return fmt.Errorf("storage.file_mode must be a permission mode (<= 0777); got %#o", c.Storage.FileMode)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// The node exporter textfile collector only reads *.prom files.
	if c.Metrics.Enabled {
		if c.Metrics.Textfile == "" {
			return fmt.Errorf("metrics.textfile is required when metrics are enabled")
		}
		if filepath.Ext(c.Metrics.Textfile) != ".prom" {
			return fmt.Errorf("metrics.textfile must end in .prom; got %q", c.Metrics.Textfile)
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with defaults. As with any TOML integer,
// an explicit 0 cannot be told apart from an omitted key, so a zero
// max_content_length also falls back to the default.
func (c *Config) setDefaults() {
	if c.Request.MaxContentLength == 0 {
		c.Request.MaxContentLength = 1000 * 1024 * 1024 // 1000 MiB
	}
	if c.Request.ChunkSize == 0 {
		c.Request.ChunkSize = 4096
	}
	if c.Request.WelcomeMessage == "" {
		c.Request.WelcomeMessage = DefaultWelcomeMessage
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "cgi_storage"
	}
	if c.Storage.FileMode == 0 {
		c.Storage.FileMode = 0o644
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FilePath returns the config file that was loaded, or "" when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is writable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		logger.Warn("config file is writable by group/others; consider chmod 644",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
