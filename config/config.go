// Package config handles configuration loading and validation for rimebridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/managed"
)

// FileName is the configuration file looked up by DefaultPath.
const FileName = "rimebridge.toml"

// Environment overrides.
const (
	EnvSharedDir = "RIMEBRIDGE_SHARED_DIR"
	EnvUserDir   = "RIMEBRIDGE_USER_DIR"
	EnvLogLevel  = "RIMEBRIDGE_LOG_LEVEL"
)

// Config is the top-level configuration.
type Config struct {
	Runtime RuntimeConfig `toml:"runtime"`
	Rime    RimeConfig    `toml:"rime"`
	Log     LogConfig     `toml:"log"`
	Plugins PluginsConfig `toml:"plugins"`
}

// RuntimeConfig sizes the in-process managed runtime.
type RuntimeConfig struct {
	LocalCapacity int `toml:"local_capacity"`
	MaxThreads    int `toml:"max_threads"`
}

// RimeConfig holds the engine startup traits.
type RimeConfig struct {
	SharedDataDir string `toml:"shared_data_dir"`
	UserDataDir   string `toml:"user_data_dir"`
	AppVersion    string `toml:"app_version"`
	FullCheck     bool   `toml:"full_check"`
	// Watch redeploys when schema files change.
	Watch bool `toml:"watch"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
	Encoding    string `toml:"encoding"`
}

// PluginsConfig lists wasm plugins to load.
type PluginsConfig struct {
	Paths            []string `toml:"paths"`
	MemoryLimitPages uint32   `toml:"memory_limit_pages"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			LocalCapacity: managed.DefaultLocalCapacity,
		},
		Rime: RimeConfig{
			SharedDataDir: filepath.Join(DataDir(), "shared"),
			UserDataDir:   filepath.Join(DataDir(), "user"),
			AppVersion:    "dev",
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Plugins: PluginsConfig{
			MemoryLimitPages: 256, // 16MB
		},
	}
}

// DataDir returns the per-user data directory.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "rimebridge")
	}
	return filepath.Join(os.TempDir(), "rimebridge")
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(DataDir(), FileName)
}

// Load reads configuration from path, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvSharedDir); v != "" {
		c.Rime.SharedDataDir = v
	}
	if v := os.Getenv(EnvUserDir); v != "" {
		c.Rime.UserDataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// VMOptions converts the runtime section into managed runtime options.
func (c *Config) VMOptions() managed.Options {
	return managed.Options{
		LocalCapacity: c.Runtime.LocalCapacity,
		MaxThreads:    c.Runtime.MaxThreads,
	}
}

// Build creates a logger from the log section.
func (l LogConfig) Build() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	if l.Encoding != "" {
		zc.Encoding = l.Encoding
	}
	return zc.Build()
}
