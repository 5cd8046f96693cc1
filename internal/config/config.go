// Package config handles configuration loading, validation, and
// hot-reloading for tapgate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete tapgate configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Storage configuration for the encrypted vault.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Keystore configuration for key wrapping.
	Keystore KeystoreConfig `toml:"keystore" json:"keystore" yaml:"keystore"`

	// Gate configuration for the unlock failure policy.
	Gate GateConfig `toml:"gate" json:"gate" yaml:"gate"`

	// Pattern configuration for capture and matching.
	Pattern PatternConfig `toml:"pattern" json:"pattern" yaml:"pattern"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// StorageConfig holds vault persistence configuration.
type StorageConfig struct {
	// Type is the storage backend: "sqlite" or "memory".
	Type string `toml:"type" json:"type" yaml:"type"`

	// Path is the SQLite database path.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// KeystoreConfig holds key-wrapping configuration.
type KeystoreConfig struct {
	// PreferHardware selects the TPM provider when a device is present.
	PreferHardware bool `toml:"prefer_hardware" json:"prefer_hardware" yaml:"prefer_hardware"`

	// TPMPath overrides TPM device autodetection.
	TPMPath string `toml:"tpm_path" json:"tpm_path" yaml:"tpm_path"`
}

// GateConfig holds the unlock failure policy.
type GateConfig struct {
	// LockoutThreshold is the consecutive-failure count before a timed
	// lockout.
	LockoutThreshold int `toml:"lockout_threshold" json:"lockout_threshold" yaml:"lockout_threshold"`

	// WipeThreshold is the cumulative-failure count before identity
	// material is destroyed.
	WipeThreshold int `toml:"wipe_threshold" json:"wipe_threshold" yaml:"wipe_threshold"`

	// LockoutSec is the lockout duration in seconds.
	LockoutSec int `toml:"lockout_sec" json:"lockout_sec" yaml:"lockout_sec"`

	// ResponseFloorMs is the minimum unlock response time in
	// milliseconds.
	ResponseFloorMs int `toml:"response_floor_ms" json:"response_floor_ms" yaml:"response_floor_ms"`
}

// PatternConfig holds capture and matching configuration.
type PatternConfig struct {
	// Strategy is the default registration strategy: "interval" or
	// "grid".
	Strategy string `toml:"strategy" json:"strategy" yaml:"strategy"`

	// LandmarkNodes is the landmark-field node count (grid strategy).
	LandmarkNodes int `toml:"landmark_nodes" json:"landmark_nodes" yaml:"landmark_nodes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "stdout", or a file path.
	Output string `toml:"output" json:"output" yaml:"output"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Storage: StorageConfig{
			Type: "sqlite",
			Path: filepath.Join(dir, "vault.db"),
		},
		Keystore: KeystoreConfig{
			PreferHardware: true,
		},
		Gate: GateConfig{
			LockoutThreshold: 5,
			WipeThreshold:    20,
			LockoutSec:       300,
			ResponseFloorMs:  250,
		},
		Pattern: PatternConfig{
			Strategy:      "interval",
			LandmarkNodes: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DataDir returns the base tapgate data directory, honoring the
// TAPGATE_DATA_DIR override.
func DataDir() string {
	if envDir := os.Getenv("TAPGATE_DATA_DIR"); envDir != "" {
		return envDir
	}
	return platformDataDir()
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// ApplyEnvOverrides applies TAPGATE_* environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TAPGATE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("TAPGATE_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("TAPGATE_TPM_PATH"); v != "" {
		c.Keystore.TPMPath = v
	}
	if v := os.Getenv("TAPGATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TAPGATE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown storage type %q", c.Storage.Type)
	}
	if c.Storage.Type == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("config: sqlite storage requires a path")
	}

	if c.Gate.LockoutThreshold < 1 {
		return fmt.Errorf("config: lockout_threshold must be at least 1")
	}
	if c.Gate.WipeThreshold <= c.Gate.LockoutThreshold {
		return fmt.Errorf("config: wipe_threshold %d must exceed lockout_threshold %d",
			c.Gate.WipeThreshold, c.Gate.LockoutThreshold)
	}
	if c.Gate.LockoutSec < 1 {
		return fmt.Errorf("config: lockout_sec must be at least 1")
	}
	if c.Gate.ResponseFloorMs < 0 {
		return fmt.Errorf("config: response_floor_ms must not be negative")
	}

	switch c.Pattern.Strategy {
	case "interval", "grid":
	default:
		return fmt.Errorf("config: unknown strategy %q", c.Pattern.Strategy)
	}
	if c.Pattern.LandmarkNodes < 8 {
		return fmt.Errorf("config: landmark_nodes must be at least 8")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Logging.Format)
	}

	return nil
}

// LockoutDuration returns the lockout duration.
func (c *Config) LockoutDuration() time.Duration {
	return time.Duration(c.Gate.LockoutSec) * time.Second
}

// ResponseFloor returns the minimum unlock response time.
func (c *Config) ResponseFloor() time.Duration {
	return time.Duration(c.Gate.ResponseFloorMs) * time.Millisecond
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{DataDir()}
	if c.Storage.Type == "sqlite" {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SaveConfig writes the configuration to a TOML file.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("config: create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	return nil
}

func platformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "tapgate")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "tapgate")
		}
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "tapgate")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tapgate"
	}
	if runtime.GOOS == "linux" {
		return filepath.Join(home, ".local", "share", "tapgate")
	}
	return filepath.Join(home, ".tapgate")
}
