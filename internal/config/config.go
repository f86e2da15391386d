// Package config provides configuration management for the lip-sync host
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Table   TableConfig   `mapstructure:"table"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Avatar  AvatarConfig  `mapstructure:"avatar"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TableConfig locates the blend-shape weight table
type TableConfig struct {
	Path  string `mapstructure:"path"`  // JSON or YAML file; empty uses the built-in table
	Watch bool   `mapstructure:"watch"` // Reload the table when the file changes
}

// EngineConfig tunes the interpolation engine
type EngineConfig struct {
	Easing string `mapstructure:"easing"` // exponential or linear
}

// AvatarConfig describes the head being animated
type AvatarConfig struct {
	ID        string `mapstructure:"id"`
	MeshPath  string `mapstructure:"mesh_path"` // glTF/GLB; empty assumes the ARKit blend shapes
	FrameRate int    `mapstructure:"frame_rate"`
}

// BridgeConfig configures the WebSocket speak bridge
type BridgeConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Path       string `mapstructure:"path"`
	FrameRate  int    `mapstructure:"frame_rate"` // weight frames pushed to clients per second
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig configures zerolog output
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"` // empty disables the log file
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Table: TableConfig{
			Path:  "",
			Watch: false,
		},
		Engine: EngineConfig{
			Easing: "exponential",
		},
		Avatar: AvatarConfig{
			ID:        "hannah",
			MeshPath:  "",
			FrameRate: 144,
		},
		Bridge: BridgeConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:8765",
			Path:       "/ws",
			FrameRate:  30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Dir:     "",
			Console: true,
		},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("table.path", cfg.Table.Path)
	v.SetDefault("table.watch", cfg.Table.Watch)
	v.SetDefault("engine.easing", cfg.Engine.Easing)
	v.SetDefault("avatar.id", cfg.Avatar.ID)
	v.SetDefault("avatar.mesh_path", cfg.Avatar.MeshPath)
	v.SetDefault("avatar.frame_rate", cfg.Avatar.FrameRate)
	v.SetDefault("bridge.enabled", cfg.Bridge.Enabled)
	v.SetDefault("bridge.listen_addr", cfg.Bridge.ListenAddr)
	v.SetDefault("bridge.path", cfg.Bridge.Path)
	v.SetDefault("bridge.frame_rate", cfg.Bridge.FrameRate)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.dir", cfg.Logging.Dir)
	v.SetDefault("logging.console", cfg.Logging.Console)
}

// Load reads configuration from file and environment. With an empty path it looks
// for lipsync.yaml in the working directory and the config directory, and falls back
// to defaults when none exists.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	// Environment variable overrides, e.g. LIPSYNC_AVATAR_FRAME_RATE
	v.SetEnvPrefix("LIPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("lipsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the host cannot run with
func (c *Config) Validate() error {
	if c.Avatar.FrameRate <= 0 {
		return fmt.Errorf("avatar.frame_rate must be positive, got %d", c.Avatar.FrameRate)
	}
	if c.Bridge.Enabled {
		if c.Bridge.ListenAddr == "" {
			return fmt.Errorf("bridge.listen_addr is required when the bridge is enabled")
		}
		if c.Bridge.FrameRate <= 0 {
			return fmt.Errorf("bridge.frame_rate must be positive, got %d", c.Bridge.FrameRate)
		}
		if !strings.HasPrefix(c.Bridge.Path, "/") {
			return fmt.Errorf("bridge.path must start with '/', got %q", c.Bridge.Path)
		}
	}
	return nil
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cortexlipsync"), nil
}
