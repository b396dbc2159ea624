package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type PersistenceConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Retention int    `mapstructure:"retention"`
}

type SnapshotConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("persistence.enabled", true)
	v.SetDefault("persistence.directory", "state")
	v.SetDefault("persistence.retention", 2)
	v.SetDefault("snapshot.interval", "5m")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":1884")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("KESTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("kestreld")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Persistence.Enabled && c.Persistence.Directory == "" {
		return fmt.Errorf("persistence.directory is required when persistence is enabled")
	}
	if c.Persistence.Retention < 1 {
		return fmt.Errorf("persistence.retention must be >= 1")
	}
	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot.interval must be positive")
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the admin server is enabled")
	}
	return nil
}
