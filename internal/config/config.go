// Package config handles configuration loading and validation for csql.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for csql.
type Config struct {
	Server ServerConfig  `mapstructure:"server" yaml:"server"`
	Query  QueryConfig   `mapstructure:"query" yaml:"query"`
	Tables []TableConfig `mapstructure:"tables" yaml:"tables"`
	Log    LogConfig     `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds the HTTP query endpoint configuration.
type ServerConfig struct {
	Port            int          `mapstructure:"port" yaml:"port"`
	Host            string       `mapstructure:"host" yaml:"host"`
	ReadTimeoutSec  int          `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int          `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`
	Users           []UserConfig `mapstructure:"users" yaml:"users,omitempty"`
}

// UserConfig is a basic auth account. PasswordHash is a bcrypt hash.
type UserConfig struct {
	Name         string `mapstructure:"name" yaml:"name"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`
}

// QueryConfig holds planner and execution settings.
type QueryConfig struct {
	ConstantFolding bool `mapstructure:"constant_folding" yaml:"constant_folding"`
	// TimeoutSec bounds a single statement; 0 disables the limit.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// TableConfig registers a file backed table.
type TableConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Format      string `mapstructure:"format" yaml:"format"`
	Path        string `mapstructure:"path" yaml:"path"`
	Description string `mapstructure:"description" yaml:"description,omitempty"`
	// Delimiter is the CSV field separator.
	Delimiter string         `mapstructure:"delimiter" yaml:"delimiter,omitempty"`
	Columns   []ColumnConfig `mapstructure:"columns" yaml:"columns,omitempty"`
}

// ColumnConfig declares a column type. Nested columns list their children
// in Fields.
type ColumnConfig struct {
	Name        string         `mapstructure:"name" yaml:"name"`
	Type        string         `mapstructure:"type" yaml:"type,omitempty"`
	Repeated    bool           `mapstructure:"repeated" yaml:"repeated,omitempty"`
	Required    bool           `mapstructure:"required" yaml:"required,omitempty"`
	Description string         `mapstructure:"description" yaml:"description,omitempty"`
	Fields      []ColumnConfig `mapstructure:"fields" yaml:"fields,omitempty"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// Default configuration values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9175,
			Host:            "localhost",
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 60,
		},
		Query: QueryConfig{
			ConstantFolding: true,
			TimeoutSec:      0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.read_timeout_sec", cfg.Server.ReadTimeoutSec)
	v.SetDefault("server.write_timeout_sec", cfg.Server.WriteTimeoutSec)
	v.SetDefault("query.constant_folding", cfg.Query.ConstantFolding)
	v.SetDefault("query.timeout_sec", cfg.Query.TimeoutSec)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.output", cfg.Log.Output)

	// CSQL_SERVER_PORT overrides server.port
	v.SetEnvPrefix("CSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("csql")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.csql")
		v.AddConfigPath("/etc/csql")

		// no config file is fine, defaults apply
		_ = v.ReadInConfig()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var tableFormats = map[string]bool{"csv": true, "parquet": true, "yaml": true, "json": true}

// Validate checks that configuration values are sensible
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Query.TimeoutSec < 0 {
		return fmt.Errorf("query.timeout_sec can't be negative")
	}
	for _, u := range c.Server.Users {
		if u.Name == "" || u.PasswordHash == "" {
			return fmt.Errorf("server.users entries need a name and a password_hash")
		}
	}

	seen := make(map[string]bool)
	for i, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("tables[%d]: missing name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate table: %s", t.Name)
		}
		seen[t.Name] = true
		if !tableFormats[strings.ToLower(t.Format)] {
			return fmt.Errorf("table %s: unsupported format %q (csv, parquet, yaml, json)", t.Name, t.Format)
		}
		if t.Path == "" {
			return fmt.Errorf("table %s: missing path", t.Name)
		}
		if len([]rune(t.Delimiter)) > 1 {
			return fmt.Errorf("table %s: delimiter must be a single character", t.Name)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	return nil
}

// CreateDefaultConfig writes a default configuration file. tables are
// included as given.
func CreateDefaultConfig(path string, tables []TableConfig) error {
	cfg := defaultConfig()
	cfg.Tables = tables

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	content := append([]byte("# csql configuration file\n\n"), data...)
	return os.WriteFile(path, content, 0644)
}
