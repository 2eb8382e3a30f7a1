// Package config loads the client configuration from TOML or YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ynotnauk/go-irc/ctcp"
	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/protection"
)

// DefaultCapabilities are requested when a network lists none.
var DefaultCapabilities = []string{
	"account-notify",
	"away-notify",
	"batch",
	"cap-notify",
	"chghost",
	"draft/multiline",
	"echo-message",
	"extended-join",
	"invite-notify",
	"labeled-response",
	"message-tags",
	"multi-prefix",
	"server-time",
	"userhost-in-names",
}

type Config struct {
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
	Networks   []NetworkEntry   `toml:"networks" yaml:"networks"`
	Protection ProtectionConfig `toml:"protection" yaml:"protection"`
	Ignore     []string         `toml:"ignore" yaml:"ignore"`
	Storage    StorageConfig    `toml:"storage" yaml:"storage"`
	CTCP       CTCPConfig       `toml:"ctcp" yaml:"ctcp"`
}

type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// NetworkEntry is one connection to open at start, keyed by ID.
type NetworkEntry struct {
	ID         string                    `toml:"id" yaml:"id"`
	Network    entities.NetworkConfig    `toml:"network" yaml:"network"`
	Connection entities.ConnectionConfig `toml:"connection" yaml:"connection"`
}

type ProtectionConfig struct {
	MessagesPerSecond float64 `toml:"messages_per_second" yaml:"messages_per_second"`
	Burst             int     `toml:"burst" yaml:"burst"`
}

// StorageConfig locates the on-disk stores. A blank TopicDatabase keeps
// topics in memory.
type StorageConfig struct {
	IdentityDir   string `toml:"identity_dir" yaml:"identity_dir"`
	AuthDir       string `toml:"auth_dir" yaml:"auth_dir"`
	TopicDatabase string `toml:"topic_database" yaml:"topic_database"`
}

type CTCPConfig struct {
	Version string `toml:"version" yaml:"version"`
}

func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Protection: ProtectionConfig{
			MessagesPerSecond: protection.DefaultMessagesPerSecond,
			Burst:             protection.DefaultBurst,
		},
		CTCP: CTCPConfig{Version: ctcp.DefaultVersion},
	}
}

// Load reads path, choosing the decoder by extension, then fills defaults
// and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrBlankPath
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Protection.MessagesPerSecond <= 0 {
		c.Protection.MessagesPerSecond = protection.DefaultMessagesPerSecond
	}
	if c.Protection.Burst <= 0 {
		c.Protection.Burst = protection.DefaultBurst
	}
	if c.CTCP.Version == "" {
		c.CTCP.Version = ctcp.DefaultVersion
	}
	for i := range c.Networks {
		entry := &c.Networks[i]
		if entry.Connection.Username == "" {
			entry.Connection.Username = entry.Connection.Nick
		}
		if entry.Connection.Realname == "" {
			entry.Connection.Realname = entry.Connection.Nick
		}
		if entry.Network.Capabilities == nil {
			entry.Network.Capabilities = append([]string(nil), DefaultCapabilities...)
		}
	}
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func (c *Config) Validate() error {
	var errs ValidateErrors
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}
	seen := make(map[string]bool, len(c.Networks))
	for i, entry := range c.Networks {
		field := fmt.Sprintf("networks[%d]", i)
		if entry.ID == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "cannot be blank"})
		} else if seen[entry.ID] {
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("duplicate id '%s'", entry.ID)})
		}
		seen[entry.ID] = true
		if entry.Network.Host == "" {
			errs = append(errs, ValidationError{Field: field + ".network.host", Message: "cannot be blank"})
		}
		if entry.Network.Port < 0 || entry.Network.Port > 65535 {
			errs = append(errs, ValidationError{Field: field + ".network.port", Message: fmt.Sprintf("invalid port %d", entry.Network.Port)})
		}
		if entry.Connection.Nick == "" {
			errs = append(errs, ValidationError{Field: field + ".connection.nick", Message: "cannot be blank"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
