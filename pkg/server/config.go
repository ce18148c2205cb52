package server

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// Config holds everything the service needs to start
type Config struct {
	// Port the HTTP API listens on
	Port string `toml:"port"`

	// AuditURI is the MongoDB deployment holding the audit trail
	AuditURI string `toml:"audit_uri"`
	// AuditDatabase is the logical database for audit records
	AuditDatabase string `toml:"audit_database"`
	// AuditCollection overrides the default audit collection name
	AuditCollection string `toml:"audit_collection"`

	// AllowPattern, when set, restricts target connection URIs. Any URI
	// not matching fails closed before a connection attempt.
	AllowPattern string `toml:"allow_pattern"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Port:          "8080",
		AuditDatabase: "mongochange",
	}
}

// LoadConfig reads a TOML config file over the defaults. A missing path
// just returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, fmt.Errorf("config file %s does not exist", path)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects a config the service cannot start with
func (c *Config) Validate() error {
	if c.AuditURI == "" {
		return &domain.ConfigurationError{Reason: "audit store URI is required"}
	}
	if c.AuditDatabase == "" {
		return &domain.ConfigurationError{Reason: "audit database name is required"}
	}
	if c.AllowPattern != "" {
		if _, err := regexp.Compile(c.AllowPattern); err != nil {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("invalid allow pattern: %v", err)}
		}
	}
	return nil
}

// CompileAllowPattern returns the compiled pattern or nil when unset
func (c *Config) CompileAllowPattern() (*regexp.Regexp, error) {
	if c.AllowPattern == "" {
		return nil, nil
	}
	return regexp.Compile(c.AllowPattern)
}
